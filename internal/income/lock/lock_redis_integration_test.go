//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verigate/internal/income/lock"
	"verigate/pkg/platform/sentinel"
	"verigate/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestContendedLockTimesOut() {
	ctx := context.Background()
	l := lock.NewRedis(s.redis.Client, time.Minute, 100*time.Millisecond)

	unlock, err := l.Lock(ctx, "ABC123")
	s.Require().NoError(err)

	_, err = l.Lock(ctx, "ABC123")
	s.ErrorIs(err, sentinel.ErrLocked)

	s.Require().NoError(unlock(ctx))
	unlock, err = l.Lock(ctx, "ABC123")
	s.Require().NoError(err)
	s.NoError(unlock(ctx))
}

// TestExpiredHolderCannotReleaseNewLock verifies release is token-checked.
func (s *RedisLockSuite) TestExpiredHolderCannotReleaseNewLock() {
	ctx := context.Background()
	short := lock.NewRedis(s.redis.Client, 50*time.Millisecond, time.Second)

	stale, err := short.Lock(ctx, "ABC123")
	s.Require().NoError(err)
	time.Sleep(100 * time.Millisecond)

	long := lock.NewRedis(s.redis.Client, time.Minute, time.Second)
	fresh, err := long.Lock(ctx, "ABC123")
	s.Require().NoError(err)
	s.Require().NoError(stale(ctx))

	exists, err := s.redis.Client.Exists(ctx, lock.Key("ABC123")).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists, "stale release must not delete the fresh lock")
	s.NoError(fresh(ctx))
}
