package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verigate/internal/platform/config"
)

func TestNewDisabled(t *testing.T) {
	c, err := New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestApplyPoolKeepsDefaultsForZeroValues(t *testing.T) {
	opts := &redis.Options{PoolSize: 7, DialTimeout: time.Second}
	applyPool(opts, config.RedisConfig{MinIdleConns: 2, ReadTimeout: 3 * time.Second})

	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)
	assert.Equal(t, 2, opts.MinIdleConns)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
}
