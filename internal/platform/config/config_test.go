package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("required upstream settings", func(t *testing.T) {
		t.Setenv("VERIGATE_ENV", "test")
		t.Setenv("BURO_BASE_URL", "")
		t.Setenv("BURO_API_KEY", "")

		_, err := FromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BURO_BASE_URL")
		assert.Contains(t, err.Error(), "BURO_API_KEY")
	})

	t.Run("defaults and overrides", func(t *testing.T) {
		t.Setenv("VERIGATE_ENV", "test")
		t.Setenv("BURO_BASE_URL", "https://sandbox.example.test/v1/")
		t.Setenv("BURO_API_KEY", "key")
		t.Setenv("BURO_SANDBOX", "true")
		t.Setenv("BURO_REQUEST_TIMEOUT", "7s")
		t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
		t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

		cfg, err := FromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, "https://sandbox.example.test/v1", cfg.Buro.BaseURL)
		assert.True(t, cfg.Buro.Sandbox)
		assert.Equal(t, 7*time.Second, cfg.Buro.RequestTimeout)
		assert.Equal(t, 5*time.Second, cfg.Buro.ConnectTimeout)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.True(t, cfg.Kafka.Enabled())
		assert.Equal(t, 10, cfg.Database.MaxOpenConns)
		assert.False(t, cfg.Database.Enabled())
		assert.False(t, cfg.Redis.Enabled())
		assert.False(t, cfg.IsProduction())
	})

	t.Run("lock ttl must be positive", func(t *testing.T) {
		t.Setenv("VERIGATE_ENV", "test")
		t.Setenv("BURO_BASE_URL", "https://example.test")
		t.Setenv("BURO_API_KEY", "key")
		t.Setenv("SUBJECT_LOCK_TTL", "0s")

		_, err := FromEnv()
		require.Error(t, err)
	})
}
