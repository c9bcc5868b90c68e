package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	vstrings "verigate/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Buro     BuroConfig
	Lock     LockConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

// DatabaseConfig configures the PostgreSQL pool. An empty URL selects the in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the subject lock backend. An empty URL selects the in-process lock.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit stream. No brokers means audit events are only logged.
type KafkaConfig struct {
	Brokers     []string
	AuditTopic  string
	Partitions  int32
	Replication int16
}

// BuroConfig configures the upstream income verification provider.
type BuroConfig struct {
	BaseURL        string
	APIKey         string
	Sandbox        bool
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// LockConfig bounds how long one delivery may hold, and wait for, a subject lock.
type LockConfig struct {
	TTL  time.Duration
	Wait time.Duration
}

// FromEnv builds the process config from environment variables so main stays lean.
// In development a local .env file is loaded first when present.
func FromEnv() (Config, error) {
	if getEnv("VERIGATE_ENV", "development") == "development" {
		_ = godotenv.Load()
	}

	cfg := Config{
		Server: Server{
			Addr:            getEnv("VERIGATE_ADDR", ":8080"),
			Env:             getEnv("VERIGATE_ENV", "development"),
			ShutdownTimeout: getEnvDuration("VERIGATE_SHUTDOWN_TIMEOUT", 10*time.Second),
			RequestTimeout:  getEnvDuration("VERIGATE_REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     vstrings.SplitList(getEnv("KAFKA_BROKERS", "")),
			AuditTopic:  getEnv("KAFKA_AUDIT_TOPIC", "verigate.audit"),
			Partitions:  int32(getEnvInt("KAFKA_AUDIT_PARTITIONS", 3)),
			Replication: int16(getEnvInt("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Buro: BuroConfig{
			BaseURL:        strings.TrimRight(getEnv("BURO_BASE_URL", ""), "/"),
			APIKey:         getEnv("BURO_API_KEY", ""),
			Sandbox:        getEnvBool("BURO_SANDBOX", false),
			ConnectTimeout: getEnvDuration("BURO_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout: getEnvDuration("BURO_REQUEST_TIMEOUT", 30*time.Second),
		},
		Lock: LockConfig{
			TTL:  getEnvDuration("SUBJECT_LOCK_TTL", 2*time.Minute),
			Wait: getEnvDuration("SUBJECT_LOCK_WAIT", 10*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports missing required settings.
func (c Config) Validate() error {
	var missing []string
	if c.Buro.BaseURL == "" {
		missing = append(missing, "BURO_BASE_URL")
	}
	if c.Buro.APIKey == "" {
		missing = append(missing, "BURO_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if c.Lock.TTL <= 0 || c.Lock.Wait < 0 {
		return fmt.Errorf("SUBJECT_LOCK_TTL must be positive and SUBJECT_LOCK_WAIT non-negative")
	}
	return nil
}

func (c Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func (c DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
