package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"verigate/internal/platform/config"
)

// Client is the shared Redis connection backing the subject lock.
type Client struct {
	*redis.Client
}

// New dials Redis and pings it once. A config without a URL returns a nil
// client so callers can fall back to the in-process lock.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	applyPool(opts, cfg)

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

// applyPool copies non-zero pool settings so go-redis keeps its own defaults
// for anything left unset.
func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
