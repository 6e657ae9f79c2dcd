package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/voicememo/logger"
)

// ErrNotFound is returned by GetJSON for a missing key.
var ErrNotFound = stderrors.New("redis: key not found")

type Client struct {
	rdb       *goredis.Client
	cfg       Config
	log       *logger.Logger
	closeOnce sync.Once
	closeErr  error
}

// New builds a client for an enabled config. Nothing is dialed until the
// first command.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if !cfg.Enabled {
		return nil, stderrors.New("redis: disabled in config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	opts, err := cfg.options()
	if err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	log.Info("Redis client created", logger.Fields(
		"addr", cfg.Addr,
		"db", cfg.DB,
		"pool_size", cfg.PoolSize,
		"tls", opts.TLSConfig != nil,
	))
	return &Client{rdb: goredis.NewClient(opts), cfg: cfg, log: log}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", c.cfg.Addr, err)
	}
	return nil
}

// Publish returns the number of subscribers that received payload.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	return c.rdb.Publish(ctx, channel, payload).Result()
}

// SetJSON stores v as JSON. A zero ttl keeps the key forever.
func (c *Client) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the value under key into v, or returns ErrNotFound.
func (c *Client) GetJSON(ctx context.Context, key string, v any) error {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case stderrors.Is(err, goredis.Nil):
		return ErrNotFound
	case err != nil:
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal %q: %w", key, err)
	}
	return nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Close closes the pool once. Later calls return the first result.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.log.Info("Closing Redis connection")
		c.closeErr = c.rdb.Close()
	})
	return c.closeErr
}

func (c *Client) Unwrap() *goredis.Client {
	return c.rdb
}
