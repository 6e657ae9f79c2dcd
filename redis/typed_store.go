package redis

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// TypedStore reads and writes JSON values of one type under a key prefix.
type TypedStore[C any] struct {
	client    *Client
	keyPrefix string
}

// NewTypedStore creates a store whose keys are "{keyPrefix}:{key}".
func NewTypedStore[C any](client *Client, keyPrefix string) *TypedStore[C] {
	return &TypedStore[C]{client: client, keyPrefix: keyPrefix}
}

func (s *TypedStore[C]) fullKey(key string) string {
	if s.keyPrefix == "" {
		return key
	}
	return s.keyPrefix + ":" + key
}

// Load returns (nil, nil) when key does not exist.
func (s *TypedStore[C]) Load(ctx context.Context, key string) (*C, error) {
	var val C
	err := s.client.GetJSON(ctx, s.fullKey(key), &val)
	if stderrors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("typed store load %q: %w", key, err)
	}
	return &val, nil
}

// Save stores val with ttl. A zero ttl means no expiration.
func (s *TypedStore[C]) Save(ctx context.Context, key string, val *C, ttl time.Duration) error {
	if err := s.client.SetJSON(ctx, s.fullKey(key), val, ttl); err != nil {
		return fmt.Errorf("typed store save %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *TypedStore[C]) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)); err != nil {
		return fmt.Errorf("typed store delete %q: %w", key, err)
	}
	return nil
}
