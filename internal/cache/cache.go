package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound reports a missing or expired entry. Callers treat it as a
// cache miss, never as a failure.
var ErrNotFound = errors.New("cache: key not found")

// Store represents a simple TTL-based cache abstraction that can be backed
// by memory, Redis, LevelDB, or PostgreSQL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON loads a cached entry and unmarshals it into out.
func GetJSON(ctx context.Context, s Store, key string, out any) error {
	payload, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, out)
}

// SetJSON marshals v and stores it under key with the given TTL.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, key, payload, ttl)
}
