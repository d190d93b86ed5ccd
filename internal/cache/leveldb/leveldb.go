// Package leveldb implements cache.Store on top of a local LevelDB
// database. It is the server-side counterpart of the browser cache the
// portfolio site keeps in localStorage: entries survive restarts and carry
// their own expiry stamp inside the stored envelope.
package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"portfolio-proxy/internal/cache"
)

type envelope struct {
	ExpiresAt time.Time `json:"expires_at"`
	Payload   []byte    `json:"payload"`
}

// Store persists cache entries in a LevelDB database on disk.
type Store struct {
	db  *leveldb.DB
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the wall clock used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open creates or opens the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("leveldb: get %s: %w", key, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// unreadable entries are dropped, not surfaced
		_ = s.db.Delete([]byte(key), nil)
		return nil, cache.ErrNotFound
	}

	if !env.ExpiresAt.IsZero() && s.now().After(env.ExpiresAt) {
		_ = s.db.Delete([]byte(key), nil)
		return nil, cache.ErrNotFound
	}

	return env.Payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := envelope{Payload: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("leveldb: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("leveldb: delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
