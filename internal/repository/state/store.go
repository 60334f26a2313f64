// Package state persists per-entity import state in the sink's key-value space.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docflat/internal/db"
)

// store is the consumer interface for import state (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Store implements importer.StateStore on top of GET/SET.
type Store struct {
	store  store
	prefix string
}

// New creates a state store. Keys are <prefix>:state:<entity>:last_index_time.
func New(s store, prefix string) *Store {
	return &Store{store: s, prefix: prefix}
}

// LastIndexTime returns the start time of the entity's last successful run.
// The bool is false when no run has completed yet.
func (s *Store) LastIndexTime(ctx context.Context, entity string) (time.Time, bool, error) {
	key := s.key(entity)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("state GET %s: %w", key, err)
	}

	t, err := time.Parse(time.RFC3339Nano, string(data))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("state GET %s parse: %w", key, err)
	}
	return t, true, nil
}

// SetLastIndexTime records t as the entity's last index time.
func (s *Store) SetLastIndexTime(ctx context.Context, entity string, t time.Time) error {
	key := s.key(entity)
	if err := s.store.Set(ctx, key, []byte(t.UTC().Format(time.RFC3339Nano)), 0); err != nil {
		return fmt.Errorf("state SET %s: %w", key, err)
	}
	return nil
}

func (s *Store) key(entity string) string {
	return fmt.Sprintf("%s:state:%s:last_index_time", s.prefix, entity)
}
