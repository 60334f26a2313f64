// Package db is the search sink contract: entity rows under per-entity key
// prefixes, small state and cache entries, and one FT index per entity.
package db

import (
	"context"
	"time"
)

// Store is the full sink. Consumers declare the narrow slice they use.
type Store interface {
	Ping(ctx context.Context) error
	RowStore
	KVStore
	IndexManager
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// HashSetItem is one row on hash storage.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// JSONSetItem is one row on JSON storage; Path is "$" for whole rows.
type JSONSetItem struct {
	Key  string
	Path string
	Data []byte
}

// RowStore writes, lists and removes rows. Writes replace the row at key.
type RowStore interface {
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HReplaceMulti(ctx context.Context, items []HashSetItem) error
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []JSONSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
}

// KVStore holds import state and cached embeddings.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager manages the FT index of each entity.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CountDocuments(ctx context.Context, name string) (int, error)
}
