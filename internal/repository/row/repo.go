// Package row stores import rows in the search sink, one key per row.
package row

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docflat/internal/db"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	domrow "github.com/kailas-cloud/docflat/internal/domain/row"
)

// DefaultPrefix is the key namespace used when none is configured.
const DefaultPrefix = "docflat"

// cleanBatch bounds the number of keys per DEL.
const cleanBatch = 500

// store is the consumer interface for rows (ISP).
type store interface {
	JSONSet(ctx context.Context, key, path string, data []byte) error
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	HReplace(ctx context.Context, key string, fields map[string]string) error
	HReplaceMulti(ctx context.Context, items []db.HashSetItem) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) (int, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	CountDocuments(ctx context.Context, name string) (int, error)
}

// Repo implements importer.Sink on top of a Redis-compatible search store.
type Repo struct {
	store       store
	prefix      string
	storage     db.StorageType
	createIndex bool
	distance    db.DistanceMetric
}

// New creates a row repository. An empty prefix falls back to DefaultPrefix,
// an empty storage type to JSON.
func New(s store, prefix string, storage db.StorageType, createIndex bool) *Repo {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if storage == "" {
		storage = db.StorageJSON
	}
	return &Repo{store: s, prefix: prefix, storage: storage, createIndex: createIndex, distance: db.DistanceCosine}
}

// WithVectorDistance sets the distance metric of the vector field.
func (r *Repo) WithVectorDistance(d db.DistanceMetric) *Repo {
	r.distance = d
	return r
}

// Put writes r under the entity's key for id, replacing any previous row.
func (r *Repo) Put(ctx context.Context, entity, id string, row domrow.Row) error {
	key := r.rowKey(entity, id)

	if r.storage == db.StorageHash {
		fields, err := buildHashFields(row)
		if err != nil {
			return fmt.Errorf("encode row %s: %w", key, err)
		}
		if err := r.store.HReplace(ctx, key, fields); err != nil {
			return fmt.Errorf("hset %s: %w", key, err)
		}
		return nil
	}

	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal row %s: %w", key, err)
	}
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// PutBatch writes rows in one pipeline. A single row goes through Put.
func (r *Repo) PutBatch(ctx context.Context, entity string, rows []domrow.Keyed) error {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		return r.Put(ctx, entity, rows[0].ID, rows[0].Row)
	}

	if r.storage == db.StorageHash {
		items := make([]db.HashSetItem, 0, len(rows))
		for _, kr := range rows {
			key := r.rowKey(entity, kr.ID)
			fields, err := buildHashFields(kr.Row)
			if err != nil {
				return fmt.Errorf("encode row %s: %w", key, err)
			}
			items = append(items, db.HashSetItem{Key: key, Fields: fields})
		}
		if err := r.store.HReplaceMulti(ctx, items); err != nil {
			return r.batchError("hset", entity, len(items), err)
		}
		return nil
	}

	items := make([]db.JSONSetItem, 0, len(rows))
	for _, kr := range rows {
		key := r.rowKey(entity, kr.ID)
		data, err := json.Marshal(kr.Row)
		if err != nil {
			return fmt.Errorf("marshal row %s: %w", key, err)
		}
		items = append(items, db.JSONSetItem{Key: key, Path: "$", Data: data})
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return r.batchError("json.set", entity, len(items), err)
	}
	return nil
}

// Clean deletes every stored row of entity and returns how many were removed.
// With index creation enabled the entity's index is dropped as well, the
// caller re-creates it through EnsureIndex.
func (r *Repo) Clean(ctx context.Context, entity string) (int, error) {
	if r.createIndex {
		err := r.store.DropIndex(ctx, r.indexName(entity))
		if err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("drop index %s: %w", r.indexName(entity), err)
		}
	}

	keys, err := r.store.Scan(ctx, r.entityPrefix(entity)+"*")
	if err != nil {
		return 0, fmt.Errorf("scan %s: %w", entity, err)
	}

	total := 0
	for start := 0; start < len(keys); start += cleanBatch {
		end := min(start+cleanBatch, len(keys))
		n, err := r.store.Del(ctx, keys[start:end]...)
		if err != nil {
			return total, fmt.Errorf("del %s: %w", entity, err)
		}
		total += n
	}
	return total, nil
}

// EnsureIndex creates the search index of entity when index creation is
// enabled. An existing index is left as is.
func (r *Repo) EnsureIndex(ctx context.Context, entity string, rules []mapping.Rule, vectorDim int) error {
	if !r.createIndex {
		return nil
	}
	def, err := r.buildIndex(entity, rules, vectorDim)
	if err != nil {
		return fmt.Errorf("build index for %s: %w", entity, err)
	}
	if def == nil {
		return nil
	}
	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", def.Name, err)
	}
	if exists {
		return nil
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Count returns the number of rows the entity's index holds.
func (r *Repo) Count(ctx context.Context, entity string) (int, error) {
	n, err := r.store.CountDocuments(ctx, r.indexName(entity))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", entity, err)
	}
	return n, nil
}

// batchError names the first rejected row when the store reports its key.
func (r *Repo) batchError(op, entity string, n int, err error) error {
	if key, ok := db.FailedKey(err); ok {
		if id, found := strings.CutPrefix(key, r.entityPrefix(entity)); found {
			return fmt.Errorf("%s batch of %d stopped at row %s: %w", op, n, id, err)
		}
	}
	return fmt.Errorf("%s batch of %d: %w", op, n, err)
}

func (r *Repo) rowKey(entity, id string) string {
	return r.entityPrefix(entity) + id
}

func (r *Repo) entityPrefix(entity string) string {
	return fmt.Sprintf("%s:%s:", r.prefix, entity)
}

func (r *Repo) indexName(entity string) string {
	return fmt.Sprintf("%s:idx:%s", r.prefix, entity)
}
