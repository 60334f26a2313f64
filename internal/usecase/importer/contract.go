package importer

import (
	"context"
	"time"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/row"
	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// Cursor is a forward-only result cursor owned by a single session.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() *value.Document
	Err() error
	Close(ctx context.Context) error
}

// Source runs queries against the document store.
type Source interface {
	Find(ctx context.Context, collection, query string) (Cursor, error)
}

// Sink receives the rows of an entity.
type Sink interface {
	EnsureIndex(ctx context.Context, entity string, rules []mapping.Rule, vectorDim int) error
	PutBatch(ctx context.Context, entity string, rows []row.Keyed) error
	Clean(ctx context.Context, entity string) (int, error)
}

// StateStore persists the start time of the last successful run per entity.
type StateStore interface {
	LastIndexTime(ctx context.Context, entity string) (time.Time, bool, error)
	SetLastIndexTime(ctx context.Context, entity string, t time.Time) error
}

// Embedder vectorizes row text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
