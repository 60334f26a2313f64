package importer

import (
	"context"
	"fmt"
	"iter"

	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/row"
	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// Rows turns a cursor into a single-pass sequence of transformed rows. It
// holds the cursor, the builder and the transformer and nothing else; the
// cursor is closed exactly once, on exhaustion, on failure or on Close.
// Rows is not safe for concurrent use.
type Rows struct {
	cur       Cursor
	builder   *row.Builder
	transform *mapping.Transformer

	pending  *value.Document
	released bool
	closeErr error
}

// NewRows wraps cur. transform may be nil.
func NewRows(cur Cursor, builder *row.Builder, transform *mapping.Transformer) *Rows {
	return &Rows{cur: cur, builder: builder, transform: transform}
}

// HasNext reports whether a document is available. It returns false once the
// cursor is exhausted and releases it; later calls return false without
// touching the cursor. A failure while advancing releases the cursor and is
// returned as a fatal query error.
func (r *Rows) HasNext(ctx context.Context) (bool, error) {
	if r.pending != nil {
		return true, nil
	}
	if r.released {
		return false, nil
	}
	if r.cur.Next(ctx) {
		r.pending = r.cur.Current()
		return true, nil
	}

	err := r.cur.Err()
	r.release(ctx)
	if err != nil {
		return false, domain.NewQueryError("cursor advance failed", err)
	}
	return false, nil
}

// Next builds the next row. With nothing left it returns ErrExhausted. A row
// that cannot be built consumes its document and returns an error wrapping
// ErrRowFailed; the sequence can continue after it.
func (r *Rows) Next(ctx context.Context) (row.Row, error) {
	ok, err := r.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrExhausted
	}

	doc := r.pending
	r.pending = nil

	out, err := r.builder.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRowFailed, err)
	}
	if r.transform != nil {
		out = r.transform.Apply(out)
	}
	return out, nil
}

// All yields rows until the sequence ends. Row failures are yielded with a nil
// row and iteration goes on; a fatal error is yielded last.
func (r *Rows) All(ctx context.Context) iter.Seq2[row.Row, error] {
	return func(yield func(row.Row, error) bool) {
		for {
			ok, err := r.HasNext(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(r.Next(ctx)) {
				return
			}
		}
	}
}

// Close releases the cursor. Calls after the first are no-ops.
func (r *Rows) Close(ctx context.Context) error {
	r.release(ctx)
	return r.closeErr
}

// Released reports whether the cursor has been closed.
func (r *Rows) Released() bool { return r.released }

func (r *Rows) release(ctx context.Context) {
	if r.released {
		return
	}
	r.released = true
	r.pending = nil
	r.closeErr = r.cur.Close(context.WithoutCancel(ctx))
}
