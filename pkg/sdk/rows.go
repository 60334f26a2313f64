package docflat

import (
	"context"
	"iter"

	"github.com/kailas-cloud/docflat/internal/domain/row"
	"github.com/kailas-cloud/docflat/internal/usecase/importer"
)

// Row maps column names to nil, bool, int64, float64, string, []any or
// map[string]any. Scalar-only arrays are []any in both modes; documents
// appear as map[string]any only with flattening off.
type Row = row.Row

// Rows is a single-pass sequence of rows backed by an open cursor. The cursor
// is closed on exhaustion, on a fatal error or on Close.
type Rows struct {
	inner *importer.Rows
	obs   *observer
}

// HasNext reports whether another row is available.
func (r *Rows) HasNext(ctx context.Context) (bool, error) {
	return r.inner.HasNext(ctx) //nolint:wrapcheck // fatal domain error
}

// Next returns the next row, ErrExhausted when none are left, or an error
// wrapping ErrRowFailed for a document that could not be converted.
func (r *Rows) Next(ctx context.Context) (Row, error) {
	out, err := r.inner.Next(ctx)
	if err == nil {
		r.obs.row()
	}
	return out, err //nolint:wrapcheck // domain errors
}

// All yields every remaining row. Failed rows are yielded with a nil row and
// iteration continues; a fatal error ends it.
func (r *Rows) All(ctx context.Context) iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for out, err := range r.inner.All(ctx) {
			if err == nil {
				r.obs.row()
			}
			if !yield(out, err) {
				return
			}
		}
	}
}

// Close releases the cursor. Calls after the first are no-ops.
func (r *Rows) Close(ctx context.Context) error {
	return r.inner.Close(ctx) //nolint:wrapcheck // driver error
}
