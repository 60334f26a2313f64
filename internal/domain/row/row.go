// Package row builds flat rows out of nested documents.
package row

import (
	"slices"

	"github.com/kailas-cloud/docflat/internal/domain/mapping"
	"github.com/kailas-cloud/docflat/internal/domain/path"
	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// Row maps a plain or dotted key to nil, bool, int64, float64, string,
// []any or map[string]any.
type Row map[string]any

// Keyed pairs a row with its document id.
type Keyed struct {
	ID  string
	Row Row
}

// Keys returns the row keys in lexical order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Serialize converts v into its portable form. Arrays are serialized element
// by element and documents become map[string]any, so no store type leaks into
// a row.
func Serialize(v value.Value) any {
	return v.Interface()
}

// Builder turns documents into rows. It holds no per-document state and may
// be reused for every document of a session.
type Builder struct {
	flatten bool
	dates   *mapping.DateRegistry
	report  mapping.Reporter
}

// Option configures a Builder.
type Option func(*Builder)

// WithFlatten toggles dotted-path flattening. When off, only top-level keys
// are emitted and nested values are serialized whole.
func WithFlatten(on bool) Option {
	return func(b *Builder) { b.flatten = on }
}

// WithDateRegistry reformats string values of registered paths while the row
// is built.
func WithDateRegistry(reg *mapping.DateRegistry) Option {
	return func(b *Builder) { b.dates = reg }
}

// WithReporter receives date conversion failures.
func WithReporter(r mapping.Reporter) Option {
	return func(b *Builder) { b.report = r }
}

// NewBuilder creates a builder. Flattening is on by default.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{flatten: true}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Flatten reports whether the builder emits dotted paths.
func (b *Builder) Flatten() bool { return b.flatten }

// Build produces the row for doc. A path that cannot be resolved fails the
// whole row with a *path.Error.
func (b *Builder) Build(doc *value.Document) (Row, error) {
	if !b.flatten {
		out := make(Row, doc.Len())
		for k, v := range doc.All() {
			out[k] = b.cell(k, v)
		}
		return out, nil
	}

	keys := path.Flatten(doc, "")
	out := make(Row, len(keys))
	for _, k := range keys.Sorted() {
		v, err := path.Resolve(doc, k)
		if err != nil {
			return nil, err
		}
		out[k] = b.cell(k, v)
	}
	return out, nil
}

func (b *Builder) cell(key string, v value.Value) any {
	if f, ok := b.dates.Lookup(key); ok {
		// Native datetimes need no parsing.
		if t, isTime := v.DateTime(); isTime {
			return t.Format(mapping.CanonicalLayout)
		}
		if s, isString := v.Text(); isString {
			return mapping.ReformatDate(key, s, f, b.report)
		}
	}
	return Serialize(v)
}
