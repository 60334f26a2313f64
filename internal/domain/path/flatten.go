// Package path computes the dotted-path leaves of a nested document and
// resolves dotted paths back into values.
//
// A dotted path is made of segments joined by '.'. A segment is a map key or,
// below an array, a decimal index. Keys that themselves contain '.' cannot be
// addressed unambiguously; resolving such a path reports an error instead of
// guessing.
package path

import (
	"slices"
	"strconv"

	"github.com/kailas-cloud/docflat/internal/domain/value"
)

// Separator joins path segments.
const Separator = "."

// Set is a deduplicated collection of dotted paths.
type Set map[string]struct{}

// Add inserts p.
func (s Set) Add(p string) { s[p] = struct{}{} }

// Has reports whether p is in the set.
func (s Set) Has(p string) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the paths in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Join appends seg to parent. An empty parent yields seg unchanged.
func Join(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + Separator + seg
}

// Flatten returns every addressable leaf of doc, prefixed with parent.
//
// Sub-documents never appear as leaves themselves; their keys are walked.
// Arrays are walked element by element: document and array elements recurse
// under "key.i". An array with no container elements (scalars only, or empty)
// is a single leaf at "key".
//
// Mixed arrays such as [1, {"x": 2}] only surface the container elements
// ("key.1.x"). The scalar siblings are not reachable as leaves and the array
// itself is not added either.
func Flatten(doc *value.Document, parent string) Set {
	out := make(Set)
	flattenDocument(out, doc, parent)
	return out
}

// TopLevel returns the document's own keys without descending.
func TopLevel(doc *value.Document) Set {
	out := make(Set, doc.Len())
	for _, k := range doc.Keys() {
		out.Add(k)
	}
	return out
}

func flattenDocument(out Set, doc *value.Document, parent string) {
	for k, v := range doc.All() {
		flattenValue(out, v, Join(parent, k))
	}
}

func flattenValue(out Set, v value.Value, at string) {
	switch v.Kind() {
	case value.KindDocument:
		flattenDocument(out, v.Document(), at)
	case value.KindArray:
		scalarsOnly := true
		for i, e := range v.Array() {
			if !e.IsContainer() {
				continue
			}
			scalarsOnly = false
			flattenValue(out, e, Join(at, strconv.Itoa(i)))
		}
		if scalarsOnly {
			out.Add(at)
		}
	default:
		out.Add(at)
	}
}
