// Package mapping holds the field-level transform stage applied to flat rows:
// copying a source field to a target column and reparsing date strings into
// the canonical index format.
package mapping

import (
	"fmt"
	"slices"
)

// IndexType is the search index type of a target column.
type IndexType string

const (
	IndexText    IndexType = "text"
	IndexTag     IndexType = "tag"
	IndexNumeric IndexType = "numeric"
	// IndexNone keeps the column in the stored row without indexing it.
	IndexNone IndexType = "none"
)

// Rule maps a source path in the flat row to a target column, optionally
// reparsing the value as a date.
type Rule struct {
	source     string
	target     string
	dateFormat *DateFormat
	indexType  IndexType
}

// NewRule validates and compiles a rule. An empty target writes back to the
// source name. An empty index type defaults to text.
func NewRule(source, target, datePattern string, indexType IndexType) (Rule, error) {
	if source == "" && target == "" {
		return Rule{}, fmt.Errorf("rule needs a source field or a target column")
	}
	switch indexType {
	case "":
		indexType = IndexText
	case IndexText, IndexTag, IndexNumeric, IndexNone:
	default:
		return Rule{}, fmt.Errorf("rule %q: unknown index type %q", source, indexType)
	}

	r := Rule{source: source, target: target, indexType: indexType}
	if datePattern != "" {
		f, err := CompileDateFormat(datePattern)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q: %w", source, err)
		}
		r.dateFormat = f
	}
	return r, nil
}

// Source returns the dotted source path; empty for column-only rules.
func (r Rule) Source() string { return r.source }

// Target returns the column the value is written to.
func (r Rule) Target() string {
	if r.target == "" {
		return r.source
	}
	return r.target
}

// DateFormat returns the compiled date format, or nil.
func (r Rule) DateFormat() *DateFormat { return r.dateFormat }

// IndexType returns the index type of the target column.
func (r Rule) IndexType() IndexType { return r.indexType }

// DateRegistry maps dotted source paths to the date format declared for them.
// It is built once per session and only read afterwards.
type DateRegistry struct {
	formats map[string]*DateFormat
}

// NewDateRegistry collects the date formats of rules that declare one.
// When several rules read the same source, the first one wins.
func NewDateRegistry(rules []Rule) *DateRegistry {
	reg := &DateRegistry{formats: make(map[string]*DateFormat)}
	for _, r := range rules {
		if r.source == "" || r.dateFormat == nil {
			continue
		}
		if _, ok := reg.formats[r.source]; !ok {
			reg.formats[r.source] = r.dateFormat
		}
	}
	return reg
}

// Lookup returns the format registered for source.
func (r *DateRegistry) Lookup(source string) (*DateFormat, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.formats[source]
	return f, ok
}

// Len returns the number of registered date fields.
func (r *DateRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.formats)
}

// Sources returns the registered source paths in sorted order.
func (r *DateRegistry) Sources() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.formats))
	for k := range r.formats {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
