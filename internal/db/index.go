package db

import (
	"errors"
	"fmt"
	"strings"
)

// StorageType is how rows are stored under an entity's key prefix.
type StorageType string

const (
	// StorageHash stores rows as hashes of text fields.
	StorageHash StorageType = "HASH"
	// StorageJSON stores rows as JSON documents.
	StorageJSON StorageType = "JSON"
)

// TagSeparator joins the elements of an array column on hash storage, and
// tag fields on hash storage split on it. Commas inside a single value stay
// part of the tag.
const TagSeparator = "|"

// DistanceMetric of the row vector field.
type DistanceMetric string

// Supported distance metrics.
const (
	DistanceCosine DistanceMetric = "COSINE"
	DistanceIP     DistanceMetric = "IP"
	DistanceL2     DistanceMetric = "L2"
)

// ParseDistance reads a configured metric name, case-insensitively.
// Empty means cosine.
func ParseDistance(s string) (DistanceMetric, error) {
	switch d := DistanceMetric(strings.ToUpper(strings.TrimSpace(s))); d {
	case "":
		return DistanceCosine, nil
	case DistanceCosine, DistanceIP, DistanceL2:
		return d, nil
	default:
		return "", fmt.Errorf("unknown vector distance %q", s)
	}
}

// IndexFieldType is the schema type of an indexed column.
type IndexFieldType int

// Index field types.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldText
	IndexFieldVector
)

// IndexField is one attribute of an FT.CREATE schema.
type IndexField struct {
	Name  string // column on hash storage, JSON path on JSON storage
	Alias string
	Type  IndexFieldType

	Separator string // TAG

	Dim      int            // VECTOR
	Distance DistanceMetric // VECTOR
}

// IndexDefinition is the search index of one entity.
type IndexDefinition struct {
	Name        string
	StorageType StorageType
	Prefixes    []string
	Fields      []IndexField
}

// Validate checks the definition before FT.CREATE.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return fmt.Errorf("index name %q contains invalid characters", idx.Name)
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]struct{}, len(idx.Fields))
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		attr := f.Name
		if f.Alias != "" {
			attr = f.Alias
		}
		if _, dup := seen[attr]; dup {
			return fmt.Errorf("duplicate field name: %s", attr)
		}
		seen[attr] = struct{}{}

		if f.Type == IndexFieldVector && f.Dim <= 0 {
			return fmt.Errorf("vector field %s requires positive DIM", attr)
		}
	}
	return nil
}

// FieldAlias turns a row column such as "author.name" into an index
// attribute name: characters outside [a-zA-Z0-9_] become '_'.
func FieldAlias(column string) string {
	return strings.Map(func(r rune) rune {
		if isWordRune(r) {
			return r
		}
		return '_'
	}, column)
}

// JSONPath addresses a top-level member of a JSON document. Dotted row
// columns are top-level members, so bracket notation is used.
func JSONPath(column string) string {
	return `$["` + strings.ReplaceAll(column, `"`, `\"`) + `"]`
}

// IsValidIdentifier reports whether s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) && r != ':' && r != '-' {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}
