package importer

import (
	"fmt"

	"github.com/kailas-cloud/docflat/internal/domain/mapping"
)

// OnError selects what a run does with a row that cannot be built.
type OnError string

const (
	// OnErrorAbort ends the run at the first failed row.
	OnErrorAbort OnError = "abort"
	// OnErrorSkip counts the row as skipped and moves on.
	OnErrorSkip OnError = "skip"
)

// DefaultPK is the row key used as document id when an entity names none.
const DefaultPK = "_id"

// Entity describes one importable collection.
type Entity struct {
	Name       string
	Collection string
	Query      string
	DeltaQuery string
	PK         string
	OnError    OnError
	Rules      []mapping.Rule
}

// Validate checks required settings and fills defaults.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity name is required")
	}
	if e.Collection == "" {
		return fmt.Errorf("entity %q: collection is required", e.Name)
	}
	if e.PK == "" {
		e.PK = DefaultPK
	}
	switch e.OnError {
	case "":
		e.OnError = OnErrorAbort
	case OnErrorAbort, OnErrorSkip:
	default:
		return fmt.Errorf("entity %q: unknown on_error %q", e.Name, e.OnError)
	}
	return nil
}
