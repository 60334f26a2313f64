package docflat

import (
	"github.com/kailas-cloud/docflat/internal/domain"
	"github.com/kailas-cloud/docflat/internal/domain/mapping"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	// ErrFatal matches configuration, connection and query failures.
	ErrFatal = domain.ErrFatal
	// ErrExhausted is returned by Next when no rows are left.
	ErrExhausted = domain.ErrExhausted
	// ErrRowFailed wraps a document that could not become a row.
	ErrRowFailed = domain.ErrRowFailed
	// ErrUnsupportedPattern signals a date pattern with no Go equivalent.
	ErrUnsupportedPattern = mapping.ErrUnsupportedPattern
)

// FatalError carries the category of a fatal failure.
type FatalError = domain.FatalError

// DateError describes a date value that could not be reparsed. The affected
// column is nil in the row.
type DateError = mapping.DateError
