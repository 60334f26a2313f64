package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEntity signals an entity name absent from the configuration.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrBusy signals that the entity already has a running import.
	ErrBusy = errors.New("import already running")
	// ErrNotRunning signals an abort for an entity with no running import.
	ErrNotRunning = errors.New("import not running")
	// ErrExhausted signals a Next call on a row sequence with nothing left.
	ErrExhausted = errors.New("row sequence exhausted")
	// ErrRowFailed signals a row that could not be built.
	ErrRowFailed = errors.New("row failed")
	// ErrAborted signals a run stopped by an abort command.
	ErrAborted = errors.New("import aborted")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmptyDocument signals row text with nothing to embed.
	ErrEmptyDocument = errors.New("empty document text")

	// ErrFatal matches every *FatalError.
	ErrFatal = errors.New("fatal")
)

// FatalKind classifies a fatal error.
type FatalKind string

const (
	FatalConfiguration FatalKind = "configuration"
	FatalConnection    FatalKind = "connection"
	FatalQuery         FatalKind = "query"
)

// FatalError ends a session. Cursor and connection are released before it
// reaches the caller.
type FatalError struct {
	Kind    FatalKind
	Message string
	Err     error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFatal) hold for any fatal error.
func (e *FatalError) Is(target error) bool { return target == ErrFatal }

// NewConfigError creates a fatal configuration error.
func NewConfigError(msg string, cause error) error {
	return &FatalError{Kind: FatalConfiguration, Message: msg, Err: cause}
}

// NewConnectionError creates a fatal connection error.
func NewConnectionError(msg string, cause error) error {
	return &FatalError{Kind: FatalConnection, Message: msg, Err: cause}
}

// NewQueryError creates a fatal query error.
func NewQueryError(msg string, cause error) error {
	return &FatalError{Kind: FatalQuery, Message: msg, Err: cause}
}

// FatalKindOf returns the kind of the first *FatalError in err's chain.
func FatalKindOf(err error) (FatalKind, bool) {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}
