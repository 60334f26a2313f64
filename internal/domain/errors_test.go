package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatalError(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("open session: %w", NewConnectionError("ping mongo", cause))

	assert.ErrorIs(t, err, ErrFatal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "open session: connection error: ping mongo: connection refused", err.Error())

	kind, ok := FatalKindOf(err)
	assert.True(t, ok)
	assert.Equal(t, FatalConnection, kind)
}

func TestFatalError_WithoutCause(t *testing.T) {
	err := NewConfigError("mongo.database is required", nil)
	assert.Equal(t, "configuration error: mongo.database is required", err.Error())
	assert.ErrorIs(t, err, ErrFatal)

	kind, _ := FatalKindOf(NewQueryError("bad json", nil))
	assert.Equal(t, FatalQuery, kind)
}

func TestFatalKindOf_NotFatal(t *testing.T) {
	_, ok := FatalKindOf(ErrRowFailed)
	assert.False(t, ok)
	assert.NotErrorIs(t, ErrRowFailed, ErrFatal)
}
