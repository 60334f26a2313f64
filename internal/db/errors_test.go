package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("OOM command not allowed")

	keyed := &Error{Op: OpJSONSet, Key: "docflat:posts:42", Err: cause}
	assert.Equal(t, "JSON.SET docflat:posts:42: OOM command not allowed", keyed.Error())
	assert.ErrorIs(t, keyed, cause)

	bare := &Error{Op: OpScan, Err: cause}
	assert.Equal(t, "SCAN: OOM command not allowed", bare.Error())
}

func TestFailedKey(t *testing.T) {
	err := fmt.Errorf("write batch: %w", &Error{Op: OpHSet, Key: "docflat:posts:7", Err: errors.New("READONLY")})
	key, ok := FailedKey(err)
	assert.True(t, ok)
	assert.Equal(t, "docflat:posts:7", key)

	_, ok = FailedKey(fmt.Errorf("write batch: %w", &Error{Op: OpDel, Err: errors.New("READONLY")}))
	assert.False(t, ok)

	_, ok = FailedKey(ErrKeyNotFound)
	assert.False(t, ok)
}
