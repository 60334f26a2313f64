package db

import "errors"

// Sentinel errors for sink operations.
var (
	ErrKeyNotFound   = errors.New("db: key not found")
	ErrIndexNotFound = errors.New("db: index not found")
	ErrIndexExists   = errors.New("db: index already exists")
)

// Op names the sink command that failed.
const (
	OpCreateIndex = "FT.CREATE"
	OpDropIndex   = "FT.DROPINDEX"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpDel         = "DEL"
	OpHSet        = "HSET"
	OpScan        = "SCAN"
	OpGet         = "GET"
	OpSet         = "SET"
	OpJSONSet     = "JSON.SET"
)

// Error is a failed sink command. Key is the row, state or cache key, or the
// index name, and is empty for commands that touch many keys.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// FailedKey returns the key of the first *Error in err's chain.
func FailedKey(err error) (string, bool) {
	var dbErr *Error
	if errors.As(err, &dbErr) && dbErr.Key != "" {
		return dbErr.Key, true
	}
	return "", false
}
