package db

import "errors"

var (
	// ErrKeyNotFound is returned by Get for a missing key.
	ErrKeyNotFound = errors.New("db: key not found")
	// ErrIndexNotFound is returned when dropping a missing FT index.
	ErrIndexNotFound = errors.New("db: index not found")
	// ErrIndexExists is returned when creating an FT index that already exists.
	ErrIndexExists = errors.New("db: index already exists")
	// ErrClosed is returned by Ping on a closed embedded store.
	ErrClosed = errors.New("db: store closed")
)

// Error names the failing command and, when there is one, the key.
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
