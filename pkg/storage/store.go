// ABOUTME: Transactional key-value contract shared by every storage backend
// ABOUTME: Snapshot reads through View, atomic batched writes through Update

package storage

import (
	"context"

	"github.com/zeebo/errs"
)

// Error is the class of storage failures.
var Error = errs.Class("storage")

var (
	// ErrEmptyKey is returned when writing an empty key.
	ErrEmptyKey = Error.New("empty key")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = Error.New("store closed")
)

// Reader reads a consistent snapshot of the store.
type Reader interface {
	// Get returns the value stored at key. The value must not be retained
	// after the transaction ends.
	Get(key []byte) ([]byte, bool, error)
	// Scan calls fn for every key with the given prefix in ascending order
	// until fn returns false.
	Scan(prefix []byte, fn func(key, value []byte) bool) error
}

// Writer is a read-write transaction. Reads observe the transaction's own
// writes.
type Writer interface {
	Reader
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Store is a transactional ordered key-value store.
type Store interface {
	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(Reader) error) error
	// Update runs fn in a read-write transaction. All writes made by fn are
	// committed together if fn returns nil, and discarded otherwise.
	Update(ctx context.Context, fn func(Writer) error) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Collect scans prefix and returns copies of all matching keys.
func Collect(r Reader, prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := r.Scan(prefix, func(key, _ []byte) bool {
		keys = append(keys, append([]byte(nil), key...))
		return true
	})
	return keys, err
}

// Clone returns a copy of b that is safe to retain.
func Clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}
