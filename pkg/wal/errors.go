// Package wal implements the write-ahead journal that makes the in-memory
// store durable across restarts.
package wal

import "github.com/zeebo/errs"

// Error is the class of journal failures.
var Error = errs.Class("wal")

var (
	// ErrCorrupted indicates a corrupted entry (CRC mismatch)
	ErrCorrupted = Error.New("corrupted entry")

	// ErrTruncated indicates a truncated entry
	ErrTruncated = Error.New("truncated entry")

	// ErrClosed indicates an operation on a closed log
	ErrClosed = Error.New("log closed")
)
