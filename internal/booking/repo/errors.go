package repo

import "errors"

var (
	// ErrNotFound indicates a missing row.
	ErrNotFound = errors.New("booking: not found")
	// ErrConflict indicates a conditional update matched no row.
	ErrConflict = errors.New("booking: conflicting update")
)
