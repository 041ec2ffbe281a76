package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional update finds the row changed
	// since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

func first[T any](rows []T) (T, bool) {
	var zero T
	if len(rows) == 0 {
		return zero, false
	}
	return rows[0], true
}
