package exports

import "errors"

var (
	ErrNotFound     = errors.New("export not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady is returned when the file of an unfinished export is requested.
	ErrNotReady = errors.New("export not ready")
)
