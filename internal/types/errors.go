package types

import "errors"

var (
	// ErrNotFound is a lookup miss. Expected on the hot path, surfaced as
	// 404, never logged as an error.
	ErrNotFound = errors.New("short code not found")

	// ErrDuplicateCode is a unique-constraint violation on insert. Handled
	// internally by the shortener's retry loop.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrExhaustedKeyspace means code generation kept colliding past the
	// retry bound. Fatal to the create request.
	ErrExhaustedKeyspace = errors.New("exhausted short code generation attempts")

	// ErrInvalidRange is a reporting query with start after end.
	ErrInvalidRange = errors.New("invalid time range")
)
