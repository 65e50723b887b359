package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidToken indicates API authentication failure.
	ErrInvalidToken = errors.New("invalid api token")
)
