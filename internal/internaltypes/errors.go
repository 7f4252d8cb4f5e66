package internaltypes

import "errors"

var (
	// ErrUnauthorized means the marketplace session was rejected upstream.
	ErrUnauthorized = errors.New("unauthorized: marketplace session missing or expired")
	ErrNotFound     = errors.New("not found")
)
