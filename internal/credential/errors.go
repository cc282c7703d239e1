package credential

import "errors"

var (
	// ErrNotFound is returned by administrative operations on an unknown id.
	ErrNotFound = errors.New("no such credential identifier")

	ErrInvalidCount    = errors.New("invalid issue count")
	ErrInvalidValidity = errors.New("invalid validity days")
	ErrUnknownAction   = errors.New("unknown credential action")
)
