package ruletree

import "errors"

var (
	// ErrInvalidAddress is returned when an address doesn't resolve: a
	// prefix isn't an internal node, or delMatch(()) is attempted on an
	// internal root (rejected outright rather than silently guessed at).
	ErrInvalidAddress = errors.New("ruletree: invalid address")
	// ErrInvalidConnector is returned for a connector other than AND/OR.
	ErrInvalidConnector = errors.New("ruletree: invalid connector")
)
