package predicate

import "errors"

var (
	// ErrInvalidMatchfield is returned when a matchfield token doesn't parse.
	ErrInvalidMatchfield = errors.New("predicate: invalid matchfield")
	// ErrInvalidOperator is returned when an operator token is unrecognized.
	ErrInvalidOperator = errors.New("predicate: invalid operator")
)
