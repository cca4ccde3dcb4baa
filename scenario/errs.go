package scenario

import "errors"

var (
	ErrInvalid      = errors.New("invalid scenario")
	ErrNoCollection = errors.New("no such collection")
)
