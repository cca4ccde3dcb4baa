package node

import "errors"

var (
	ErrNullKey              = errors.New("null key")
	ErrReadOnly             = errors.New("read only key")
	ErrCircularReference    = errors.New("circular reference")
	ErrDuplicateDeclaration = errors.New("duplicate key declaration")
	ErrNoTransaction        = errors.New("no transaction")
	ErrNotCollection        = errors.New("not a collection")
)
