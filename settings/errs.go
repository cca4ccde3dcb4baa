package settings

import "errors"

var ErrNoNodes = errors.New("settings view has no nodes")
