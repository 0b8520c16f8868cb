package skeleton

import "errors"

var ErrUnknownRole = errors.New("unknown bone role")
