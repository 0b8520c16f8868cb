package encoding

import "errors"

var (
	ErrShortPayload     = errors.New("pose payload shorter than header")
	ErrShortFrame       = errors.New("frame truncated")
	ErrUnknownKind      = errors.New("unknown frame kind")
	ErrFieldTooLong     = errors.New("frame field exceeds 255 bytes")
	ErrInvalidAngleUnit = errors.New("invalid angle unit")
)
