package posesync

import "errors"

var (
	ErrMalformedPayload = errors.New("malformed sync payload")
	ErrTransportClosed  = errors.New("transport event stream closed")
	ErrAlreadyResolved  = errors.New("readiness already resolved")
)
