package protocol

import "errors"

var (
	ErrClosed        = errors.New("transport closed")
	ErrNotConnected  = errors.New("transport not connected")
	ErrUnknownFrame  = errors.New("unexpected frame from relay")
	ErrFrameTooLarge = errors.New("frame exceeds size limit")
)
