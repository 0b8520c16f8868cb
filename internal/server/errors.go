package server

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrNoFrontEnd           = errors.New("no relay front-end enabled")
)
