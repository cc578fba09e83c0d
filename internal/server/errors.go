package server

import "errors"

// Server-specific errors
var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrHubClosed            = errors.New("hub is closed")
	ErrNoColorSession       = errors.New("no color selection is open")
)
