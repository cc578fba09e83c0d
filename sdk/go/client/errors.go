package client

import (
	"errors"
	"fmt"
)

// Client-specific errors
var (
	ErrClientClosed   = errors.New("client is closed")
	ErrInvalidMessage = errors.New("invalid message")
)

// StatusError is returned for a non-200 answer from the API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}
