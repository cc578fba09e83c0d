package colorgrad

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidThreshold = errors.New("color threshold must be greater than zero")
	ErrInvalidAlpha     = errors.New("alpha must be within [0,1]")
)

// ParseError reports malformed color text. Whatever color the caller held
// before the parse stays in effect.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse color %q: %s", e.Input, e.Reason)
}
