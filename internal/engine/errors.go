package engine

import "errors"

var (
	ErrLoopStopped = errors.New("engine loop stopped")
	ErrLoopRunning = errors.New("engine loop already running")
)
