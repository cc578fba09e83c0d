package sensorfield

import "errors"

var (
	ErrIndexOutOfRange = errors.New("sensor index out of range")
	ErrNoSelection     = errors.New("no sensor selected")
)
