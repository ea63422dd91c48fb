package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrFull   = errors.New("processing queue full")
	ErrClosed = errors.New("processing queue closed")
)
