package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")

	// ErrBackpressure is returned when the rebuild queue is full. For write
	// operations the write itself is stored; a rebuild already queued will
	// include it.
	ErrBackpressure = errors.New("rebuild queue full")
)
