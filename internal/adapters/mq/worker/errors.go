package worker

import "errors"

// ErrStopped is delivered to requests still queued when the worker stops.
var ErrStopped = errors.New("rebuild worker stopped")
