package rebuild

import "errors"

// ErrCancelled is returned when the context ends before the commit phase.
// Nothing is written in that case.
var ErrCancelled = errors.New("rebuild cancelled before commit")
