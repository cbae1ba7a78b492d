package repository

import "errors"

// Sentinel kinds for store errors. Not-found errors use the model taxonomy.
var (
	ErrDuplicateID = errors.New("duplicate id")
	ErrClosed      = errors.New("store closed")
)
