package model

import "errors"

// Error taxonomy shared by the ladder engine and its collaborators.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrCompetitorNotFound = errors.New("competitor not found")
	ErrContestNotFound    = errors.New("contest not found")
	ErrEventNotFound      = errors.New("event not found")
	ErrInvalidRank        = errors.New("invalid rank")
	ErrPersistence        = errors.New("persistence failure")
)
