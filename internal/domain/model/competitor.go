// Package model contains the ladder's domain models passed between layers.
package model

import "time"

// Competitor is a participant in the ladder.
//
// CurrentRank is rewritten only by a rebuild commit or a normalization repair.
// Inactive competitors keep their slot; they are hidden from the active view only.
type Competitor struct {
	ID           string
	Name         string
	BaselineRank int
	CurrentRank  int
	Active       bool
	CreatedAt    time.Time
	CreatedSeq   int64
}

// RankUpdate is one row of a rank write-back batch.
type RankUpdate struct {
	CompetitorID string
	CurrentRank  int
}
