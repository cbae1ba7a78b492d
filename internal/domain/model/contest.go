package model

import "time"

// Side identifies one side of a contest.
type Side int

const (
	NoSide Side = 0
	Side1  Side = 1
	Side2  Side = 2
)

// Valid reports whether s is Side1 or Side2.
func (s Side) Valid() bool { return s == Side1 || s == Side2 }

// Other returns the opposing side. NoSide maps to NoSide.
func (s Side) Other() Side {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return NoSide
	}
}

func (s Side) String() string {
	switch s {
	case Side1:
		return "side1"
	case Side2:
		return "side2"
	default:
		return "none"
	}
}

// SetScore holds the games (or tiebreak points) won by each side.
type SetScore struct {
	Side1 int `json:"side1"`
	Side2 int `json:"side2"`
}

// Score is the raw result of a best-of-three contest where the third set is
// played as a tiebreak.
type Score struct {
	Set1     SetScore  `json:"set1"`
	Set2     SetScore  `json:"set2"`
	Tiebreak *SetScore `json:"tiebreak,omitempty"`
	// Retired is the side that retired, or NoSide.
	Retired Side `json:"retired,omitempty"`
}

// ContestRecord is a completed match between two competitors.
type ContestRecord struct {
	ID          string
	Side1ID     string
	Side2ID     string
	Score       Score
	WinningSide Side
	// PlayedAt orders the contest on the timeline.
	PlayedAt   time.Time
	CreatedAt  time.Time
	RecordedBy string
}

// Winner returns the id of the competitor on the winning side.
func (c ContestRecord) Winner() string {
	if c.WinningSide == Side2 {
		return c.Side2ID
	}
	return c.Side1ID
}

// Loser returns the id of the competitor on the losing side.
func (c ContestRecord) Loser() string {
	if c.WinningSide == Side2 {
		return c.Side1ID
	}
	return c.Side2ID
}
