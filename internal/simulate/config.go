// Package simulate drives a running ladder server with random contests and
// checks that the ladder stays consistent.
package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Competitors int           // Minimum roster size; missing sim players are created
	Contests    int           // Number of contests to submit
	Workers     int           // Number of concurrent submitters
	Timeout     time.Duration // HTTP request timeout
	Token       string        // Bearer token for mutating routes, if the server requires one
	Actor       string        // X-Actor header when no token is used
	Seed        uint64        // Random seed; zero picks one from the clock
	Verbose     bool          // Log every failed submission
}

// Entry mirrors a roster or leaderboard row.
type Entry struct {
	DisplayRank  int    `json:"display_rank"`
	CurrentRank  int    `json:"current_rank"`
	CompetitorID string `json:"competitor_id"`
	Active       bool   `json:"active"`
}

type entryList struct {
	Items []Entry `json:"items"`
	Count int     `json:"count"`
}

type setScore struct {
	Side1 int `json:"side1"`
	Side2 int `json:"side2"`
}

// Contest is one generated contest request.
type Contest struct {
	Side1ID  string    `json:"side1_id"`
	Side2ID  string    `json:"side2_id"`
	Set1     setScore  `json:"set1"`
	Set2     setScore  `json:"set2"`
	Tiebreak *setScore `json:"tiebreak,omitempty"`
	Retired  string    `json:"retired,omitempty"`
}

type writeResult struct {
	Status  string `json:"status"`
	Rebuild *struct {
		Success            bool `json:"success"`
		UpdatedCompetitors int  `json:"updated_competitors"`
		ErrorCount         int  `json:"error_count"`
	} `json:"rebuild"`
}

// Stats holds run statistics.
type Stats struct {
	CompetitorsCreated int           `json:"competitors_created"`
	ContestsGenerated  int           `json:"contests_generated"`
	ContestsSubmitted  int           `json:"contests_submitted"`
	ContestsRecorded   int           `json:"contests_recorded"`
	ContestsPending    int           `json:"contests_pending"`
	ContestsDuplicate  int           `json:"contests_duplicate"`
	ContestsFailed     int           `json:"contests_failed"`
	RosterSize         int           `json:"roster_size"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	Duration           time.Duration `json:"-"`
}
