// Package types contains read-side types shared by the service and its transports.
package types

// Entry is one row of a leaderboard or roster listing.
// DisplayRank is dense over the listed rows; CurrentRank is the stored ladder slot.
type Entry struct {
	DisplayRank  int    `json:"display_rank"`
	CurrentRank  int    `json:"current_rank"`
	CompetitorID string `json:"competitor_id"`
	Name         string `json:"name"`
	Active       bool   `json:"active"`
}
