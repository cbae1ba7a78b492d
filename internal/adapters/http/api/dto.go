package api

import (
	"time"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
)

// Write response statuses.
const (
	statusOK        = "ok"
	statusPending   = "pending"
	statusDuplicate = "duplicate"
)

type competitorResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BaselineRank int       `json:"baseline_rank"`
	CurrentRank  int       `json:"current_rank"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

func newCompetitorResponse(c model.Competitor) competitorResponse {
	return competitorResponse{
		ID:           c.ID,
		Name:         c.Name,
		BaselineRank: c.BaselineRank,
		CurrentRank:  c.CurrentRank,
		Active:       c.Active,
		CreatedAt:    c.CreatedAt.UTC(),
	}
}

type contestResponse struct {
	ID         string          `json:"id"`
	Side1ID    string          `json:"side1_id"`
	Side2ID    string          `json:"side2_id"`
	Set1       model.SetScore  `json:"set1"`
	Set2       model.SetScore  `json:"set2"`
	Tiebreak   *model.SetScore `json:"tiebreak,omitempty"`
	Retired    string          `json:"retired,omitempty"`
	Winner     string          `json:"winner"`
	WinnerID   string          `json:"winner_id"`
	LoserID    string          `json:"loser_id"`
	PlayedAt   time.Time       `json:"played_at"`
	RecordedBy string          `json:"recorded_by,omitempty"`
}

func newContestResponse(c model.ContestRecord) *contestResponse {
	resp := &contestResponse{
		ID:         c.ID,
		Side1ID:    c.Side1ID,
		Side2ID:    c.Side2ID,
		Set1:       c.Score.Set1,
		Set2:       c.Score.Set2,
		Tiebreak:   c.Score.Tiebreak,
		Winner:     c.WinningSide.String(),
		WinnerID:   c.Winner(),
		LoserID:    c.Loser(),
		PlayedAt:   c.PlayedAt.UTC(),
		RecordedBy: c.RecordedBy,
	}
	if c.Score.Retired.Valid() {
		resp.Retired = c.Score.Retired.String()
	}
	return resp
}

type eventResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Timestamp    time.Time `json:"ts"`
	Seq          int64     `json:"seq"`
	ContestID    string    `json:"contest_id,omitempty"`
	CompetitorID string    `json:"competitor_id,omitempty"`
	FromRank     int       `json:"from_rank,omitempty"`
	TargetRank   int       `json:"target_rank,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	OldRank      int       `json:"old_rank"`
	NewRank      int       `json:"new_rank"`
	Note         string    `json:"note"`
}

func newEventResponse(e model.Event) *eventResponse {
	resp := &eventResponse{
		ID:        e.ID,
		Kind:      string(e.Kind()),
		Timestamp: e.Timestamp.UTC(),
		Seq:       e.Seq,
		OldRank:   e.Audit.OldRank,
		NewRank:   e.Audit.NewRank,
		Note:      e.Audit.Note,
	}
	switch p := e.Payload.(type) {
	case model.ContestPayload:
		resp.ContestID = p.ContestID
	case model.AdjustmentPayload:
		resp.CompetitorID = p.CompetitorID
		resp.FromRank = p.FromRank
		resp.TargetRank = p.TargetRank
		resp.Reason = p.Reason
		resp.Actor = p.Actor
	}
	return resp
}

type rebuildResponse struct {
	Success            bool           `json:"success"`
	UpdatedCompetitors int            `json:"updated_competitors"`
	ErrorCount         int            `json:"error_count"`
	EventsReplayed     int            `json:"events_replayed"`
	Skipped            []rebuild.Skip `json:"skipped,omitempty"`
	DurationMs         float64        `json:"duration_ms"`
}

func newRebuildResponse(res rebuild.Result) *rebuildResponse {
	return &rebuildResponse{
		Success:            res.Success,
		UpdatedCompetitors: res.UpdatedCompetitors,
		ErrorCount:         res.ErrorCount,
		EventsReplayed:     res.EventsReplayed,
		Skipped:            res.Skipped,
		DurationMs:         float64(res.Duration.Microseconds()) / 1000,
	}
}

// writeResponse is the body of every timeline write.
type writeResponse struct {
	Status  string           `json:"status"`
	Contest *contestResponse `json:"contest,omitempty"`
	Event   *eventResponse   `json:"event,omitempty"`
	Rebuild *rebuildResponse `json:"rebuild,omitempty"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

// scoreRequest is the score part of contest bodies.
type scoreRequest struct {
	Set1     model.SetScore  `json:"set1"`
	Set2     model.SetScore  `json:"set2"`
	Tiebreak *model.SetScore `json:"tiebreak"`
	Retired  string          `json:"retired"`
}

func (s scoreRequest) score() model.Score {
	out := model.Score{Set1: s.Set1, Set2: s.Set2, Tiebreak: s.Tiebreak}
	switch s.Retired {
	case "side1":
		out.Retired = model.Side1
	case "side2":
		out.Retired = model.Side2
	}
	return out
}

type contestRequest struct {
	Side1ID  string     `json:"side1_id"`
	Side2ID  string     `json:"side2_id"`
	PlayedAt *time.Time `json:"played_at"`
	scoreRequest
}

type competitorRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active *bool  `json:"active"`
}

type competitorUpdateRequest struct {
	Active bool `json:"active"`
}

type adjustmentRequest struct {
	CompetitorID string `json:"competitor_id"`
	TargetRank   int    `json:"target_rank"`
	Reason       string `json:"reason"`
}
