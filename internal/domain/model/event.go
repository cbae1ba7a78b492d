package model

import "time"

// EventKind is the storage discriminator of a timeline event.
type EventKind string

const (
	KindContest          EventKind = "contest"
	KindManualAdjustment EventKind = "manual_adjustment"
)

// Payload is the kind-specific part of a timeline event. The set of
// implementations is closed: ContestPayload and AdjustmentPayload.
type Payload interface {
	Kind() EventKind
	sealed()
}

// ContestPayload references the contest record replayed for this event.
type ContestPayload struct {
	ContestID string
}

func (ContestPayload) Kind() EventKind { return KindContest }
func (ContestPayload) sealed()         {}

// AdjustmentPayload moves one competitor to an explicit rank.
type AdjustmentPayload struct {
	CompetitorID string
	// FromRank is the competitor's rank when the adjustment was requested.
	FromRank   int
	TargetRank int
	Reason     string
	// Actor is an opaque identity supplied by the caller.
	Actor string
}

func (AdjustmentPayload) Kind() EventKind { return KindManualAdjustment }
func (AdjustmentPayload) sealed()         {}

// Audit holds the rank movement observed the last time the event was replayed.
type Audit struct {
	OldRank int
	NewRank int
	Note    string
}

// Event is one entry of the ranking timeline.
type Event struct {
	ID        string
	Timestamp time.Time
	// Seq is the store-assigned creation order; it breaks timestamp ties.
	Seq     int64
	Payload Payload
	Audit   Audit
}

// Kind returns the payload's kind, or "" when the payload is missing.
func (e Event) Kind() EventKind {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Before reports whether e replays before o.
func (e Event) Before(o Event) bool {
	if !e.Timestamp.Equal(o.Timestamp) {
		return e.Timestamp.Before(o.Timestamp)
	}
	return e.Seq < o.Seq
}

// AuditUpdate is one row of an audit write-back batch.
type AuditUpdate struct {
	EventID string
	Audit   Audit
}
