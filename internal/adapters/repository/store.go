// Package repository defines the ladder persistence interface and its in-memory implementation.
package repository

import (
	"context"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// Store provides read/write access to competitors, contest records and the event timeline.
//
// Lookups of unknown ids return the model sentinels (ErrCompetitorNotFound,
// ErrContestNotFound, ErrEventNotFound) so callers can use errors.Is.
type Store interface {
	// ListCompetitors returns every competitor, inactive included.
	ListCompetitors(ctx context.Context) ([]model.Competitor, error)
	GetCompetitor(ctx context.Context, id string) (model.Competitor, error)
	// CreateCompetitor appends c at the bottom of the ladder: BaselineRank and
	// CurrentRank become N+1 and CreatedSeq is assigned.
	CreateCompetitor(ctx context.Context, c model.Competitor) (model.Competitor, error)
	SetCompetitorActive(ctx context.Context, id string, active bool) (model.Competitor, error)
	// WriteCompetitorRanks overwrites CurrentRank for every listed competitor.
	WriteCompetitorRanks(ctx context.Context, ranks []model.RankUpdate) error

	// ListTimelineEvents returns every event in unspecified order.
	ListTimelineEvents(ctx context.Context) ([]model.Event, error)
	GetTimelineEvent(ctx context.Context, id string) (model.Event, error)
	// AppendTimelineEvent stores evt and returns it with Seq assigned.
	AppendTimelineEvent(ctx context.Context, evt model.Event) (model.Event, error)
	UpdateTimelineEventAudit(ctx context.Context, update model.AuditUpdate) error
	DeleteTimelineEvent(ctx context.Context, id string) error

	GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error)
	// SaveContestRecord inserts rec or replaces the record with the same id.
	SaveContestRecord(ctx context.Context, rec model.ContestRecord) error
	// UpdateContestRecord replaces an existing record and returns
	// ErrContestNotFound when none has rec.ID. It never inserts.
	UpdateContestRecord(ctx context.Context, rec model.ContestRecord) error
	DeleteContestRecord(ctx context.Context, id string) error

	// CommitRebuild writes ranks and audits as one batch. Audits for events
	// deleted since the replay read them are ignored.
	CommitRebuild(ctx context.Context, ranks []model.RankUpdate, audits []model.AuditUpdate) error

	Close() error
}
