// Package rebuild recomputes every competitor's rank by replaying the full
// event timeline over the baseline ordering.
//
// A rebuild runs in three phases: load the baseline, replay every event in
// (timestamp, creation order) in memory, then commit ranks and audit fields
// once. Nothing is written before the replay finishes.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcronin4/scrappers-cup/internal/domain/ladder"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
	"github.com/mcronin4/scrappers-cup/pkg/metrics"
)

const tracerName = "github.com/mcronin4/scrappers-cup/internal/domain/rebuild"

// Source provides the inputs of a replay.
type Source interface {
	ListCompetitors(ctx context.Context) ([]model.Competitor, error)
	ListTimelineEvents(ctx context.Context) ([]model.Event, error)
	GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error)
}

// Sink receives the output of a replay.
type Sink interface {
	WriteCompetitorRanks(ctx context.Context, ranks []model.RankUpdate) error
	UpdateTimelineEventAudit(ctx context.Context, update model.AuditUpdate) error
}

// BatchCommitter is implemented by sinks that can write ranks and audits as
// one all-or-nothing batch.
type BatchCommitter interface {
	CommitRebuild(ctx context.Context, ranks []model.RankUpdate, audits []model.AuditUpdate) error
}

// Store is the persistence collaborator of the engine.
type Store interface {
	Source
	Sink
}

// Skip describes an event left out of a replay.
type Skip struct {
	EventID string          `json:"event_id"`
	Kind    model.EventKind `json:"kind"`
	Reason  string          `json:"reason"`
}

// Result summarizes one rebuild.
type Result struct {
	Success bool `json:"success"`
	// UpdatedCompetitors counts competitors whose stored rank changed.
	UpdatedCompetitors int           `json:"updated_competitors"`
	ErrorCount         int           `json:"error_count"`
	EventsReplayed     int           `json:"events_replayed"`
	Skipped            []Skip        `json:"skipped,omitempty"`
	Duration           time.Duration `json:"-"`
}

// Replay is the in-memory outcome of phases one and two.
type Replay struct {
	Competitors []model.Competitor
	Roster      ladder.Roster
	Audits      []model.AuditUpdate
	Skipped     []Skip
	Applied     int
}

// Ranks returns the rank rows the replay would commit.
func (r Replay) Ranks() []model.RankUpdate { return r.Roster.Ranks() }

// Changed counts competitors whose stored rank differs from the replay.
func (r Replay) Changed() int {
	stored := make(map[string]int, len(r.Competitors))
	for _, c := range r.Competitors {
		stored[c.ID] = c.CurrentRank
	}
	n := 0
	for _, u := range r.Ranks() {
		if stored[u.CompetitorID] != u.CurrentRank {
			n++
		}
	}
	return n
}

// Engine replays the timeline. It holds no roster state between runs;
// callers serialize rebuilds.
type Engine struct {
	store  Store
	log    logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		log:    logger.Nop(),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild replays the full timeline and commits the result.
func (e *Engine) Rebuild(ctx context.Context) (Result, error) {
	start := e.now()
	ctx, span := e.tracer.Start(ctx, "rebuild")
	defer span.End()

	res, err := e.rebuild(ctx)
	res.Duration = e.now().Sub(start)

	metrics.RecordRebuild(res.Success, float64(res.Duration.Microseconds())/1000, res.EventsReplayed, res.UpdatedCompetitors)
	span.SetAttributes(
		attribute.Bool("rebuild.success", res.Success),
		attribute.Int("rebuild.events_replayed", res.EventsReplayed),
		attribute.Int("rebuild.error_count", res.ErrorCount),
		attribute.Int("rebuild.updated_competitors", res.UpdatedCompetitors),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Error(ctx, "rebuild failed", logger.Error(err), logger.Int("error_count", res.ErrorCount))
		return res, err
	}
	e.log.Debug(ctx, "rebuild committed",
		logger.Int("events_replayed", res.EventsReplayed),
		logger.Int("updated_competitors", res.UpdatedCompetitors),
		logger.Int("error_count", res.ErrorCount),
		logger.Duration("duration", res.Duration))
	return res, nil
}

func (e *Engine) rebuild(ctx context.Context) (Result, error) {
	rp, err := e.Replay(ctx)
	if err != nil {
		return Result{ErrorCount: len(rp.Skipped) + 1, Skipped: rp.Skipped, EventsReplayed: rp.Applied}, err
	}

	res := Result{
		EventsReplayed:     rp.Applied,
		Skipped:            rp.Skipped,
		ErrorCount:         len(rp.Skipped),
		UpdatedCompetitors: rp.Changed(),
	}

	if err := ctx.Err(); err != nil {
		res.ErrorCount++
		res.UpdatedCompetitors = 0
		return res, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	failed, err := e.commit(ctx, rp)
	res.ErrorCount += failed
	if err != nil {
		res.ErrorCount++
		res.UpdatedCompetitors = 0
		return res, err
	}

	res.Success = true
	active := 0
	for _, c := range rp.Competitors {
		if c.Active {
			active++
		}
	}
	metrics.UpdateCompetitors(len(rp.Competitors), active)
	return res, nil
}

// Replay runs the load and replay phases without writing anything.
func (e *Engine) Replay(ctx context.Context) (Replay, error) {
	var rp Replay

	loadCtx, span := e.tracer.Start(ctx, "rebuild.load")
	competitors, err := e.store.ListCompetitors(loadCtx)
	if err != nil {
		span.End()
		return rp, fmt.Errorf("%w: list competitors: %w", model.ErrPersistence, err)
	}
	events, err := e.store.ListTimelineEvents(loadCtx)
	span.SetAttributes(attribute.Int("rebuild.competitors", len(competitors)), attribute.Int("rebuild.events", len(events)))
	span.End()
	if err != nil {
		return rp, fmt.Errorf("%w: list timeline events: %w", model.ErrPersistence, err)
	}

	rp.Competitors = competitors
	rp.Roster = ladder.Baseline(competitors)

	sort.SliceStable(events, func(i, j int) bool { return events[i].Before(events[j]) })

	replayCtx, span := e.tracer.Start(ctx, "rebuild.replay")
	defer span.End()

	for _, evt := range events {
		if err := replayCtx.Err(); err != nil {
			return rp, fmt.Errorf("%w: %w", ErrCancelled, err)
		}

		audit, err := e.apply(replayCtx, &rp, evt)
		if err != nil {
			reason, skippable := skipReason(err)
			if !skippable {
				return rp, err
			}
			rp.Skipped = append(rp.Skipped, Skip{EventID: evt.ID, Kind: evt.Kind(), Reason: reason})
			rp.Audits = append(rp.Audits, model.AuditUpdate{
				EventID: evt.ID,
				Audit:   model.Audit{Note: "skipped: " + reasonText(reason)},
			})
			metrics.RecordEventSkipped(reason)
			e.log.Warn(replayCtx, "timeline event skipped during replay",
				logger.String("event_id", evt.ID),
				logger.String("kind", string(evt.Kind())),
				logger.String("reason", reason),
				logger.Error(err))
			continue
		}

		rp.Applied++
		rp.Audits = append(rp.Audits, model.AuditUpdate{EventID: evt.ID, Audit: audit})
	}
	return rp, nil
}

// apply folds one event into the roster and returns its audit fields.
func (e *Engine) apply(ctx context.Context, rp *Replay, evt model.Event) (model.Audit, error) {
	switch p := evt.Payload.(type) {
	case model.ContestPayload:
		rec, err := e.store.GetContestRecord(ctx, p.ContestID)
		if err != nil {
			if errors.Is(err, model.ErrContestNotFound) {
				return model.Audit{}, err
			}
			return model.Audit{}, fmt.Errorf("%w: get contest %s: %w", model.ErrPersistence, p.ContestID, err)
		}
		if !rec.WinningSide.Valid() {
			return model.Audit{}, fmt.Errorf("%w: contest %s has no winning side", model.ErrInvalidInput, rec.ID)
		}

		next, move, err := ladder.ApplyContest(rp.Roster, rec.Winner(), rec.Loser())
		if err != nil {
			return model.Audit{}, err
		}
		rp.Roster = next

		note := "no change: winner already ranked above loser"
		if move.Changed() {
			note = fmt.Sprintf("took rank %d from %s", move.To, rec.Loser())
		}
		return model.Audit{OldRank: move.From, NewRank: move.To, Note: note}, nil

	case model.AdjustmentPayload:
		next, move, err := ladder.ApplyAdjustment(rp.Roster, p.CompetitorID, p.TargetRank)
		if err != nil {
			return model.Audit{}, err
		}
		rp.Roster = next
		return model.Audit{OldRank: move.From, NewRank: move.To, Note: adjustmentNote(p)}, nil

	default:
		return model.Audit{}, fmt.Errorf("%w: unknown event kind %q", errUnknownKind, evt.Kind())
	}
}

var errUnknownKind = errors.New("unknown event kind")

func adjustmentNote(p model.AdjustmentPayload) string {
	note := "manual adjustment"
	if p.Actor != "" {
		note += " by " + p.Actor
	}
	if p.Reason != "" {
		note += ": " + p.Reason
	}
	return note
}

// skipReason maps referential errors to a metric label. Anything else aborts the replay.
func skipReason(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrContestNotFound):
		return "contest_not_found", true
	case errors.Is(err, model.ErrCompetitorNotFound):
		return "competitor_not_found", true
	case errors.Is(err, model.ErrInvalidRank):
		return "invalid_rank", true
	case errors.Is(err, model.ErrInvalidInput):
		return "invalid_input", true
	case errors.Is(err, errUnknownKind):
		return "unknown_kind", true
	default:
		return "", false
	}
}

func reasonText(reason string) string {
	switch reason {
	case "contest_not_found":
		return "contest not found"
	case "competitor_not_found":
		return "competitor not found"
	case "invalid_rank":
		return "target rank out of range"
	case "invalid_input":
		return "invalid contest record"
	default:
		return "unknown event kind"
	}
}

// commit writes the replay output. It returns the number of rows that failed
// when the sink cannot batch.
func (e *Engine) commit(ctx context.Context, rp Replay) (int, error) {
	ctx, span := e.tracer.Start(ctx, "rebuild.commit")
	defer span.End()

	ranks := rp.Ranks()
	if bc, ok := e.store.(BatchCommitter); ok {
		if err := bc.CommitRebuild(ctx, ranks, rp.Audits); err != nil {
			return 0, fmt.Errorf("%w: commit rebuild: %w", model.ErrPersistence, err)
		}
		return 0, nil
	}

	if err := e.store.WriteCompetitorRanks(ctx, ranks); err != nil {
		return 0, fmt.Errorf("%w: write ranks: %w", model.ErrPersistence, err)
	}
	failed := 0
	for _, a := range rp.Audits {
		if err := e.store.UpdateTimelineEventAudit(ctx, a); err != nil {
			failed++
			e.log.Error(ctx, "audit write failed", logger.String("event_id", a.EventID), logger.Error(err))
		}
	}
	span.SetAttributes(attribute.Int("rebuild.audit_failures", failed))
	return failed, nil
}
