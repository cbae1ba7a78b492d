// Package service exposes the ladder operations used by the HTTP API and the
// admin CLI.
//
// Every write stores its event first and then asks the rebuild worker for a
// full replay, waiting for the result with the caller's context.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"

	"github.com/mcronin4/scrappers-cup/internal/adapters/mq/queue"
	"github.com/mcronin4/scrappers-cup/internal/adapters/mq/worker"
	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	"github.com/mcronin4/scrappers-cup/internal/domain/dedupe"
	"github.com/mcronin4/scrappers-cup/internal/domain/ladder"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/outcome"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/internal/domain/types"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
	"github.com/mcronin4/scrappers-cup/pkg/metrics"
)

const (
	tracerName             = "github.com/mcronin4/scrappers-cup/internal/app"
	workerShutdownTimeout  = 10 * time.Second
	defaultQueueSize       = 64
	defaultIdempotencySize = 10_000
	defaultRebuildTimeout  = 30 * time.Second
	maxNameLength          = 80
	// maxPlayedAtLead tolerates clock skew between the recorder and the server.
	maxPlayedAtLead        = 24 * time.Hour
)

// earliestPlayedAt is the exclusive lower bound for a contest's play time.
var earliestPlayedAt = time.Unix(0, 0).UTC()

// CompetitorInput describes a new competitor. ID is generated when empty.
type CompetitorInput struct {
	ID       string
	Name     string
	Inactive bool
}

// ContestInput is a raw contest result. PlayedAt orders the contest on the
// timeline and defaults to now; a past value backdates it.
type ContestInput struct {
	Side1ID  string
	Side2ID  string
	Score    model.Score
	PlayedAt time.Time
	Actor    string
}

// AdjustmentInput moves one competitor to TargetRank.
type AdjustmentInput struct {
	CompetitorID string
	TargetRank   int
	Reason       string
	Actor        string
}

// Service implements the ladder operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	engine  *rebuild.Engine
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	worker  *worker.RebuildWorker

	// rankMu serializes every writer of CurrentRank: rebuild commits and Normalize.
	rankMu sync.Mutex

	// Configuration
	ownsStore       bool
	queueSize       int
	rebuildTimeout  time.Duration
	idempotencySize int
	idempotencyTTL  time.Duration
	rebuildOnStart  bool
	now             func() time.Time
	newID           func() string
	tracerProvider  trace.TracerProvider
	tracer          trace.Tracer

	// State
	started     bool
	cancelRun   context.CancelFunc
	statsMu     sync.Mutex
	lastRebuild *rebuildStats

	logger logger.Logger
}

type rebuildStats struct {
	At     time.Time
	Result rebuild.Result
	Err    string
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		store:           repository.NewMemoryStore(),
		ownsStore:       true,
		queueSize:       defaultQueueSize,
		rebuildTimeout:  defaultRebuildTimeout,
		idempotencySize: defaultIdempotencySize,
		rebuildOnStart:  true,
		now:             time.Now,
		newID:           func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracerProvider != nil {
		s.tracer = s.tracerProvider.Tracer(tracerName)
	} else {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Start creates the rebuild queue and worker and, if enabled, runs one rebuild.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting ladder service...")

	engineOpts := []rebuild.Option{rebuild.WithLogger(s.logger.Named("rebuild"))}
	if s.tracerProvider != nil {
		engineOpts = append(engineOpts, rebuild.WithTracerProvider(s.tracerProvider))
	}
	s.engine = rebuild.New(s.store, engineOpts...)
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.idempotencySize),
		dedupe.WithTTL(s.idempotencyTTL),
		dedupe.WithClock(s.now),
	)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.worker = worker.NewRebuildWorker(s.queue, serialRebuilder{s: s},
		worker.WithLogger(s.logger.Named("rebuild-worker")),
		worker.WithTimeout(s.rebuildTimeout),
	)

	// The worker outlives the start request; Stop cancels it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	go s.worker.Run(runCtx)

	s.started = true
	s.logger.Info(ctx, "ladder service started",
		logger.Int("rebuild_queue_size", s.queueSize),
		logger.Duration("rebuild_timeout", s.rebuildTimeout),
		logger.Int("idempotency_cache_size", s.idempotencySize),
		logger.Duration("idempotency_ttl", s.idempotencyTTL),
	)
	s.mu.Unlock()

	if s.rebuildOnStart {
		res, err := s.RebuildAll(ctx)
		if err != nil {
			s.logger.Error(ctx, "startup rebuild failed", logger.Error(err))
			return nil
		}
		s.logger.Info(ctx, "startup rebuild finished",
			logger.Int("updated_competitors", res.UpdatedCompetitors),
			logger.Int("error_count", res.ErrorCount),
		)
	}
	return nil
}

// Stop drains the rebuild worker and releases owned resources.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping ladder service...")

	_ = s.queue.Close()
	shutdownCtx, cancel := context.WithTimeout(ctx, workerShutdownTimeout)
	if err := s.worker.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "rebuild worker did not stop in time", logger.Error(err))
	}
	cancel()
	s.cancelRun()

	if s.ownsStore {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "close store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "ladder service stopped")
}

func (s *Service) ensureStarted() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// serialRebuilder is the worker's view of the engine. It shares rankMu with
// Normalize.
type serialRebuilder struct {
	s *Service
}

func (r serialRebuilder) Rebuild(ctx context.Context) (rebuild.Result, error) {
	r.s.rankMu.Lock()
	defer r.s.rankMu.Unlock()

	res, err := r.s.engine.Rebuild(ctx)
	stats := &rebuildStats{At: r.s.now(), Result: res}
	if err != nil {
		stats.Err = err.Error()
	}
	r.s.statsMu.Lock()
	r.s.lastRebuild = stats
	r.s.statsMu.Unlock()
	return res, err
}

// requestRebuild queues a rebuild and waits for its result.
func (s *Service) requestRebuild(ctx context.Context, reason string) (rebuild.Result, error) {
	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return rebuild.Result{}, ErrNotStarted
	}

	req := queue.NewRequest(reason)
	if !q.Enqueue(ctx, req) {
		switch {
		case q.IsClosed():
			return rebuild.Result{}, ErrNotStarted
		case ctx.Err() != nil:
			return rebuild.Result{}, ctx.Err()
		default:
			return rebuild.Result{}, ErrBackpressure
		}
	}

	select {
	case rep := <-req.Done():
		if errors.Is(rep.Err, worker.ErrStopped) {
			return rep.Result, fmt.Errorf("%w: %w", ErrNotStarted, rep.Err)
		}
		return rep.Result, rep.Err
	case <-ctx.Done():
		return rebuild.Result{}, ctx.Err()
	}
}

// storeErr wraps err with op, classifying unexpected store failures as ErrPersistence.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, model.ErrCompetitorNotFound),
		errors.Is(err, model.ErrContestNotFound),
		errors.Is(err, model.ErrEventNotFound),
		errors.Is(err, model.ErrInvalidInput),
		errors.Is(err, model.ErrInvalidRank),
		errors.Is(err, model.ErrPersistence),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, model.ErrPersistence, err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrBackpressure) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// normalizeName trims and collapses whitespace and applies NFC so visually
// equal names compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// CreateCompetitor adds a competitor at the bottom of the ladder.
func (s *Service) CreateCompetitor(ctx context.Context, in CompetitorInput) (c model.Competitor, err error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateCompetitor")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return model.Competitor{}, err
	}
	name := normalizeName(in.Name)
	if name == "" {
		return model.Competitor{}, fmt.Errorf("create competitor: %w: name is required", model.ErrInvalidInput)
	}
	if len([]rune(name)) > maxNameLength {
		return model.Competitor{}, fmt.Errorf("create competitor: %w: name longer than %d characters", model.ErrInvalidInput, maxNameLength)
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = s.newID()
	}

	c, err = s.store.CreateCompetitor(ctx, model.Competitor{
		ID:        id,
		Name:      name,
		Active:    !in.Inactive,
		CreatedAt: s.now(),
	})
	if errors.Is(err, repository.ErrDuplicateID) {
		return model.Competitor{}, fmt.Errorf("create competitor: %w: %w", model.ErrInvalidInput, err)
	}
	if err != nil {
		return model.Competitor{}, storeErr("create competitor", err)
	}
	span.SetAttributes(attribute.String("competitor.id", c.ID), attribute.Int("competitor.rank", c.CurrentRank))
	s.logger.Info(ctx, "competitor created",
		logger.String("competitor_id", c.ID),
		logger.Int("rank", c.CurrentRank),
	)
	return c, nil
}

// SetCompetitorActive shows or hides a competitor on the leaderboard. The
// competitor keeps its ladder slot either way.
func (s *Service) SetCompetitorActive(ctx context.Context, id string, active bool) (c model.Competitor, err error) {
	ctx, span := s.tracer.Start(ctx, "service.SetCompetitorActive")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return model.Competitor{}, err
	}
	c, err = s.store.SetCompetitorActive(ctx, strings.TrimSpace(id), active)
	if err != nil {
		return model.Competitor{}, storeErr("set competitor active", err)
	}
	s.logger.Info(ctx, "competitor activity changed",
		logger.String("competitor_id", c.ID),
		logger.Bool("active", active),
	)
	return c, nil
}

// RecordContest resolves the outcome, stores the contest and its timeline
// event, then rebuilds. Invalid input is rejected before anything is written.
func (s *Service) RecordContest(ctx context.Context, in ContestInput) (rec model.ContestRecord, res rebuild.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.RecordContest")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return model.ContestRecord{}, rebuild.Result{}, err
	}

	side1, side2 := strings.TrimSpace(in.Side1ID), strings.TrimSpace(in.Side2ID)
	if side1 == "" || side2 == "" {
		return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("record contest: %w: both competitors are required", model.ErrInvalidInput)
	}
	if side1 == side2 {
		return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("record contest: %w: a competitor cannot play themselves", model.ErrInvalidInput)
	}
	for _, id := range []string{side1, side2} {
		c, err := s.store.GetCompetitor(ctx, id)
		if err != nil {
			return model.ContestRecord{}, rebuild.Result{}, storeErr("record contest", err)
		}
		if !c.Active {
			return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("record contest: %w: competitor %s is inactive", model.ErrInvalidInput, id)
		}
	}

	winner, err := outcome.Resolve(in.Score)
	if err != nil {
		return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("record contest: %w", err)
	}

	now := s.now()
	playedAt := in.PlayedAt
	if playedAt.IsZero() {
		playedAt = now
	}
	if !playedAt.After(earliestPlayedAt) || playedAt.After(now.Add(maxPlayedAtLead)) {
		return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("record contest: %w: played_at %s is outside the accepted window",
			model.ErrInvalidInput, playedAt.UTC().Format(time.RFC3339))
	}
	rec = model.ContestRecord{
		ID:          s.newID(),
		Side1ID:     side1,
		Side2ID:     side2,
		Score:       in.Score,
		WinningSide: winner,
		PlayedAt:    playedAt,
		CreatedAt:   now,
		RecordedBy:  in.Actor,
	}
	if err := s.store.SaveContestRecord(ctx, rec); err != nil {
		return model.ContestRecord{}, rebuild.Result{}, storeErr("record contest", err)
	}
	evt, err := s.store.AppendTimelineEvent(ctx, model.Event{
		ID:        s.newID(),
		Timestamp: playedAt,
		Payload:   model.ContestPayload{ContestID: rec.ID},
	})
	if err != nil {
		if derr := s.store.DeleteContestRecord(ctx, rec.ID); derr != nil {
			s.logger.Warn(ctx, "orphaned contest record", logger.String("contest_id", rec.ID), logger.Error(derr))
		}
		return model.ContestRecord{}, rebuild.Result{}, storeErr("record contest", err)
	}

	metrics.RecordContestRecorded()
	span.SetAttributes(attribute.String("contest.id", rec.ID), attribute.String("event.id", evt.ID))
	s.logger.Info(ctx, "contest recorded",
		logger.String("contest_id", rec.ID),
		logger.String("event_id", evt.ID),
		logger.String("winner", rec.Winner()),
		logger.String("loser", rec.Loser()),
	)

	res, err = s.requestRebuild(ctx, "contest")
	if err != nil {
		return rec, res, fmt.Errorf("record contest: rebuild: %w", err)
	}
	return rec, res, nil
}

// UpdateContest replaces the score of a stored contest and rebuilds. Later
// events see the corrected outcome.
func (s *Service) UpdateContest(ctx context.Context, id string, score model.Score) (rec model.ContestRecord, res rebuild.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.UpdateContest")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return model.ContestRecord{}, rebuild.Result{}, err
	}
	rec, err = s.store.GetContestRecord(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.ContestRecord{}, rebuild.Result{}, storeErr("update contest", err)
	}
	winner, err := outcome.Resolve(score)
	if err != nil {
		return model.ContestRecord{}, rebuild.Result{}, fmt.Errorf("update contest: %w", err)
	}
	rec.Score = score
	rec.WinningSide = winner
	// A contest deleted since the read stays deleted.
	if err := s.store.UpdateContestRecord(ctx, rec); err != nil {
		return model.ContestRecord{}, rebuild.Result{}, storeErr("update contest", err)
	}

	metrics.RecordContestEdited()
	s.logger.Info(ctx, "contest edited",
		logger.String("contest_id", rec.ID),
		logger.String("winner", rec.Winner()),
	)

	res, err = s.requestRebuild(ctx, "contest_edit")
	if err != nil {
		return rec, res, fmt.Errorf("update contest: rebuild: %w", err)
	}
	return rec, res, nil
}

// RecordManualAdjustment moves a competitor to TargetRank and rebuilds.
// A target outside [1, N] fails with ErrInvalidRank before anything is written.
func (s *Service) RecordManualAdjustment(ctx context.Context, in AdjustmentInput) (evt model.Event, res rebuild.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.RecordManualAdjustment")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return model.Event{}, rebuild.Result{}, err
	}
	id := strings.TrimSpace(in.CompetitorID)
	if id == "" {
		return model.Event{}, rebuild.Result{}, fmt.Errorf("record adjustment: %w: competitor is required", model.ErrInvalidInput)
	}

	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return model.Event{}, rebuild.Result{}, storeErr("record adjustment", err)
	}
	if in.TargetRank < 1 || in.TargetRank > len(competitors) {
		return model.Event{}, rebuild.Result{}, fmt.Errorf("record adjustment: %w: target %d outside [1, %d]",
			model.ErrInvalidRank, in.TargetRank, len(competitors))
	}
	from := 0
	for _, c := range competitors {
		if c.ID == id {
			from = c.CurrentRank
		}
	}
	if from == 0 {
		return model.Event{}, rebuild.Result{}, fmt.Errorf("record adjustment: %w: %s", model.ErrCompetitorNotFound, id)
	}

	evt, err = s.store.AppendTimelineEvent(ctx, model.Event{
		ID:        s.newID(),
		Timestamp: s.now(),
		Payload: model.AdjustmentPayload{
			CompetitorID: id,
			FromRank:     from,
			TargetRank:   in.TargetRank,
			Reason:       strings.TrimSpace(in.Reason),
			Actor:        in.Actor,
		},
	})
	if err != nil {
		return model.Event{}, rebuild.Result{}, storeErr("record adjustment", err)
	}

	metrics.RecordAdjustmentRecorded()
	span.SetAttributes(attribute.String("event.id", evt.ID), attribute.Int("adjustment.target", in.TargetRank))
	s.logger.Info(ctx, "manual adjustment recorded",
		logger.String("event_id", evt.ID),
		logger.String("competitor_id", id),
		logger.Int("from", from),
		logger.Int("to", in.TargetRank),
		logger.String("actor", in.Actor),
	)

	res, err = s.requestRebuild(ctx, "adjustment")
	if err != nil {
		return evt, res, fmt.Errorf("record adjustment: rebuild: %w", err)
	}
	return evt, res, nil
}

// DeleteEvent retracts a timeline event and rebuilds. Deleting a contest
// event also deletes its contest record.
func (s *Service) DeleteEvent(ctx context.Context, id string) (res rebuild.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.DeleteEvent")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return rebuild.Result{}, err
	}
	evt, err := s.store.GetTimelineEvent(ctx, strings.TrimSpace(id))
	if err != nil {
		return rebuild.Result{}, storeErr("delete event", err)
	}
	if err := s.store.DeleteTimelineEvent(ctx, evt.ID); err != nil {
		return rebuild.Result{}, storeErr("delete event", err)
	}
	if p, ok := evt.Payload.(model.ContestPayload); ok {
		if err := s.store.DeleteContestRecord(ctx, p.ContestID); err != nil && !errors.Is(err, model.ErrContestNotFound) {
			s.logger.Warn(ctx, "contest record left behind", logger.String("contest_id", p.ContestID), logger.Error(err))
		}
	}

	metrics.RecordEventDeleted(string(evt.Kind()))
	s.logger.Info(ctx, "timeline event deleted",
		logger.String("event_id", evt.ID),
		logger.String("kind", string(evt.Kind())),
	)

	res, err = s.requestRebuild(ctx, "delete")
	if err != nil {
		return res, fmt.Errorf("delete event: rebuild: %w", err)
	}
	return res, nil
}

// GetActiveLeaderboard lists active competitors with a dense display rank.
func (s *Service) GetActiveLeaderboard(ctx context.Context) ([]types.Entry, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return nil, storeErr("leaderboard", err)
	}
	return ladder.ActiveView(competitors), nil
}

// Roster lists every competitor, inactive included, in ladder order.
func (s *Service) Roster(ctx context.Context) ([]types.Entry, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return nil, storeErr("roster", err)
	}
	return ladder.FullView(competitors), nil
}

// Timeline returns every event in replay order with its audit fields.
func (s *Service) Timeline(ctx context.Context) ([]model.Event, error) {
	if err := s.ensureStarted(); err != nil {
		return nil, err
	}
	events, err := s.store.ListTimelineEvents(ctx)
	if err != nil {
		return nil, storeErr("timeline", err)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Before(events[j]) })
	return events, nil
}

// RebuildAll replays the full timeline and waits for the result.
func (s *Service) RebuildAll(ctx context.Context) (res rebuild.Result, err error) {
	ctx, span := s.tracer.Start(ctx, "service.RebuildAll")
	defer func() { endSpan(span, err) }()

	res, err = s.requestRebuild(ctx, "manual")
	if err != nil {
		return res, fmt.Errorf("rebuild all: %w", err)
	}
	return res, nil
}

// Normalize repairs stored ranks to a dense 1..N, keeping their relative
// order, and returns the number of competitors whose rank changed.
func (s *Service) Normalize(ctx context.Context) (changed int, err error) {
	ctx, span := s.tracer.Start(ctx, "service.Normalize")
	defer func() { endSpan(span, err) }()

	if err := s.ensureStarted(); err != nil {
		return 0, err
	}
	s.rankMu.Lock()
	defer s.rankMu.Unlock()

	competitors, err := s.store.ListCompetitors(ctx)
	if err != nil {
		return 0, storeErr("normalize", err)
	}
	// Ties keep creation order.
	sort.SliceStable(competitors, func(i, j int) bool { return competitors[i].CreatedSeq < competitors[j].CreatedSeq })
	stored := make(map[string]int, len(competitors))
	for _, c := range competitors {
		stored[c.ID] = c.CurrentRank
	}

	var updates []model.RankUpdate
	for _, c := range ladder.Normalize(competitors) {
		if stored[c.ID] != c.CurrentRank {
			updates = append(updates, model.RankUpdate{CompetitorID: c.ID, CurrentRank: c.CurrentRank})
		}
	}
	if len(updates) > 0 {
		if err := s.store.WriteCompetitorRanks(ctx, updates); err != nil {
			return 0, storeErr("normalize", err)
		}
	}

	metrics.RecordNormalization()
	s.logger.Info(ctx, "ranks normalized", logger.Int("changed", len(updates)))
	return len(updates), nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d == nil {
		return false
	}
	seen := d.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordDuplicateRequest()
	}
	return seen
}

// Unrecord forgets an idempotency key so the request can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d != nil {
		d.Unrecord(ctx, key)
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":              s.started,
		"rebuildQueueSize":     s.queueSize,
		"rebuildTimeoutMs":     s.rebuildTimeout.Milliseconds(),
		"idempotencyCacheSize": s.idempotencySize,
		"idempotencyTtlMs":     s.idempotencyTTL.Milliseconds(),
	}
	if !s.started {
		return stats
	}

	stats["rebuildQueueLength"] = s.queue.Len(ctx)
	stats["idempotencyKeys"] = s.deduper.Size()
	if competitors, err := s.store.ListCompetitors(ctx); err == nil {
		active := 0
		for _, c := range competitors {
			if c.Active {
				active++
			}
		}
		stats["totalCompetitors"] = len(competitors)
		stats["activeCompetitors"] = active
		metrics.UpdateCompetitors(len(competitors), active)
	}
	if events, err := s.store.ListTimelineEvents(ctx); err == nil {
		stats["timelineEvents"] = len(events)
	}

	s.statsMu.Lock()
	if last := s.lastRebuild; last != nil {
		lr := map[string]interface{}{
			"at":                 last.At.UTC().Format(time.RFC3339Nano),
			"success":            last.Result.Success,
			"updatedCompetitors": last.Result.UpdatedCompetitors,
			"errorCount":         last.Result.ErrorCount,
			"eventsReplayed":     last.Result.EventsReplayed,
			"durationMs":         float64(last.Result.Duration.Microseconds()) / 1000,
		}
		if last.Err != "" {
			lr["error"] = last.Err
		}
		stats["lastRebuild"] = lr
	}
	s.statsMu.Unlock()
	return stats
}
