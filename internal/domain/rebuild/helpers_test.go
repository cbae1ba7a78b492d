package rebuild_test

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/outcome"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

func init() {
	_ = logger.Init()
	_ = logger.SetLevelString("error")
}

var t0 = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

// ladderFixture builds store state the way the service would, without rebuilding.
type ladderFixture struct {
	ctx   context.Context
	store *repository.MemoryStore
	n     int
}

func newFixture(ids ...string) *ladderFixture {
	f := &ladderFixture{ctx: context.Background(), store: repository.NewMemoryStore()}
	for _, id := range ids {
		if _, err := f.store.CreateCompetitor(f.ctx, model.Competitor{ID: id, Name: id, Active: true}); err != nil {
			panic(err)
		}
	}
	return f
}

func (f *ladderFixture) nextID() string {
	f.n++
	return fmt.Sprintf("e%02d", f.n)
}

func (f *ladderFixture) contest(at time.Duration, side1, side2 string, score model.Score) string {
	side, err := outcome.Resolve(score)
	if err != nil {
		panic(err)
	}
	id := f.nextID()
	rec := model.ContestRecord{ID: "c-" + id, Side1ID: side1, Side2ID: side2, Score: score, WinningSide: side, PlayedAt: t0.Add(at)}
	if err := f.store.SaveContestRecord(f.ctx, rec); err != nil {
		panic(err)
	}
	f.appendEvent(id, at, model.ContestPayload{ContestID: rec.ID})
	return id
}

func (f *ladderFixture) straight(at time.Duration, winner, loser string) string {
	return f.contest(at, winner, loser, model.Score{
		Set1: model.SetScore{Side1: 6, Side2: 3},
		Set2: model.SetScore{Side1: 6, Side2: 4},
	})
}

func (f *ladderFixture) danglingContest(at time.Duration, contestID string) string {
	id := f.nextID()
	f.appendEvent(id, at, model.ContestPayload{ContestID: contestID})
	return id
}

func (f *ladderFixture) adjust(at time.Duration, competitor string, rank int, actor, reason string) string {
	id := f.nextID()
	f.appendEvent(id, at, model.AdjustmentPayload{CompetitorID: competitor, TargetRank: rank, Actor: actor, Reason: reason})
	return id
}

func (f *ladderFixture) appendEvent(id string, at time.Duration, p model.Payload) {
	if _, err := f.store.AppendTimelineEvent(f.ctx, model.Event{ID: id, Timestamp: t0.Add(at), Payload: p}); err != nil {
		panic(err)
	}
}

func (f *ladderFixture) deactivate(id string) {
	if _, err := f.store.SetCompetitorActive(f.ctx, id, false); err != nil {
		panic(err)
	}
}

// order returns competitor ids sorted by stored CurrentRank.
func (f *ladderFixture) order() []string {
	competitors, err := f.store.ListCompetitors(f.ctx)
	if err != nil {
		panic(err)
	}
	sort.Slice(competitors, func(i, j int) bool { return competitors[i].CurrentRank < competitors[j].CurrentRank })
	out := make([]string, len(competitors))
	for i, c := range competitors {
		out[i] = c.ID
	}
	return out
}

func (f *ladderFixture) audit(eventID string) model.Audit {
	evt, err := f.store.GetTimelineEvent(f.ctx, eventID)
	if err != nil {
		panic(err)
	}
	return evt.Audit
}

// noBatchStore hides CommitRebuild so the engine falls back to row writes.
type noBatchStore struct {
	inner     *repository.MemoryStore
	failAudit string
	failList  error
}

func (s *noBatchStore) ListCompetitors(ctx context.Context) ([]model.Competitor, error) {
	if s.failList != nil {
		return nil, s.failList
	}
	return s.inner.ListCompetitors(ctx)
}

func (s *noBatchStore) ListTimelineEvents(ctx context.Context) ([]model.Event, error) {
	return s.inner.ListTimelineEvents(ctx)
}

func (s *noBatchStore) GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error) {
	return s.inner.GetContestRecord(ctx, id)
}

func (s *noBatchStore) WriteCompetitorRanks(ctx context.Context, ranks []model.RankUpdate) error {
	return s.inner.WriteCompetitorRanks(ctx, ranks)
}

func (s *noBatchStore) UpdateTimelineEventAudit(ctx context.Context, update model.AuditUpdate) error {
	if update.EventID == s.failAudit {
		return fmt.Errorf("disk full")
	}
	return s.inner.UpdateTimelineEventAudit(ctx, update)
}

// cancellingStore cancels the rebuild context the first time a contest is fetched.
type cancellingStore struct {
	*repository.MemoryStore
	cancel context.CancelFunc
}

func (s *cancellingStore) GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error) {
	s.cancel()
	return s.MemoryStore.GetContestRecord(context.WithoutCancel(ctx), id)
}
