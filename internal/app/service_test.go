package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/types"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

var epoch = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func straightSets(side1Wins bool) model.Score {
	if side1Wins {
		return model.Score{Set1: model.SetScore{Side1: 6, Side2: 4}, Set2: model.SetScore{Side1: 6, Side2: 4}}
	}
	return model.Score{Set1: model.SetScore{Side1: 4, Side2: 6}, Set2: model.SetScore{Side1: 4, Side2: 6}}
}

func startService(store repository.Store, opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithStore(store),
		service.WithClock(stepClock(epoch)),
		service.WithLogger(logger.Nop()),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func addRoster(svc *service.Service, ids ...string) {
	for _, id := range ids {
		_, err := svc.CreateCompetitor(context.Background(), service.CompetitorInput{ID: id, Name: id})
		So(err, ShouldBeNil)
	}
}

func ranks(svc *service.Service) map[string]int {
	entries, err := svc.Roster(context.Background())
	So(err, ShouldBeNil)
	out := make(map[string]int, len(entries))
	for _, e := range entries {
		out[e.CompetitorID] = e.CurrentRank
	}
	return out
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Operations before Start fail with ErrNotStarted", func() {
			_, err := svc.GetActiveLeaderboard(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.RebuildAll(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When started and stopped", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.GetStats()["started"], ShouldEqual, true)

			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped and rejects work", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				_, err := svc.RebuildAll(ctx)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})
	})
}

func TestAliceBobCharlie(t *testing.T) {
	Convey("Given Alice, Bob and Charlie in baseline order", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()
		addRoster(svc, "alice", "bob", "charlie")
		So(ranks(svc), ShouldResemble, map[string]int{"alice": 1, "bob": 2, "charlie": 3})

		Convey("When Bob beats Alice", func() {
			rec, res, err := svc.RecordContest(ctx, service.ContestInput{
				Side1ID: "bob", Side2ID: "alice", Score: straightSets(true), Actor: "admin",
			})
			So(err, ShouldBeNil)
			So(rec.WinningSide, ShouldEqual, model.Side1)
			So(rec.RecordedBy, ShouldEqual, "admin")
			So(res.Success, ShouldBeTrue)
			So(res.UpdatedCompetitors, ShouldEqual, 2)
			So(ranks(svc), ShouldResemble, map[string]int{"bob": 1, "alice": 2, "charlie": 3})

			Convey("And Charlie is moved to rank 1", func() {
				evt, res, err := svc.RecordManualAdjustment(ctx, service.AdjustmentInput{
					CompetitorID: "charlie", TargetRank: 1, Reason: "seeding", Actor: "admin",
				})
				So(err, ShouldBeNil)
				So(evt.Kind(), ShouldEqual, model.KindManualAdjustment)
				So(res.Success, ShouldBeTrue)
				So(ranks(svc), ShouldResemble, map[string]int{"charlie": 1, "bob": 2, "alice": 3})

				Convey("Then the timeline carries audit fields in replay order", func() {
					events, err := svc.Timeline(ctx)
					So(err, ShouldBeNil)
					So(len(events), ShouldEqual, 2)
					So(events[0].Audit, ShouldResemble, model.Audit{OldRank: 2, NewRank: 1, Note: "took rank 1 from alice"})
					So(events[1].Audit.OldRank, ShouldEqual, 3)
					So(events[1].Audit.NewRank, ShouldEqual, 1)
					So(events[1].Audit.Note, ShouldEqual, "manual adjustment by admin: seeding")
				})

				Convey("Then rebuilding again changes nothing", func() {
					res, err := svc.RebuildAll(ctx)
					So(err, ShouldBeNil)
					So(res.Success, ShouldBeTrue)
					So(res.UpdatedCompetitors, ShouldEqual, 0)
					So(ranks(svc), ShouldResemble, map[string]int{"charlie": 1, "bob": 2, "alice": 3})
				})

				Convey("Then deleting the adjustment restores the contest result", func() {
					_, err := svc.DeleteEvent(ctx, evt.ID)
					So(err, ShouldBeNil)
					So(ranks(svc), ShouldResemble, map[string]int{"bob": 1, "alice": 2, "charlie": 3})
				})
			})

			Convey("And the contest is edited so Alice won", func() {
				_, _, err := svc.UpdateContest(ctx, rec.ID, straightSets(false))
				So(err, ShouldBeNil)
				So(ranks(svc), ShouldResemble, map[string]int{"alice": 1, "bob": 2, "charlie": 3})
			})
		})
	})
}

func TestContestValidation(t *testing.T) {
	Convey("Given a started service with two competitors", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := startService(store)
		defer svc.Stop()
		addRoster(svc, "alice", "bob")

		assertNothingWritten := func() {
			events, err := svc.Timeline(ctx)
			So(err, ShouldBeNil)
			So(events, ShouldBeEmpty)
		}

		Convey("A tied set is rejected as invalid input", func() {
			score := model.Score{Set1: model.SetScore{Side1: 6, Side2: 6}, Set2: model.SetScore{Side1: 6, Side2: 4}}
			_, _, err := svc.RecordContest(ctx, service.ContestInput{Side1ID: "alice", Side2ID: "bob", Score: score})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			assertNothingWritten()
		})

		Convey("A competitor cannot play themselves", func() {
			_, _, err := svc.RecordContest(ctx, service.ContestInput{Side1ID: "alice", Side2ID: "alice", Score: straightSets(true)})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			assertNothingWritten()
		})

		Convey("An unknown competitor is reported as not found", func() {
			_, _, err := svc.RecordContest(ctx, service.ContestInput{Side1ID: "alice", Side2ID: "zed", Score: straightSets(true)})
			So(errors.Is(err, model.ErrCompetitorNotFound), ShouldBeTrue)
			assertNothingWritten()
		})

		Convey("An inactive competitor cannot record new contests", func() {
			_, err := svc.SetCompetitorActive(ctx, "bob", false)
			So(err, ShouldBeNil)
			_, _, err = svc.RecordContest(ctx, service.ContestInput{Side1ID: "alice", Side2ID: "bob", Score: straightSets(true)})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			assertNothingWritten()
		})

		Convey("A retirement decides the contest regardless of score", func() {
			score := model.Score{Set1: model.SetScore{Side1: 0, Side2: 6}, Set2: model.SetScore{Side1: 1, Side2: 3}, Retired: model.Side2}
			rec, _, err := svc.RecordContest(ctx, service.ContestInput{Side1ID: "bob", Side2ID: "alice", Score: score})
			So(err, ShouldBeNil)
			So(rec.Winner(), ShouldEqual, "bob")
			So(ranks(svc), ShouldResemble, map[string]int{"bob": 1, "alice": 2})
		})

		Convey("A play time outside the accepted window is rejected", func() {
			for _, playedAt := range []time.Time{
				time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC),
				time.Unix(0, 0),
				time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC),
				epoch.Add(72 * time.Hour),
			} {
				_, _, err := svc.RecordContest(ctx, service.ContestInput{
					Side1ID: "bob", Side2ID: "alice", Score: straightSets(true), PlayedAt: playedAt,
				})
				So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
			}
			assertNothingWritten()
		})

		Convey("A play time slightly ahead of the clock is accepted", func() {
			rec, _, err := svc.RecordContest(ctx, service.ContestInput{
				Side1ID: "bob", Side2ID: "alice", Score: straightSets(true), PlayedAt: epoch.Add(12 * time.Hour),
			})
			So(err, ShouldBeNil)
			So(rec.PlayedAt, ShouldEqual, epoch.Add(12*time.Hour))
		})

		Convey("Editing an unknown contest is reported as not found", func() {
			_, _, err := svc.UpdateContest(ctx, "missing", straightSets(true))
			So(errors.Is(err, model.ErrContestNotFound), ShouldBeTrue)
		})
	})
}

func TestManualAdjustmentValidation(t *testing.T) {
	Convey("Given three competitors", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()
		addRoster(svc, "alice", "bob", "charlie")

		for _, target := range []int{0, -1, 4} {
			Convey(fmt.Sprintf("Target rank %d is rejected before append", target), func() {
				_, _, err := svc.RecordManualAdjustment(ctx, service.AdjustmentInput{CompetitorID: "bob", TargetRank: target})
				So(errors.Is(err, model.ErrInvalidRank), ShouldBeTrue)
				events, err := svc.Timeline(ctx)
				So(err, ShouldBeNil)
				So(events, ShouldBeEmpty)
			})
		}

		Convey("An unknown competitor is reported as not found", func() {
			_, _, err := svc.RecordManualAdjustment(ctx, service.AdjustmentInput{CompetitorID: "zed", TargetRank: 1})
			So(errors.Is(err, model.ErrCompetitorNotFound), ShouldBeTrue)
		})

		Convey("Moving down shifts the window up", func() {
			_, _, err := svc.RecordManualAdjustment(ctx, service.AdjustmentInput{CompetitorID: "alice", TargetRank: 3})
			So(err, ShouldBeNil)
			So(ranks(svc), ShouldResemble, map[string]int{"bob": 1, "charlie": 2, "alice": 3})
		})
	})
}

func TestBackdatedContestReplaysInPlayOrder(t *testing.T) {
	Convey("Given a contest recorded after a later-played one", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()
		addRoster(svc, "alice", "bob", "charlie")

		_, _, err := svc.RecordContest(ctx, service.ContestInput{
			Side1ID: "charlie", Side2ID: "bob", Score: straightSets(true), PlayedAt: epoch.Add(-24 * time.Hour),
		})
		So(err, ShouldBeNil)
		_, _, err = svc.RecordContest(ctx, service.ContestInput{
			Side1ID: "bob", Side2ID: "alice", Score: straightSets(true), PlayedAt: epoch.Add(-48 * time.Hour),
		})
		So(err, ShouldBeNil)

		Convey("Then the replay follows played order, not insertion order", func() {
			So(ranks(svc), ShouldResemble, map[string]int{"charlie": 1, "bob": 2, "alice": 3})
		})
	})
}

func TestDeleteContestEvent(t *testing.T) {
	Convey("Given a recorded contest", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := startService(store)
		defer svc.Stop()
		addRoster(svc, "alice", "bob")

		rec, _, err := svc.RecordContest(ctx, service.ContestInput{Side1ID: "bob", Side2ID: "alice", Score: straightSets(true)})
		So(err, ShouldBeNil)
		events, err := svc.Timeline(ctx)
		So(err, ShouldBeNil)
		So(len(events), ShouldEqual, 1)

		Convey("When its event is deleted", func() {
			res, err := svc.DeleteEvent(ctx, events[0].ID)
			So(err, ShouldBeNil)
			So(res.Success, ShouldBeTrue)

			Convey("Then the baseline order returns and the record is gone", func() {
				So(ranks(svc), ShouldResemble, map[string]int{"alice": 1, "bob": 2})
				_, err := store.GetContestRecord(ctx, rec.ID)
				So(errors.Is(err, model.ErrContestNotFound), ShouldBeTrue)
			})

			Convey("Then deleting it again is not found", func() {
				_, err := svc.DeleteEvent(ctx, events[0].ID)
				So(errors.Is(err, model.ErrEventNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestActiveLeaderboard(t *testing.T) {
	Convey("Given an inactive competitor between two active ones", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()
		addRoster(svc, "alice", "bob", "charlie")
		_, err := svc.SetCompetitorActive(ctx, "bob", false)
		So(err, ShouldBeNil)

		Convey("Then display ranks are dense and current ranks untouched", func() {
			board, err := svc.GetActiveLeaderboard(ctx)
			So(err, ShouldBeNil)
			So(board, ShouldResemble, []types.Entry{
				{DisplayRank: 1, CurrentRank: 1, CompetitorID: "alice", Name: "alice", Active: true},
				{DisplayRank: 2, CurrentRank: 3, CompetitorID: "charlie", Name: "charlie", Active: true},
			})
		})

		Convey("Then the full roster still lists bob in his slot", func() {
			roster, err := svc.Roster(ctx)
			So(err, ShouldBeNil)
			So(len(roster), ShouldEqual, 3)
			So(roster[1].CompetitorID, ShouldEqual, "bob")
			So(roster[1].Active, ShouldBeFalse)
		})
	})
}

func TestCreateCompetitor(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore(), service.WithIDGenerator(func() string { return "generated" }))
		defer svc.Stop()

		Convey("Names are trimmed, collapsed and NFC-normalized", func() {
			c, err := svc.CreateCompetitor(ctx, service.CompetitorInput{Name: "  Zoë   Smith "})
			So(err, ShouldBeNil)
			So(c.Name, ShouldEqual, "Zoë Smith")
			So(c.ID, ShouldEqual, "generated")
			So(c.CurrentRank, ShouldEqual, 1)
			So(c.Active, ShouldBeTrue)
		})

		Convey("Blank names are invalid input", func() {
			_, err := svc.CreateCompetitor(ctx, service.CompetitorInput{Name: "   "})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Duplicate ids are invalid input", func() {
			_, err := svc.CreateCompetitor(ctx, service.CompetitorInput{ID: "x", Name: "X"})
			So(err, ShouldBeNil)
			_, err = svc.CreateCompetitor(ctx, service.CompetitorInput{ID: "x", Name: "Y"})
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestNormalize(t *testing.T) {
	Convey("Given stored ranks with a duplicate and a gap", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := startService(store, service.WithRebuildOnStart(false))
		defer svc.Stop()
		addRoster(svc, "alice", "bob", "charlie")
		So(store.WriteCompetitorRanks(ctx, []model.RankUpdate{
			{CompetitorID: "alice", CurrentRank: 5},
			{CompetitorID: "bob", CurrentRank: 2},
			{CompetitorID: "charlie", CurrentRank: 2},
		}), ShouldBeNil)

		Convey("Then Normalize repairs them to 1..N keeping order", func() {
			changed, err := svc.Normalize(ctx)
			So(err, ShouldBeNil)
			So(changed, ShouldEqual, 2)
			So(ranks(svc), ShouldResemble, map[string]int{"bob": 1, "charlie": 2, "alice": 3})

			changed, err = svc.Normalize(ctx)
			So(err, ShouldBeNil)
			So(changed, ShouldEqual, 0)
		})
	})
}

func TestIdempotencyKeys(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore())
		defer svc.Stop()

		So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeFalse)
		So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeTrue)
		svc.Unrecord(ctx, "key-1")
		So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeFalse)
		So(svc.GetStats()["idempotencyKeys"], ShouldEqual, int64(1))
	})

	Convey("Given a service whose idempotency keys expire", t, func() {
		ctx := context.Background()
		// The step clock moves one minute per reading, so every key outlives the ttl.
		svc := startService(repository.NewMemoryStore(), service.WithIdempotencyTTL(30*time.Second))
		defer svc.Stop()

		So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeFalse)
		So(svc.SeenAndRecord(ctx, "key-1"), ShouldBeFalse)
		So(svc.GetStats()["idempotencyTtlMs"], ShouldEqual, int64(30_000))
	})
}

func TestConcurrentContestsKeepPermutation(t *testing.T) {
	Convey("Given many contests recorded concurrently", t, func() {
		ctx := context.Background()
		svc := startService(repository.NewMemoryStore(), service.WithRebuildQueueSize(256))
		defer svc.Stop()
		ids := []string{"a", "b", "c", "d", "e", "f"}
		addRoster(svc, ids...)

		var wg sync.WaitGroup
		errs := make(chan error, 30)
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _, err := svc.RecordContest(ctx, service.ContestInput{
					Side1ID: ids[i%len(ids)], Side2ID: ids[(i+1)%len(ids)], Score: straightSets(i%2 == 0),
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			So(err, ShouldBeNil)
		}

		Convey("Then the stored ranks form a permutation and match a fresh rebuild", func() {
			before := ranks(svc)
			seen := map[int]bool{}
			for _, r := range before {
				So(r, ShouldBeBetweenOrEqual, 1, len(ids))
				So(seen[r], ShouldBeFalse)
				seen[r] = true
			}
			res, err := svc.RebuildAll(ctx)
			So(err, ShouldBeNil)
			So(res.UpdatedCompetitors, ShouldEqual, 0)
			So(ranks(svc), ShouldResemble, before)
		})
	})
}

// deletingStore removes a contest record right after it is read, as a
// concurrent DeleteEvent would between UpdateContest's read and write.
type deletingStore struct {
	*repository.MemoryStore
	armed bool
}

func (s *deletingStore) GetContestRecord(ctx context.Context, id string) (model.ContestRecord, error) {
	rec, err := s.MemoryStore.GetContestRecord(ctx, id)
	if err == nil && s.armed {
		s.armed = false
		err = s.MemoryStore.DeleteContestRecord(ctx, id)
	}
	return rec, err
}

func TestEditRacingDeleteDoesNotResurrect(t *testing.T) {
	Convey("Given a contest deleted while it is being edited", t, func() {
		ctx := context.Background()
		store := &deletingStore{MemoryStore: repository.NewMemoryStore()}
		svc := startService(store)
		defer svc.Stop()
		addRoster(svc, "alice", "bob")

		rec, _, err := svc.RecordContest(ctx, service.ContestInput{
			Side1ID: "bob", Side2ID: "alice", Score: straightSets(true),
		})
		So(err, ShouldBeNil)

		store.armed = true
		_, _, err = svc.UpdateContest(ctx, rec.ID, straightSets(false))
		So(errors.Is(err, model.ErrContestNotFound), ShouldBeTrue)

		_, err = store.MemoryStore.GetContestRecord(ctx, rec.ID)
		So(errors.Is(err, model.ErrContestNotFound), ShouldBeTrue)
	})
}
