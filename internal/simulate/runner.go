package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

const (
	healthPollInterval = 500 * time.Millisecond
	healthWait         = 30 * time.Second
)

// Submission outcomes.
const (
	outcomeRecorded  = "recorded"
	outcomePending   = "pending"
	outcomeDuplicate = "duplicate"
	outcomeFailed    = "failed"
)

// Run executes a complete simulation and returns its statistics. It fails if
// the ladder is inconsistent afterwards.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	stats := &Stats{StartTime: time.Now()}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	client := newHTTPClient(cfg)

	log.Info(ctx, "starting ladder simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("competitors", cfg.Competitors),
		logger.Int("contests", cfg.Contests),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
	)

	// Step 1: Check service health
	healthCtx, cancel := context.WithTimeout(ctx, healthWait)
	err := client.waitHealthy(healthCtx, healthPollInterval)
	cancel()
	if err != nil {
		return stats, err
	}

	// Step 2: Make sure the roster is large enough
	players, err := ensureRoster(ctx, client, cfg.Competitors, stats)
	if err != nil {
		return stats, fmt.Errorf("roster setup failed: %w", err)
	}

	// Step 3: Generate contests
	contests := generateContests(rng, players, cfg.Contests)
	stats.ContestsGenerated = len(contests)

	// Step 4: Submit contests concurrently
	submitContests(ctx, client, cfg, contests, stats)

	// Step 5: Settle pending writes and verify
	if err := verifyLadder(ctx, client, stats); err != nil {
		return stats, fmt.Errorf("verification failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// ensureRoster returns the active competitor ids, creating sim players until
// at least n exist.
func ensureRoster(ctx context.Context, client *httpClient, n int, stats *Stats) ([]string, error) {
	var roster entryList
	if err := client.get(ctx, "/roster", &roster); err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(roster.Items))
	players := make([]string, 0, max(n, len(roster.Items)))
	for _, e := range roster.Items {
		existing[e.CompetitorID] = true
		if e.Active {
			players = append(players, e.CompetitorID)
		}
	}

	for i := 1; len(existing) < n; i++ {
		id := fmt.Sprintf("sim-%03d", i)
		if existing[id] {
			continue
		}
		body := map[string]string{"id": id, "name": fmt.Sprintf("Sim Player %d", i)}
		status, err := client.do(ctx, http.MethodPost, "/competitors", body, nil, nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusCreated {
			return nil, fmt.Errorf("create %s: status %d", id, status)
		}
		existing[id] = true
		players = append(players, id)
		stats.CompetitorsCreated++
	}
	return players, nil
}

// submitContests posts contests with a worker pool. Every request carries a
// fresh Idempotency-Key.
func submitContests(ctx context.Context, client *httpClient, cfg *Config, contests []Contest, stats *Stats) {
	log := logger.Get().Named("simulate")
	workers := max(1, cfg.Workers)

	var recorded, pending, duplicate, failed, submitted int64
	work := make(chan Contest, workers*2)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range work {
				outcome, err := submitContest(ctx, client, c)
				atomic.AddInt64(&submitted, 1)
				switch outcome {
				case outcomeRecorded:
					atomic.AddInt64(&recorded, 1)
				case outcomePending:
					atomic.AddInt64(&pending, 1)
				case outcomeDuplicate:
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&failed, 1)
					if cfg.Verbose {
						log.Warn(ctx, "contest submission failed",
							logger.String("side1", c.Side1ID),
							logger.String("side2", c.Side2ID),
							logger.Error(err),
						)
					}
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, c := range contests {
			select {
			case <-ctx.Done():
				return
			case work <- c:
			}
		}
	}()
	wg.Wait()

	stats.ContestsSubmitted = int(submitted)
	stats.ContestsRecorded = int(recorded)
	stats.ContestsPending = int(pending)
	stats.ContestsDuplicate = int(duplicate)
	stats.ContestsFailed = int(failed)
}

func submitContest(ctx context.Context, client *httpClient, c Contest) (string, error) {
	headers := map[string]string{"Idempotency-Key": uuid.NewString()}
	var res writeResult
	status, err := client.do(ctx, http.MethodPost, "/contests", c, headers, &res)
	if err != nil {
		return outcomeFailed, err
	}
	switch status {
	case http.StatusCreated:
		return outcomeRecorded, nil
	case http.StatusAccepted:
		return outcomePending, nil
	case http.StatusOK:
		return outcomeDuplicate, nil
	default:
		return outcomeFailed, fmt.Errorf("status %d", status)
	}
}

// displayFinalStats logs the run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var contestsPerSecond float64
	if stats.Duration > 0 {
		contestsPerSecond = float64(stats.ContestsSubmitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("competitorsCreated", stats.CompetitorsCreated),
		logger.Int("rosterSize", stats.RosterSize),
		logger.Int("contestsGenerated", stats.ContestsGenerated),
		logger.Int("contestsSubmitted", stats.ContestsSubmitted),
		logger.Int("contestsRecorded", stats.ContestsRecorded),
		logger.Int("contestsPending", stats.ContestsPending),
		logger.Int("contestsDuplicate", stats.ContestsDuplicate),
		logger.Int("contestsFailed", stats.ContestsFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("contestsPerSecond", contestsPerSecond),
	)
}
