// Package seed imports a roster and its contest history from a YAML file.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

// ErrInvalidFile is returned for seed files that fail to parse or validate.
var ErrInvalidFile = errors.New("invalid seed file")

// File is the YAML seed document. Competitors are created in listed order, so
// that order is the baseline ladder. Contests replay in play order, and
// adjustments are appended after them.
type File struct {
	Competitors []Competitor `yaml:"competitors"`
	Contests    []Contest    `yaml:"contests"`
	Adjustments []Adjustment `yaml:"adjustments"`
}

// Competitor is one roster row.
type Competitor struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Inactive bool   `yaml:"inactive"`
}

// Contest is one historical result. Sets are [side1, side2] game counts.
type Contest struct {
	Side1    string    `yaml:"side1"`
	Side2    string    `yaml:"side2"`
	Set1     []int     `yaml:"set1"`
	Set2     []int     `yaml:"set2"`
	Tiebreak []int     `yaml:"tiebreak"`
	Retired  string    `yaml:"retired"`
	PlayedAt time.Time `yaml:"played_at"`
}

// Adjustment is one manual move.
type Adjustment struct {
	Competitor string `yaml:"competitor"`
	TargetRank int    `yaml:"target_rank"`
	Reason     string `yaml:"reason"`
}

// Target is the subset of the service a seed is applied to.
type Target interface {
	CreateCompetitor(ctx context.Context, in service.CompetitorInput) (model.Competitor, error)
	RecordContest(ctx context.Context, in service.ContestInput) (model.ContestRecord, rebuild.Result, error)
	RecordManualAdjustment(ctx context.Context, in service.AdjustmentInput) (model.Event, rebuild.Result, error)
}

// Summary counts what Apply wrote.
type Summary struct {
	Competitors int `json:"competitors"`
	Contests    int `json:"contests"`
	Adjustments int `json:"adjustments"`
}

// Parse decodes and validates a seed document. Unknown keys are rejected.
func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

// Load reads and parses the seed file at path.
func Load(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = fh.Close() }()
	return Parse(fh)
}

// Validate checks the document's shape. Score semantics are left to the
// outcome resolver when the contest is recorded.
func (f File) Validate() error {
	ids := make(map[string]bool, len(f.Competitors))
	for i, c := range f.Competitors {
		if c.Name == "" {
			return fmt.Errorf("%w: competitor %d has no name", ErrInvalidFile, i+1)
		}
		if c.ID != "" {
			if ids[c.ID] {
				return fmt.Errorf("%w: duplicate competitor id %q", ErrInvalidFile, c.ID)
			}
			ids[c.ID] = true
		}
	}
	for i, c := range f.Contests {
		if c.Side1 == "" || c.Side2 == "" {
			return fmt.Errorf("%w: contest %d needs side1 and side2", ErrInvalidFile, i+1)
		}
		for name, set := range map[string][]int{"set1": c.Set1, "set2": c.Set2} {
			if len(set) != 2 {
				return fmt.Errorf("%w: contest %d %s must be [side1, side2]", ErrInvalidFile, i+1, name)
			}
		}
		if c.Tiebreak != nil && len(c.Tiebreak) != 2 {
			return fmt.Errorf("%w: contest %d tiebreak must be [side1, side2]", ErrInvalidFile, i+1)
		}
		if _, err := parseSide(c.Retired); err != nil {
			return fmt.Errorf("%w: contest %d: %w", ErrInvalidFile, i+1, err)
		}
	}
	for i, a := range f.Adjustments {
		if a.Competitor == "" {
			return fmt.Errorf("%w: adjustment %d has no competitor", ErrInvalidFile, i+1)
		}
	}
	return nil
}

// Score converts the contest's sets into a model score.
func (c Contest) Score() model.Score {
	s := model.Score{
		Set1: model.SetScore{Side1: c.Set1[0], Side2: c.Set1[1]},
		Set2: model.SetScore{Side1: c.Set2[0], Side2: c.Set2[1]},
	}
	if len(c.Tiebreak) == 2 {
		s.Tiebreak = &model.SetScore{Side1: c.Tiebreak[0], Side2: c.Tiebreak[1]}
	}
	s.Retired, _ = parseSide(c.Retired)
	return s
}

func parseSide(s string) (model.Side, error) {
	switch s {
	case "":
		return model.NoSide, nil
	case "side1":
		return model.Side1, nil
	case "side2":
		return model.Side2, nil
	default:
		return model.NoSide, fmt.Errorf("unknown side %q", s)
	}
}

// Apply writes f to t as actor and stops at the first failure. Each write
// triggers a rebuild, so the result matches recording the history by hand.
func Apply(ctx context.Context, t Target, f File, actor string) (Summary, error) {
	log := logger.Get().Named("seed")
	var sum Summary

	for _, c := range f.Competitors {
		created, err := t.CreateCompetitor(ctx, service.CompetitorInput{ID: c.ID, Name: c.Name, Inactive: c.Inactive})
		if err != nil {
			return sum, fmt.Errorf("seed competitor %q: %w", c.Name, err)
		}
		sum.Competitors++
		log.Debug(ctx, "competitor seeded", logger.String("competitor_id", created.ID), logger.Int("rank", created.CurrentRank))
	}

	for i, c := range f.Contests {
		_, _, err := t.RecordContest(ctx, service.ContestInput{
			Side1ID:  c.Side1,
			Side2ID:  c.Side2,
			Score:    c.Score(),
			PlayedAt: c.PlayedAt,
			Actor:    actor,
		})
		if err != nil {
			return sum, fmt.Errorf("seed contest %d: %w", i+1, err)
		}
		sum.Contests++
	}

	for i, a := range f.Adjustments {
		_, _, err := t.RecordManualAdjustment(ctx, service.AdjustmentInput{
			CompetitorID: a.Competitor,
			TargetRank:   a.TargetRank,
			Reason:       a.Reason,
			Actor:        actor,
		})
		if err != nil {
			return sum, fmt.Errorf("seed adjustment %d: %w", i+1, err)
		}
		sum.Adjustments++
	}

	log.Info(ctx, "seed applied",
		logger.Int("competitors", sum.Competitors),
		logger.Int("contests", sum.Contests),
		logger.Int("adjustments", sum.Adjustments),
	)
	return sum, nil
}
