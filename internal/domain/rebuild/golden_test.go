package rebuild_test

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"gopkg.in/yaml.v3"

	"github.com/mcronin4/scrappers-cup/internal/domain/ladder"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/rebuild"
)

// scenario is a replay fixture: a baseline roster and a timeline.
type scenario struct {
	Name        string          `yaml:"name"`
	Competitors []string        `yaml:"competitors"`
	Inactive    []string        `yaml:"inactive"`
	Events      []scenarioEvent `yaml:"events"`
}

type scenarioEvent struct {
	// At is the event time in minutes after the scenario start.
	At         int                 `yaml:"at"`
	Contest    *scenarioContest    `yaml:"contest"`
	Adjustment *scenarioAdjustment `yaml:"adjustment"`
	// MissingContest appends a contest event whose record does not exist.
	MissingContest string `yaml:"missing_contest"`
}

type scenarioContest struct {
	Side1    string  `yaml:"side1"`
	Side2    string  `yaml:"side2"`
	Sets     [][]int `yaml:"sets"`
	Tiebreak []int   `yaml:"tiebreak"`
	Retired  int     `yaml:"retired"`
}

type scenarioAdjustment struct {
	Competitor string `yaml:"competitor"`
	Rank       int    `yaml:"rank"`
	Actor      string `yaml:"actor"`
	Reason     string `yaml:"reason"`
}

func loadScenario(t *testing.T, path string) scenario {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scenario: %v", err)
	}
	var sc scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		t.Fatalf("parse scenario %s: %v", path, err)
	}
	return sc
}

func (sc scenario) build() *ladderFixture {
	f := newFixture(sc.Competitors...)
	for _, id := range sc.Inactive {
		f.deactivate(id)
	}
	for _, e := range sc.Events {
		at := time.Duration(e.At) * time.Minute
		switch {
		case e.Contest != nil:
			score := model.Score{Retired: model.Side(e.Contest.Retired)}
			if len(e.Contest.Sets) > 0 && len(e.Contest.Sets[0]) == 2 {
				score.Set1 = model.SetScore{Side1: e.Contest.Sets[0][0], Side2: e.Contest.Sets[0][1]}
			}
			if len(e.Contest.Sets) > 1 && len(e.Contest.Sets[1]) == 2 {
				score.Set2 = model.SetScore{Side1: e.Contest.Sets[1][0], Side2: e.Contest.Sets[1][1]}
			}
			if len(e.Contest.Tiebreak) == 2 {
				score.Tiebreak = &model.SetScore{Side1: e.Contest.Tiebreak[0], Side2: e.Contest.Tiebreak[1]}
			}
			f.contest(at, e.Contest.Side1, e.Contest.Side2, score)
		case e.Adjustment != nil:
			f.adjust(at, e.Adjustment.Competitor, e.Adjustment.Rank, e.Adjustment.Actor, e.Adjustment.Reason)
		case e.MissingContest != "":
			f.danglingContest(at, e.MissingContest)
		}
	}
	return f
}

// trace renders the committed state of a rebuild in a stable text form.
func trace(f *ladderFixture, name string, res rebuild.Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", name)

	events, _ := f.store.ListTimelineEvents(f.ctx)
	sort.Slice(events, func(i, j int) bool { return events[i].Before(events[j]) })
	for _, e := range events {
		fmt.Fprintf(&b, "event %s %s old=%d new=%d note=%q\n", e.ID, e.Kind(), e.Audit.OldRank, e.Audit.NewRank, e.Audit.Note)
	}

	competitors, _ := f.store.ListCompetitors(f.ctx)
	for _, e := range ladder.FullView(competitors) {
		fmt.Fprintf(&b, "rank %d %s active=%t\n", e.CurrentRank, e.CompetitorID, e.Active)
	}
	for _, e := range ladder.ActiveView(competitors) {
		fmt.Fprintf(&b, "display %d %s\n", e.DisplayRank, e.CompetitorID)
	}

	fmt.Fprintf(&b, "result success=%t updated=%d errors=%d replayed=%d\n",
		res.Success, res.UpdatedCompetitors, res.ErrorCount, res.EventsReplayed)
	return []byte(b.String())
}

func TestRebuildGoldenScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("no scenarios found")
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	for _, path := range paths {
		sc := loadScenario(t, path)
		t.Run(sc.Name, func(t *testing.T) {
			f := sc.build()
			engine := rebuild.New(f.store)

			res, err := engine.Rebuild(f.ctx)
			if err != nil {
				t.Fatalf("rebuild: %v", err)
			}
			g.Assert(t, sc.Name, trace(f, sc.Name, res))

			again, err := engine.Rebuild(f.ctx)
			if err != nil {
				t.Fatalf("second rebuild: %v", err)
			}
			if again.UpdatedCompetitors != 0 {
				t.Errorf("second rebuild changed %d competitors", again.UpdatedCompetitors)
			}
			competitors, _ := f.store.ListCompetitors(f.ctx)
			if !ladder.IsPermutation(competitors) {
				t.Errorf("ranks are not a permutation of 1..%d", len(competitors))
			}
		})
	}
}
