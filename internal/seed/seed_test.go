package seed

import (
	"context"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/mcronin4/scrappers-cup/internal/adapters/repository"
	service "github.com/mcronin4/scrappers-cup/internal/app"
	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestParse(t *testing.T) {
	Convey("Given the sample cup seed", t, func() {
		f, err := Load("testdata/cup.yaml")
		So(err, ShouldBeNil)

		Convey("Then every section is decoded", func() {
			So(len(f.Competitors), ShouldEqual, 4)
			So(f.Competitors[3].Inactive, ShouldBeTrue)
			So(len(f.Contests), ShouldEqual, 2)
			So(f.Contests[1].Score().Tiebreak, ShouldResemble, &model.SetScore{Side1: 10, Side2: 7})
			So(f.Contests[0].PlayedAt.Day(), ShouldEqual, 1)
			So(f.Adjustments[0].TargetRank, ShouldEqual, 1)
		})
	})

	Convey("Given malformed seeds", t, func() {
		cases := map[string]string{
			"unknown key":       "competitors:\n  - name: A\n    rank: 1\n",
			"missing name":      "competitors:\n  - id: a\n",
			"duplicate id":      "competitors:\n  - {id: a, name: A}\n  - {id: a, name: B}\n",
			"short set":         "contests:\n  - {side1: a, side2: b, set1: [6], set2: [6, 1]}\n",
			"unknown retired":   "contests:\n  - {side1: a, side2: b, set1: [6, 1], set2: [6, 1], retired: both}\n",
			"anonymous adjust":  "adjustments:\n  - {target_rank: 1}\n",
			"not a mapping doc": "- just\n- a list\n",
		}
		for name, doc := range cases {
			Convey("Then "+name+" is rejected", func() {
				_, err := Parse(strings.NewReader(doc))
				So(errors.Is(err, ErrInvalidFile), ShouldBeTrue)
			})
		}
	})

	Convey("Given an empty document", t, func() {
		f, err := Parse(strings.NewReader(""))
		So(err, ShouldBeNil)
		So(f.Competitors, ShouldBeEmpty)
	})
}

func TestApply(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithStore(repository.NewMemoryStore()), service.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the sample seed is applied", func() {
			f, err := Load("testdata/cup.yaml")
			So(err, ShouldBeNil)
			sum, err := Apply(ctx, svc, f, "seed")
			So(err, ShouldBeNil)
			So(sum, ShouldResemble, Summary{Competitors: 4, Contests: 2, Adjustments: 1})

			Convey("Then the ladder reflects the replayed history", func() {
				roster, err := svc.Roster(ctx)
				So(err, ShouldBeNil)
				order := make([]string, 0, len(roster))
				for _, e := range roster {
					order = append(order, e.CompetitorID)
				}
				// bob beats alice: bob alice charlie dana
				// charlie beats bob: charlie bob alice dana
				// alice moved to 1: alice charlie bob dana
				So(order, ShouldResemble, []string{"alice", "charlie", "bob", "dana"})
			})

			Convey("Then the inactive competitor is hidden from the leaderboard", func() {
				board, err := svc.GetActiveLeaderboard(ctx)
				So(err, ShouldBeNil)
				So(len(board), ShouldEqual, 3)
			})
		})

		Convey("When a contest names an unknown competitor", func() {
			f := File{
				Competitors: []Competitor{{ID: "a", Name: "A"}},
				Contests:    []Contest{{Side1: "a", Side2: "ghost", Set1: []int{6, 1}, Set2: []int{6, 1}}},
			}
			sum, err := Apply(ctx, svc, f, "seed")

			Convey("Then Apply stops and reports what was written", func() {
				So(errors.Is(err, model.ErrCompetitorNotFound), ShouldBeTrue)
				So(sum.Competitors, ShouldEqual, 1)
				So(sum.Contests, ShouldEqual, 0)
			})
		})
	})
}
