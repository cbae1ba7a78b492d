// Package ladder holds the working roster and the pure transitions applied to it.
//
// A Roster is an ordered list of competitor ids; a competitor's rank is its
// position plus one. Transitions are list splices and never mutate their input.
package ladder

import (
	"slices"
	"sort"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// Roster is the transient ordering used during a replay.
type Roster []string

// Move records where a competitor stood before and after a transition.
type Move struct {
	CompetitorID string
	From         int
	To           int
}

// Changed reports whether the transition moved the competitor.
func (m Move) Changed() bool { return m.From != m.To }

// Baseline orders every competitor by BaselineRank, breaking ties by creation order.
func Baseline(competitors []model.Competitor) Roster {
	sorted := slices.Clone(competitors)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BaselineRank != b.BaselineRank {
			return a.BaselineRank < b.BaselineRank
		}
		if a.CreatedSeq != b.CreatedSeq {
			return a.CreatedSeq < b.CreatedSeq
		}
		return a.ID < b.ID
	})

	r := make(Roster, len(sorted))
	for i, c := range sorted {
		r[i] = c.ID
	}
	return r
}

// Len returns the number of competitors on the roster.
func (r Roster) Len() int { return len(r) }

// Rank returns the 1-based position of id.
func (r Roster) Rank(id string) (int, bool) {
	i := slices.Index(r, id)
	if i < 0 {
		return 0, false
	}
	return i + 1, true
}

// Clone returns an independent copy.
func (r Roster) Clone() Roster { return slices.Clone(r) }

// Ranks returns the write-back rows for every competitor, rank = index+1.
func (r Roster) Ranks() []model.RankUpdate {
	out := make([]model.RankUpdate, len(r))
	for i, id := range r {
		out[i] = model.RankUpdate{CompetitorID: id, CurrentRank: i + 1}
	}
	return out
}

// moveTo removes the competitor at index from and reinserts it at index to.
func (r Roster) moveTo(from, to int) Roster {
	out := r.Clone()
	id := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, id)
}
