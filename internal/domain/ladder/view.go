package ladder

import (
	"slices"
	"sort"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
	"github.com/mcronin4/scrappers-cup/internal/domain/types"
)

// byCurrentRank returns a copy of competitors stably sorted by CurrentRank.
func byCurrentRank(competitors []model.Competitor) []model.Competitor {
	sorted := slices.Clone(competitors)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CurrentRank < sorted[j].CurrentRank
	})
	return sorted
}

// ActiveView lists active competitors in ladder order with a dense DisplayRank 1..k.
func ActiveView(competitors []model.Competitor) []types.Entry {
	out := make([]types.Entry, 0, len(competitors))
	for _, c := range byCurrentRank(competitors) {
		if !c.Active {
			continue
		}
		out = append(out, types.Entry{
			DisplayRank:  len(out) + 1,
			CurrentRank:  c.CurrentRank,
			CompetitorID: c.ID,
			Name:         c.Name,
			Active:       true,
		})
	}
	return out
}

// FullView lists every competitor in ladder order. DisplayRank equals position.
func FullView(competitors []model.Competitor) []types.Entry {
	sorted := byCurrentRank(competitors)
	out := make([]types.Entry, len(sorted))
	for i, c := range sorted {
		out[i] = types.Entry{
			DisplayRank:  i + 1,
			CurrentRank:  c.CurrentRank,
			CompetitorID: c.ID,
			Name:         c.Name,
			Active:       c.Active,
		}
	}
	return out
}

// Normalize repairs stored ranks to 1..N, keeping the existing relative order.
// It is a repair tool and plays no part in replay.
func Normalize(competitors []model.Competitor) []model.Competitor {
	sorted := byCurrentRank(competitors)
	for i := range sorted {
		sorted[i].CurrentRank = i + 1
	}
	return sorted
}

// IsPermutation reports whether the CurrentRank values form exactly {1..N}.
func IsPermutation(competitors []model.Competitor) bool {
	seen := make([]bool, len(competitors)+1)
	for _, c := range competitors {
		if c.CurrentRank < 1 || c.CurrentRank > len(competitors) || seen[c.CurrentRank] {
			return false
		}
		seen[c.CurrentRank] = true
	}
	return true
}
