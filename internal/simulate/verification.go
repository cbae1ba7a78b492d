package simulate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
)

// ErrInconsistent is returned when the ladder breaks an invariant.
var ErrInconsistent = errors.New("ladder inconsistent")

// verifyLadder settles queued work with a rebuild, then checks the roster is
// a permutation, the leaderboard is dense and a second rebuild is a no-op.
func verifyLadder(ctx context.Context, client *httpClient, stats *Stats) error {
	if _, err := rebuild(ctx, client); err != nil {
		return err
	}

	var roster entryList
	if err := client.get(ctx, "/roster", &roster); err != nil {
		return err
	}
	stats.RosterSize = len(roster.Items)
	if err := checkPermutation(roster.Items); err != nil {
		return err
	}

	var board entryList
	if err := client.get(ctx, "/leaderboard", &board); err != nil {
		return err
	}
	if err := checkDense(board.Items); err != nil {
		return err
	}

	changed, err := rebuild(ctx, client)
	if err != nil {
		return err
	}
	if changed != 0 {
		return fmt.Errorf("%w: repeated rebuild changed %d competitors", ErrInconsistent, changed)
	}
	return nil
}

func rebuild(ctx context.Context, client *httpClient) (int, error) {
	var res writeResult
	status, err := client.do(ctx, http.MethodPost, "/rebuild", nil, nil, &res)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK || res.Rebuild == nil {
		return 0, fmt.Errorf("rebuild: status %d", status)
	}
	if !res.Rebuild.Success {
		return 0, fmt.Errorf("%w: rebuild reported failure", ErrInconsistent)
	}
	return res.Rebuild.UpdatedCompetitors, nil
}

// checkPermutation verifies current ranks are exactly 1..N.
func checkPermutation(entries []Entry) error {
	ranks := make([]int, 0, len(entries))
	for _, e := range entries {
		ranks = append(ranks, e.CurrentRank)
	}
	sort.Ints(ranks)
	for i, r := range ranks {
		if r != i+1 {
			return fmt.Errorf("%w: ranks are not a permutation of 1..%d (position %d holds %d)",
				ErrInconsistent, len(ranks), i+1, r)
		}
	}
	return nil
}

// checkDense verifies display ranks run 1..K in current rank order.
func checkDense(entries []Entry) error {
	for i, e := range entries {
		if e.DisplayRank != i+1 {
			return fmt.Errorf("%w: display rank %d at position %d", ErrInconsistent, e.DisplayRank, i+1)
		}
		if i > 0 && entries[i-1].CurrentRank >= e.CurrentRank {
			return fmt.Errorf("%w: leaderboard out of ladder order at %s", ErrInconsistent, e.CompetitorID)
		}
		if !e.Active {
			return fmt.Errorf("%w: inactive %s on leaderboard", ErrInconsistent, e.CompetitorID)
		}
	}
	return nil
}
