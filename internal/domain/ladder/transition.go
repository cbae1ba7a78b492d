package ladder

import (
	"fmt"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// ApplyContest applies the poison ladder rule.
//
// A winner already ranked at or above the loser leaves the roster unchanged.
// Otherwise the winner takes the loser's slot and everyone from that slot down
// to the winner's old slot shifts down by one.
func ApplyContest(r Roster, winnerID, loserID string) (Roster, Move, error) {
	if winnerID == loserID {
		return nil, Move{}, fmt.Errorf("%w: competitor %s cannot play itself", model.ErrInvalidInput, winnerID)
	}
	winnerRank, ok := r.Rank(winnerID)
	if !ok {
		return nil, Move{}, fmt.Errorf("%w: winner %s", model.ErrCompetitorNotFound, winnerID)
	}
	loserRank, ok := r.Rank(loserID)
	if !ok {
		return nil, Move{}, fmt.Errorf("%w: loser %s", model.ErrCompetitorNotFound, loserID)
	}

	move := Move{CompetitorID: winnerID, From: winnerRank, To: winnerRank}
	if winnerRank <= loserRank {
		return r.Clone(), move, nil
	}

	move.To = loserRank
	return r.moveTo(winnerRank-1, loserRank-1), move, nil
}

// ApplyAdjustment moves one competitor to targetRank, shifting the others by one.
func ApplyAdjustment(r Roster, competitorID string, targetRank int) (Roster, Move, error) {
	if targetRank < 1 || targetRank > r.Len() {
		return nil, Move{}, fmt.Errorf("%w: %d is outside 1..%d", model.ErrInvalidRank, targetRank, r.Len())
	}
	current, ok := r.Rank(competitorID)
	if !ok {
		return nil, Move{}, fmt.Errorf("%w: %s", model.ErrCompetitorNotFound, competitorID)
	}

	move := Move{CompetitorID: competitorID, From: current, To: targetRank}
	return r.moveTo(current-1, targetRank-1), move, nil
}
