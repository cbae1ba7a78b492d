package simulate

import (
	"math/rand/v2"
)

// Score shape weights out of 100.
const (
	straightSetsPercent = 70
	retirementPercent   = 5
	tiebreakTarget      = 10
)

// generateContests draws n contests between distinct random players.
func generateContests(rng *rand.Rand, players []string, n int) []Contest {
	contests := make([]Contest, 0, n)
	if len(players) < 2 {
		return contests
	}
	for range n {
		i := rng.IntN(len(players))
		j := rng.IntN(len(players) - 1)
		if j >= i {
			j++
		}
		c := Contest{Side1ID: players[i], Side2ID: players[j]}
		fillScore(rng, &c)
		contests = append(contests, c)
	}
	return contests
}

// fillScore writes a valid score won by a random side.
func fillScore(rng *rand.Rand, c *Contest) {
	side1Wins := rng.IntN(2) == 0
	roll := rng.IntN(100)

	switch {
	case roll < retirementPercent:
		c.Set1 = wonSet(rng, side1Wins)
		c.Set2 = setScore{Side1: rng.IntN(4), Side2: rng.IntN(4)}
		if side1Wins {
			c.Retired = "side2"
		} else {
			c.Retired = "side1"
		}
	case roll < straightSetsPercent:
		c.Set1 = wonSet(rng, side1Wins)
		c.Set2 = wonSet(rng, side1Wins)
	default:
		c.Set1 = wonSet(rng, side1Wins)
		c.Set2 = wonSet(rng, !side1Wins)
		loser := rng.IntN(tiebreakTarget - 1)
		if side1Wins {
			c.Tiebreak = &setScore{Side1: tiebreakTarget, Side2: loser}
		} else {
			c.Tiebreak = &setScore{Side1: loser, Side2: tiebreakTarget}
		}
	}
}

// wonSet returns a 6-x set won by side 1 or side 2.
func wonSet(rng *rand.Rand, side1 bool) setScore {
	loser := rng.IntN(5)
	if side1 {
		return setScore{Side1: 6, Side2: loser}
	}
	return setScore{Side1: loser, Side2: 6}
}
