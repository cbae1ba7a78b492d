// Package outcome decides the winning side of a contest from its raw score.
package outcome

import (
	"fmt"

	"github.com/mcronin4/scrappers-cup/internal/domain/model"
)

// Resolve returns the winning side of a two-set contest with an optional
// deciding tiebreak.
//
// A retirement overrides the score. Otherwise a side winning both sets wins;
// on a one-set split the tiebreak decides, and without a tiebreak the side
// with more total games across both sets wins.
func Resolve(s model.Score) (model.Side, error) {
	if s.Retired != model.NoSide && !s.Retired.Valid() {
		return model.NoSide, fmt.Errorf("%w: retired side %d", model.ErrInvalidInput, s.Retired)
	}
	if err := nonNegative("set 1", s.Set1); err != nil {
		return model.NoSide, err
	}
	if err := nonNegative("set 2", s.Set2); err != nil {
		return model.NoSide, err
	}
	if s.Tiebreak != nil {
		if err := nonNegative("tiebreak", *s.Tiebreak); err != nil {
			return model.NoSide, err
		}
	}

	if s.Retired != model.NoSide {
		return s.Retired.Other(), nil
	}

	first, err := setWinner("set 1", s.Set1)
	if err != nil {
		return model.NoSide, err
	}
	second, err := setWinner("set 2", s.Set2)
	if err != nil {
		return model.NoSide, err
	}
	if first == second {
		return first, nil
	}

	if s.Tiebreak != nil {
		return setWinner("tiebreak", *s.Tiebreak)
	}

	side1 := s.Set1.Side1 + s.Set2.Side1
	side2 := s.Set1.Side2 + s.Set2.Side2
	switch {
	case side1 > side2:
		return model.Side1, nil
	case side2 > side1:
		return model.Side2, nil
	default:
		return model.NoSide, fmt.Errorf("%w: sets split with equal total games %d-%d and no tiebreak",
			model.ErrInvalidInput, side1, side2)
	}
}

func setWinner(label string, set model.SetScore) (model.Side, error) {
	switch {
	case set.Side1 > set.Side2:
		return model.Side1, nil
	case set.Side2 > set.Side1:
		return model.Side2, nil
	default:
		return model.NoSide, fmt.Errorf("%w: %s is tied %d-%d", model.ErrInvalidInput, label, set.Side1, set.Side2)
	}
}

func nonNegative(label string, set model.SetScore) error {
	if set.Side1 < 0 || set.Side2 < 0 {
		return fmt.Errorf("%w: %s has a negative score", model.ErrInvalidInput, label)
	}
	return nil
}
