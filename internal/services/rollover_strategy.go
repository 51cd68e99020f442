package services

import (
	"fmt"
	"time"

	"budget/internal/core"
)

// PopulationChecker decides whether a period should be filled from the
// budget template at now.
type PopulationChecker interface {
	IsDue(period core.Period, now time.Time) bool
}

// CutoverChecker populates a period once, on any day inside it. The
// populated_at marker makes repeated runs no-ops.
type CutoverChecker struct{}

func (CutoverChecker) IsDue(period core.Period, now time.Time) bool {
	if period.PopulatedAt != nil {
		return false
	}
	return period.Contains(core.DateOf(now))
}

// ForceChecker always populates. Re-population resets categories to the
// template but never deposits salaries twice.
type ForceChecker struct{}

func (ForceChecker) IsDue(core.Period, time.Time) bool {
	return true
}

// RolloverMode selects a PopulationChecker.
type RolloverMode string

const (
	RolloverOnce  RolloverMode = "once"
	RolloverForce RolloverMode = "force"
)

var populationCheckers = map[RolloverMode]PopulationChecker{
	RolloverOnce:  CutoverChecker{},
	RolloverForce: ForceChecker{},
}

// GetPopulationChecker returns the checker registered for mode.
func GetPopulationChecker(mode RolloverMode) (PopulationChecker, error) {
	checker, ok := populationCheckers[mode]
	if !ok {
		return nil, fmt.Errorf("unknown rollover mode: %s", mode)
	}
	return checker, nil
}
