// Package threshold implements budget threshold hysteresis: at most one
// firing per level per billing period, levels always surfaced in ascending
// order, state reset exactly at period rollover.
package threshold

import (
	"time"

	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/state"
)

// Tracker evaluates budget spend against configured escalation levels.
type Tracker struct{}

// NewTracker creates a tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Evaluate compares period-to-date spend with the budget limit and returns
// the updated state plus every threshold that newly fired, ascending. A spend
// spike that jumps past intermediate levels surfaces each skipped level too.
// Rollover is detected by comparing period start timestamps, never by timers.
func (t *Tracker) Evaluate(spec *policy.BudgetSpec, budgetName, scopeKey string, actualSpend float64, prev *state.ThresholdState, now time.Time) (*state.ThresholdState, []policy.ThresholdSpec) {
	periodStart := PeriodStart(spec.TimeUnit, now)

	next := &state.ThresholdState{
		BudgetName:      budgetName,
		ScopeKey:        scopeKey,
		PeriodStart:     periodStart,
		LastEvaluatedAt: now,
	}
	if prev != nil && prev.PeriodStart.Equal(periodStart) {
		next.HighestLevelFired = prev.HighestLevelFired
	}

	if spec.Limit <= 0 {
		return next, nil
	}
	percentage := actualSpend / spec.Limit * 100

	var fired []policy.ThresholdSpec
	for _, th := range spec.Thresholds { // validated strictly ascending
		if th.Percent <= percentage && th.Percent > next.HighestLevelFired {
			fired = append(fired, th)
			next.HighestLevelFired = th.Percent
		}
	}
	return next, fired
}

// PeriodStart returns the UTC start of the billing period containing now.
func PeriodStart(timeUnit string, now time.Time) time.Time {
	now = now.UTC()
	switch timeUnit {
	case "daily":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case "quarterly":
		q := (int(now.Month()) - 1) / 3
		return time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case "annually":
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default: // monthly
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}
