package state

import (
	"math"
	"time"
)

// LevelNone marks a threshold scope where no escalation level has fired in
// the current billing period.
const LevelNone = 0.0

// ThresholdState remembers the highest escalation level fired per
// (budget policy, scope key) pair within one billing period. The level only
// moves forward inside a period and resets when the period rolls over.
type ThresholdState struct {
	BudgetName        string    `json:"budget_name"`
	ScopeKey          string    `json:"scope_key"`
	HighestLevelFired float64   `json:"highest_level_fired"` // percent; LevelNone when unfired
	PeriodStart       time.Time `json:"period_start"`
	LastEvaluatedAt   time.Time `json:"last_evaluated_at"`
}

// Key returns the store key for this state.
func (s *ThresholdState) Key() string {
	return s.BudgetName + "/" + s.ScopeKey
}

// AnomalyBaseline is a rolling mean/variance over a cost or utilization
// series, maintained incrementally with Welford's online algorithm so long
// series never need a full recompute.
type AnomalyBaseline struct {
	Key            string    `json:"key"`
	Count          int64     `json:"count"`
	Mean           float64   `json:"mean"`
	M2             float64   `json:"m2"` // sum of squared deviations
	WindowDays     int       `json:"window_days"`
	FirstSampleDay time.Time `json:"first_sample_day"`
	LastSampleDay  time.Time `json:"last_sample_day"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Observe folds one sample into the baseline.
func (b *AnomalyBaseline) Observe(value float64, day time.Time) {
	b.Count++
	delta := value - b.Mean
	b.Mean += delta / float64(b.Count)
	b.M2 += delta * (value - b.Mean)
	if b.FirstSampleDay.IsZero() {
		b.FirstSampleDay = day
	}
	b.LastSampleDay = day
}

// StdDev returns the sample standard deviation, or 0 with fewer than two
// samples.
func (b *AnomalyBaseline) StdDev() float64 {
	if b.Count < 2 {
		return 0
	}
	return math.Sqrt(b.M2 / float64(b.Count-1))
}

// Ready reports whether the baseline has enough history to compare against.
func (b *AnomalyBaseline) Ready() bool {
	return b.Count >= 2
}
