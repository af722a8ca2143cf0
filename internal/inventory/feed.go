package inventory

import (
	"sort"
	"time"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
)

// spendAccumulator folds per-day amounts into per-scope totals plus the
// daily cost series the anomaly detector consumes.
type spendAccumulator struct {
	byScope map[string]map[time.Time]float64
}

func newSpendAccumulator() *spendAccumulator {
	return &spendAccumulator{byScope: map[string]map[time.Time]float64{}}
}

func (a *spendAccumulator) add(key string, day time.Time, amount float64) {
	day = day.UTC().Truncate(24 * time.Hour)
	if a.byScope[key] == nil {
		a.byScope[key] = map[time.Time]float64{}
	}
	a.byScope[key][day] += amount
}

func (a *spendAccumulator) scopes() []spend.ScopeSpend {
	out := make([]spend.ScopeSpend, 0, len(a.byScope))
	for key, days := range a.byScope {
		s := spend.ScopeSpend{Key: key}
		for day, amount := range days {
			s.Amount += amount
			s.Daily = append(s.Daily, resource.Point{Timestamp: day, Value: amount})
		}
		s.Daily = s.Daily.Sorted()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
