package evaluator

import (
	"fmt"
	"time"

	"github.com/costgov/costgov/internal/anomaly"
	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/domain/state"
)

// BudgetResult carries a budget policy's decisions together with the state
// updates the engine commits at cycle end.
type BudgetResult struct {
	Decisions  []decision.Decision
	Thresholds []*state.ThresholdState
	Baselines  []*state.AnomalyBaseline
}

// evalBudget runs threshold tracking and optional anomaly detection for every
// spend scope of one budget policy. Prior state is read-only; updates are
// returned for the engine's single-writer commit.
func (e *Evaluator) evalBudget(p *policy.Policy, spends []spend.ScopeSpend, thresholds map[string]*state.ThresholdState, baselines map[string]*state.AnomalyBaseline, now time.Time) BudgetResult {
	spec := p.Budget
	var out BudgetResult

	for _, sp := range spends {
		scopeID := "scope/" + sp.Key

		prev := thresholds[p.Name+"/"+sp.Key]
		next, fired := e.tracker.Evaluate(spec, p.Name, sp.Key, sp.Amount, prev, now)
		out.Thresholds = append(out.Thresholds, next)

		percentage := sp.Amount / spec.Limit * 100
		for _, level := range fired {
			out.Decisions = append(out.Decisions, decision.Decision{
				ResourceID: scopeID,
				PolicyName: p.Name,
				PolicyKind: string(p.Kind),
				Precedence: p.Precedence,
				Action:     thresholdAction(level.Action),
				Reason:     fmt.Sprintf("spend at %.1f%% of the %s limit, crossed the %.0f%% level", percentage, spec.TimeUnit, level.Percent),
				DryRun:     p.DryRun,
				Details: map[string]interface{}{
					"scope":   sp.Key,
					"spend":   sp.Amount,
					"limit":   spec.Limit,
					"percent": level.Percent,
				},
			})
		}

		if spec.Anomaly == nil {
			continue
		}
		key := p.Name + "/" + sp.Key
		baseline := e.detector.UpdateBaseline(key, cloneBaseline(baselines[key], spec.Anomaly), sp.Daily, now)
		out.Baselines = append(out.Baselines, baseline)

		latest, ok := sp.Daily.Latest()
		if !ok {
			continue
		}
		a := e.detector.Detect(key, latest.Value, baseline, anomaly.Sensitivity(spec.Anomaly.Sensitivity))
		if a == nil {
			continue
		}
		out.Decisions = append(out.Decisions, decision.Decision{
			ResourceID: scopeID,
			PolicyName: p.Name,
			PolicyKind: string(p.Kind),
			Precedence: p.Precedence,
			Action:     decision.ActionNotify,
			Reason:     fmt.Sprintf("daily cost %.2f deviates %.0f%% from the %.2f baseline (%s)", a.Latest, a.DeviationPct, a.Mean, a.Severity),
			DryRun:     p.DryRun,
			Details: map[string]interface{}{
				"scope":         sp.Key,
				"z_score":       a.ZScore,
				"deviation_pct": a.DeviationPct,
				"severity":      a.Severity,
			},
		})
	}
	return out
}

// cloneBaseline copies the prior baseline so the in-memory state maps stay
// untouched until commit, applying the policy's window override on first use.
func cloneBaseline(prev *state.AnomalyBaseline, spec *policy.AnomalySpec) *state.AnomalyBaseline {
	if prev == nil {
		if spec.Window > 0 {
			days := int(spec.Window.Std().Hours() / 24)
			if days < 1 {
				days = 1
			}
			return &state.AnomalyBaseline{WindowDays: days}
		}
		return nil
	}
	cp := *prev
	return &cp
}

func thresholdAction(action string) decision.ActionKind {
	switch action {
	case "deny":
		return decision.ActionDeny
	case "shutdown":
		return decision.ActionShutdown
	default:
		return decision.ActionNotify
	}
}
