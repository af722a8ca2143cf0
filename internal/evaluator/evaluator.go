// Package evaluator turns one immutable snapshot plus one policy set into
// decisions. Evaluation is pure with respect to durable state: prior
// threshold and baseline state comes in read-only, updates go back out for
// the engine to commit.
package evaluator

import (
	"sort"
	"time"

	"github.com/costgov/costgov/internal/anomaly"
	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/domain/state"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/schedule"
	"github.com/costgov/costgov/internal/threshold"
)

// Evaluator applies policies of every kind. It is safe for concurrent use;
// all per-cycle mutable state lives in the caller.
type Evaluator struct {
	resolver *schedule.Resolver
	tracker  *threshold.Tracker
	detector *anomaly.Detector
	log      *logger.Logger
}

// New creates an evaluator. The resolver's tolerance should match the
// engine's evaluation interval so schedule boundaries fire exactly once.
func New(resolver *schedule.Resolver, log *logger.Logger) *Evaluator {
	return &Evaluator{
		resolver: resolver,
		tracker:  threshold.NewTracker(),
		detector: anomaly.NewDetector(),
		log:      log,
	}
}

// EvaluateResource runs every in-scope resource-level policy against one
// resource. Policy-scoped errors (bad schedules, metric gaps) are returned
// alongside the decisions; they never abort the remaining policies.
func (e *Evaluator) EvaluateResource(r *resource.Resource, policies []*policy.Policy, now time.Time) ([]decision.Decision, []error) {
	var (
		decisions []decision.Decision
		errs      []error
	)
	for _, p := range policies {
		if !p.Enabled || !InScope(p.Scope, r) {
			continue
		}

		var (
			d   *decision.Decision
			err error
		)
		switch p.Kind {
		case policy.KindTagging:
			d = evalTagging(p, r)
		case policy.KindShutdown:
			d, err = evalShutdown(p, r, e.resolver, now)
		case policy.KindRightsizing:
			d, err = evalRightsizing(p, r, now)
		case policy.KindCleanup:
			d = evalCleanup(p, r, now)
		default:
			continue // budget policies evaluate per scope, not per resource
		}
		if err != nil {
			errs = append(errs, err)
		}
		if d != nil {
			decisions = append(decisions, *d)
		}
	}
	return decisions, errs
}

// EvaluateBudget runs one budget policy over its spend scopes.
func (e *Evaluator) EvaluateBudget(p *policy.Policy, spends []spend.ScopeSpend, thresholds map[string]*state.ThresholdState, baselines map[string]*state.AnomalyBaseline, now time.Time) BudgetResult {
	return e.evalBudget(p, spends, thresholds, baselines, now)
}

// ResolveConflicts suppresses same-kind decisions that lost a precedence
// contest on the same target. The winner is the policy with the highest
// precedence, ties broken by policy name ascending; suppressed decisions are
// kept in the output for the audit trail. Decisions of different kinds never
// conflict.
func ResolveConflicts(decisions []decision.Decision) []decision.Decision {
	type group struct{ kind, target string }

	winners := map[group]decision.Decision{}
	for _, d := range decisions {
		g := group{d.PolicyKind, d.ResourceID}
		w, ok := winners[g]
		if !ok || beats(d, w) {
			winners[g] = d
		}
	}

	out := make([]decision.Decision, len(decisions))
	for i, d := range decisions {
		g := group{d.PolicyKind, d.ResourceID}
		if w := winners[g]; w.PolicyName != d.PolicyName {
			d.Suppressed = true
			d.Reason = decision.ReasonSuperseded
		}
		out[i] = d
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Suppressed != out[j].Suppressed {
			return !out[i].Suppressed
		}
		return out[i].Action.Severity() < out[j].Action.Severity()
	})
	return out
}

// beats reports whether a should supersede b within a conflict group.
func beats(a, b decision.Decision) bool {
	if a.Precedence != b.Precedence {
		return a.Precedence > b.Precedence
	}
	return a.PolicyName < b.PolicyName
}
