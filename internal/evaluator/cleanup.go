package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
)

// tagRetention opts a resource out of cleanup when set to "permanent".
const tagRetention = "Retention"

// defaultIdleFraction is the share of samples that must sit below the idle
// threshold when the policy does not set one.
const defaultIdleFraction = 0.8

// evalCleanup applies every configured trigger conjunctively: a resource is
// eligible only when each criterion it defines holds. Resources with no
// usable age reference are left alone by age-based triggers.
func evalCleanup(p *policy.Policy, r *resource.Resource, now time.Time) *decision.Decision {
	spec := p.Cleanup

	if v, ok := r.Tag(tagRetention); ok && v == "permanent" {
		return nil
	}

	var reasons []string

	if len(spec.Statuses) > 0 {
		if !contains(spec.Statuses, r.Status) {
			return nil
		}
		reasons = append(reasons, fmt.Sprintf("status is %q", r.Status))
	}

	if spec.RequireUnattached {
		if r.Attached {
			return nil
		}
		reasons = append(reasons, "not attached")
	}

	if spec.AgeThreshold > 0 {
		ref, ok := r.AgeReference()
		if !ok {
			return nil
		}
		age := now.Sub(ref)
		if age < spec.AgeThreshold.Std() {
			return nil
		}
		reasons = append(reasons, fmt.Sprintf("unmodified for %d days", int(age.Hours()/24)))
	}

	if spec.Idle != nil {
		ok, frac := isIdle(spec.Idle, r, now)
		if !ok {
			return nil
		}
		reasons = append(reasons, fmt.Sprintf("idle (%.0f%% of samples below threshold)", frac*100))
	}

	action := decision.ActionDelete
	switch spec.Action {
	case "deregister":
		action = decision.ActionDeregister
	case "notify":
		action = decision.ActionNotify
	}

	return &decision.Decision{
		ResourceID: r.ID,
		PolicyName: p.Name,
		PolicyKind: string(p.Kind),
		Precedence: p.Precedence,
		Action:     action,
		Reason:     strings.Join(reasons, ", "),
		DryRun:     p.DryRun,
	}
}

// isIdle reports whether more than the configured fraction of samples over
// the lookback sit below the threshold. An empty series is not idle; absence
// of evidence is not idleness.
func isIdle(spec *policy.IdleSpec, r *resource.Resource, now time.Time) (bool, float64) {
	metric := spec.Metric
	if metric == "" {
		metric = resource.MetricCPUUtilization
	}
	samples := r.Metrics[metric].Since(now.Add(-spec.Lookback.Std()))
	if len(samples) == 0 {
		return false, 0
	}

	below := 0
	for _, s := range samples {
		if s.Value < spec.Below {
			below++
		}
	}
	frac := float64(below) / float64(len(samples))

	want := spec.Fraction
	if want == 0 {
		want = defaultIdleFraction
	}
	return frac > want, frac
}
