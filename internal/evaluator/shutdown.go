package evaluator

import (
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/schedule"
)

// tagAutoShutdown opts a resource out of shutdown scheduling when set to
// "false", regardless of policy scope.
const tagAutoShutdown = "AutoShutdown"

// evalShutdown emits a shutdown or startup action when the schedule boundary
// falls inside the current tolerance window and the resource is in the
// opposite state. A stopped resource at shutdown time (or running at startup
// time) yields nothing; the schedule is already satisfied.
func evalShutdown(p *policy.Policy, r *resource.Resource, res *schedule.Resolver, now time.Time) (*decision.Decision, error) {
	if v, ok := r.Tag(tagAutoShutdown); ok && v == "false" {
		return nil, nil
	}

	spec := p.Shutdown.Schedule

	var (
		action decision.ActionKind
		reason string
	)
	switch r.Status {
	case resource.StatusRunning:
		due, err := res.IsDue(spec, now, schedule.EventShutdown)
		if err != nil || !due {
			return nil, err
		}
		action, reason = decision.ActionShutdown, "scheduled shutdown window reached"
	case resource.StatusStopped:
		due, err := res.IsDue(spec, now, schedule.EventStartup)
		if err != nil || !due {
			return nil, err
		}
		action, reason = decision.ActionStartup, "scheduled startup window reached"
	default:
		return nil, nil
	}

	return &decision.Decision{
		ResourceID: r.ID,
		PolicyName: p.Name,
		PolicyKind: string(p.Kind),
		Precedence: p.Precedence,
		Action:     action,
		Reason:     reason,
		DryRun:     p.DryRun,
		Details: map[string]interface{}{
			"timezone": spec.Timezone,
		},
	}, nil
}
