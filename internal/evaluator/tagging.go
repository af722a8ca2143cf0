package evaluator

import (
	"fmt"
	"strings"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
)

// evalTagging checks a resource's tags against the policy's requirements.
// Every violation is collected, not just the first, so a single notification
// lists everything the owner has to fix.
func evalTagging(p *policy.Policy, r *resource.Resource) *decision.Decision {
	spec := p.Tagging

	var violations []string
	for i := range spec.Required {
		req := &spec.Required[i]
		value, ok := r.Tag(req.Key)
		if !ok {
			violations = append(violations, fmt.Sprintf("missing required tag %q", req.Key))
			continue
		}
		if !req.MatchValue(value) {
			violations = append(violations, fmt.Sprintf("tag %q value %q does not match pattern %q", req.Key, value, req.Pattern))
			continue
		}
		if len(req.AllowedValues) > 0 && !contains(req.AllowedValues, value) {
			violations = append(violations, fmt.Sprintf("tag %q value %q not in allowed values", req.Key, value))
		}
	}
	if len(violations) == 0 {
		return nil
	}

	action := decision.ActionNotify
	if spec.Enforcement == policy.EnforcementDeny {
		action = decision.ActionDeny
	}

	return &decision.Decision{
		ResourceID: r.ID,
		PolicyName: p.Name,
		PolicyKind: string(p.Kind),
		Precedence: p.Precedence,
		Action:     action,
		Reason:     strings.Join(violations, "; "),
		DryRun:     p.DryRun,
		Details: map[string]interface{}{
			"violations": violations,
		},
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
