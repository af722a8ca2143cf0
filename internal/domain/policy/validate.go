package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/costgov/costgov/internal/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a parsed policy document. A failing policy is excluded
// from the store and reported; it never aborts loading of sibling policies.
func (p *Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return errors.ConfigError(p.Name, strings.ToLower(f.Field()), fmt.Sprintf("failed %q constraint", f.Tag()))
		}
		return errors.ConfigError(p.Name, "", err.Error())
	}

	if p.Payload() == nil {
		return errors.ConfigError(p.Name, string(p.Kind), "missing payload for policy kind")
	}
	if n := p.payloadCount(); n > 1 {
		return errors.ConfigError(p.Name, string(p.Kind), "multiple kind payloads set; exactly one is allowed")
	}

	for i, ex := range p.Scope.Exclusions {
		if err := ex.validate(p.Name, i); err != nil {
			return err
		}
	}

	switch p.Kind {
	case KindTagging:
		return p.Tagging.validate(p.Name)
	case KindShutdown:
		return p.Shutdown.Schedule.Validate(p.Name)
	case KindBudget:
		return p.Budget.validate(p.Name)
	case KindRightsizing:
		return p.Rightsizing.validate(p.Name)
	case KindCleanup:
		return p.Cleanup.validate(p.Name)
	}
	return nil
}

func (p *Policy) payloadCount() int {
	n := 0
	if p.Tagging != nil {
		n++
	}
	if p.Shutdown != nil {
		n++
	}
	if p.Budget != nil {
		n++
	}
	if p.Rightsizing != nil {
		n++
	}
	if p.Cleanup != nil {
		n++
	}
	return n
}

func (ex *Exclusion) validate(policyName string, idx int) error {
	field := fmt.Sprintf("scope.exclusions[%d]", idx)
	if ex.Tag == "" && ex.Name == "" {
		return errors.ConfigError(policyName, field, "exclusion needs a tag or name predicate")
	}
	if ex.Tag != "" && ex.Name != "" {
		return errors.ConfigError(policyName, field, "exclusion takes a tag or a name predicate, not both")
	}
	if ex.Tag != "" && !strings.Contains(ex.Tag, "=") {
		return errors.ConfigError(policyName, field, `tag exclusion must be "Key=Value"`)
	}
	return nil
}

func (t *TaggingSpec) validate(policyName string) error {
	for i := range t.Required {
		req := &t.Required[i]
		if req.Pattern == "" {
			continue
		}
		re, err := compileAnchored(req.Pattern)
		if err != nil {
			return errors.ConfigError(policyName, fmt.Sprintf("tagging.required[%d].pattern", i), err.Error())
		}
		req.re = re
	}
	return nil
}

// Validate checks schedule invariants: recognized timezone, parseable HH:MM
// boundaries, and shutdown != startup per window.
func (s *ScheduleSpec) Validate(policyName string) error {
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return errors.ScheduleError(policyName, fmt.Sprintf("unrecognized timezone %q", s.Timezone))
	}
	if s.Weekday == nil && s.Weekend == nil {
		return errors.ScheduleError(policyName, "schedule defines neither weekday nor weekend window")
	}
	for name, w := range map[string]*Window{"weekday": s.Weekday, "weekend": s.Weekend} {
		if w == nil {
			continue
		}
		down, err := ParseWallClock(w.ShutdownTime)
		if err != nil {
			return errors.ScheduleError(policyName, fmt.Sprintf("%s shutdown_time: %v", name, err))
		}
		up, err := ParseWallClock(w.StartupTime)
		if err != nil {
			return errors.ScheduleError(policyName, fmt.Sprintf("%s startup_time: %v", name, err))
		}
		if down == up {
			return errors.ScheduleError(policyName, fmt.Sprintf("%s shutdown_time equals startup_time", name))
		}
	}
	return nil
}

func (b *BudgetSpec) validate(policyName string) error {
	prev := 0.0
	for i, th := range b.Thresholds {
		if th.Percent <= prev {
			return errors.ConfigError(policyName, fmt.Sprintf("budget.thresholds[%d].percent", i), "thresholds must be strictly ascending")
		}
		prev = th.Percent
	}
	return nil
}

func (r *RightsizingSpec) validate(policyName string) error {
	if r.LowThreshold <= 0 && r.HighThreshold <= 0 {
		return errors.ConfigError(policyName, "rightsizing", "at least one of low_threshold or high_threshold must be set")
	}
	if r.HighThreshold > 0 && r.LowThreshold >= r.HighThreshold {
		return errors.ConfigError(policyName, "rightsizing.low_threshold", "must be below high_threshold")
	}
	if r.Duration <= 0 {
		return errors.ConfigError(policyName, "rightsizing.duration", "must be positive")
	}
	return nil
}

func (c *CleanupSpec) validate(policyName string) error {
	if c.AgeThreshold <= 0 && c.Idle == nil && len(c.Statuses) == 0 && !c.RequireUnattached {
		return errors.ConfigError(policyName, "cleanup", "no trigger configured")
	}
	if c.Idle != nil {
		if c.Idle.Fraction < 0 || c.Idle.Fraction > 1 {
			return errors.ConfigError(policyName, "cleanup.idle.fraction", "must be within [0,1]")
		}
	}
	return nil
}

// ParseWallClock parses "HH:MM" into minutes since midnight.
func ParseWallClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("invalid wall-clock time %q, want HH:MM", s)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("wall-clock time %q out of range", s)
	}
	return hh*60 + mm, nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}
