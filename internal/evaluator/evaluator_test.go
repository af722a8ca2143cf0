package evaluator

import (
	"testing"
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/spend"
	"github.com/costgov/costgov/internal/domain/state"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pkg/logger"
	"github.com/costgov/costgov/internal/schedule"
)

func newTestEvaluator(tolerance time.Duration) *Evaluator {
	return New(schedule.NewResolver(tolerance), logger.Nop())
}

func hourlySeries(end time.Time, hours int, value float64) resource.Series {
	s := make(resource.Series, 0, hours)
	for i := hours; i > 0; i-- {
		s = append(s, resource.Point{Timestamp: end.Add(-time.Duration(i) * time.Hour), Value: value})
	}
	return s
}

func TestEvaluateResource_Tagging(t *testing.T) {
	p := &policy.Policy{
		Name:    "require-owner",
		Kind:    policy.KindTagging,
		Enabled: true,
		Tagging: &policy.TaggingSpec{
			Enforcement: policy.EnforcementDeny,
			Required: []policy.RequiredTag{
				{Key: "Owner"},
				{Key: "CostCenter", Pattern: `CC-\d{4}`},
				{Key: "Environment", AllowedValues: []string{"production", "staging"}},
			},
		},
	}
	e := newTestEvaluator(5 * time.Minute)
	now := time.Now()

	t.Run("violations collected and denied", func(t *testing.T) {
		r := &resource.Resource{
			ID:   "aws/ec2/i-001",
			Type: resource.TypeCompute,
			Tags: map[string]string{"CostCenter": "marketing", "Environment": "production"},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{p}, now)
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(decisions) != 1 {
			t.Fatalf("got %d decisions, want 1", len(decisions))
		}
		d := decisions[0]
		if d.Action != decision.ActionDeny {
			t.Errorf("action = %s, want %s", d.Action, decision.ActionDeny)
		}
		violations := d.Details["violations"].([]string)
		if len(violations) != 2 { // missing Owner, CostCenter pattern
			t.Errorf("got %d violations, want 2: %v", len(violations), violations)
		}
	})

	t.Run("compliant resource yields nothing", func(t *testing.T) {
		r := &resource.Resource{
			ID:   "aws/ec2/i-002",
			Type: resource.TypeCompute,
			Tags: map[string]string{"Owner": "web", "CostCenter": "CC-1234", "Environment": "staging"},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{p}, now)
		if len(errs) != 0 || len(decisions) != 0 {
			t.Errorf("got %d decisions %v, want none", len(decisions), errs)
		}
	})

	t.Run("audit enforcement notifies", func(t *testing.T) {
		audit := *p
		audit.Tagging = &policy.TaggingSpec{Enforcement: policy.EnforcementAudit, Required: []policy.RequiredTag{{Key: "Owner"}}}
		r := &resource.Resource{ID: "aws/ec2/i-003", Type: resource.TypeCompute}
		decisions, _ := e.EvaluateResource(r, []*policy.Policy{&audit}, now)
		if len(decisions) != 1 || decisions[0].Action != decision.ActionNotify {
			t.Errorf("audit enforcement should notify, got %+v", decisions)
		}
	})

	t.Run("unvalidated bad pattern is a violation, not a panic", func(t *testing.T) {
		// Programmatically built policy that never went through Validate.
		bad := &policy.Policy{
			Name:    "broken-pattern",
			Kind:    policy.KindTagging,
			Enabled: true,
			Tagging: &policy.TaggingSpec{
				Enforcement: policy.EnforcementDeny,
				Required:    []policy.RequiredTag{{Key: "Team", Pattern: "team-(unclosed"}},
			},
		}
		r := &resource.Resource{
			ID:   "aws/ec2/i-004",
			Type: resource.TypeCompute,
			Tags: map[string]string{"Team": "team-web"},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{bad}, now)
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(decisions) != 1 || decisions[0].Action != decision.ActionDeny {
			t.Errorf("bad pattern should fail closed as a violation, got %+v", decisions)
		}
	})
}

func TestEvaluateResource_Shutdown(t *testing.T) {
	p := &policy.Policy{
		Name:    "office-hours",
		Kind:    policy.KindShutdown,
		Enabled: true,
		Shutdown: &policy.ShutdownSpec{
			Schedule: policy.ScheduleSpec{
				Weekday:  &policy.Window{ShutdownTime: "19:00", StartupTime: "07:00"},
				Timezone: "UTC",
			},
		},
	}
	e := newTestEvaluator(5 * time.Minute)
	wednesday := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status string
		tags   map[string]string
		now    time.Time
		want   decision.ActionKind // "" means no decision
	}{
		{
			name:   "running at shutdown boundary",
			status: resource.StatusRunning,
			now:    wednesday.Add(19*time.Hour + 2*time.Minute),
			want:   decision.ActionShutdown,
		},
		{
			name:   "stopped at next-morning startup",
			status: resource.StatusStopped,
			now:    wednesday.Add(7*time.Hour + 3*time.Minute),
			want:   decision.ActionStartup,
		},
		{
			name:   "running outside any window",
			status: resource.StatusRunning,
			now:    wednesday.Add(12 * time.Hour),
			want:   "",
		},
		{
			name:   "already stopped at shutdown time",
			status: resource.StatusStopped,
			now:    wednesday.Add(19*time.Hour + 2*time.Minute),
			want:   "",
		},
		{
			name:   "opt-out tag wins",
			status: resource.StatusRunning,
			tags:   map[string]string{tagAutoShutdown: "false"},
			now:    wednesday.Add(19*time.Hour + 2*time.Minute),
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &resource.Resource{ID: "aws/ec2/i-001", Type: resource.TypeCompute, Status: tt.status, Tags: tt.tags}
			decisions, errs := e.EvaluateResource(r, []*policy.Policy{p}, tt.now)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if tt.want == "" {
				if len(decisions) != 0 {
					t.Fatalf("expected no decision, got %+v", decisions)
				}
				return
			}
			if len(decisions) != 1 || decisions[0].Action != tt.want {
				t.Errorf("got %+v, want action %s", decisions, tt.want)
			}
		})
	}
}

func TestEvaluateResource_Rightsizing(t *testing.T) {
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	e := newTestEvaluator(5 * time.Minute)

	base := policy.Policy{
		Name:    "downsize-idle",
		Kind:    policy.KindRightsizing,
		Enabled: true,
		Rightsizing: &policy.RightsizingSpec{
			LowThreshold:  20,
			HighThreshold: 80,
			Duration:      policy.Duration(24 * time.Hour),
		},
	}

	t.Run("sustained low usage downsizes with high confidence", func(t *testing.T) {
		p := base
		r := &resource.Resource{
			ID:        "aws/ec2/i-001",
			Type:      resource.TypeCompute,
			SizeClass: "t3.medium",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 24, 8)},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if len(decisions) != 1 {
			t.Fatalf("got %d decisions, want 1", len(decisions))
		}
		d := decisions[0]
		if d.Action != decision.ActionResize {
			t.Errorf("action = %s, want resize", d.Action)
		}
		if d.Confidence != decision.ConfidenceHigh {
			t.Errorf("confidence = %s, want high (peak 8 < 10)", d.Confidence)
		}
		if d.Details["target_size"] != "t3.small" {
			t.Errorf("target_size = %v, want t3.small", d.Details["target_size"])
		}
		if d.Details["estimated_monthly_savings"].(float64) <= 0 {
			t.Error("expected positive estimated savings")
		}
	})

	t.Run("smallest size falls back to notify", func(t *testing.T) {
		p := base
		r := &resource.Resource{
			ID:        "aws/ec2/i-002",
			Type:      resource.TypeCompute,
			SizeClass: "t3.nano",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 24, 8)},
		}
		decisions, _ := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 1 || decisions[0].Action != decision.ActionNotify {
			t.Errorf("got %+v, want a notify decision", decisions)
		}
	})

	t.Run("sustained high usage flags scale-up", func(t *testing.T) {
		p := base
		r := &resource.Resource{
			ID:        "aws/ec2/i-003",
			Type:      resource.TypeCompute,
			SizeClass: "t3.medium",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 24, 92)},
		}
		decisions, _ := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 1 || decisions[0].Action != decision.ActionNotify {
			t.Fatalf("got %+v, want a notify decision", decisions)
		}
		if decisions[0].Confidence != decision.ConfidenceHigh {
			t.Errorf("scale-up confidence = %s, want high", decisions[0].Confidence)
		}
	})

	t.Run("no samples abstains with a data gap", func(t *testing.T) {
		p := base
		r := &resource.Resource{ID: "aws/ec2/i-004", Type: resource.TypeCompute, SizeClass: "t3.medium"}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 0 {
			t.Fatalf("expected no decision on empty series, got %+v", decisions)
		}
		if len(errs) != 1 || !errors.IsCode(errs[0], errors.ErrCodeDataGap) {
			t.Errorf("want one DATA_GAP error, got %v", errs)
		}
	})

	t.Run("series gap above the sampling interval abstains", func(t *testing.T) {
		p := base
		spec := *base.Rightsizing
		spec.SamplingInterval = policy.Duration(time.Hour)
		p.Rightsizing = &spec

		series := append(hourlySeries(now.Add(-6*time.Hour), 18, 8), hourlySeries(now, 3, 8)...)
		r := &resource.Resource{
			ID:        "aws/ec2/i-005",
			Type:      resource.TypeCompute,
			SizeClass: "t3.medium",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: series},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 0 {
			t.Fatalf("expected no decision across a gap, got %+v", decisions)
		}
		if len(errs) != 1 || !errors.IsCode(errs[0], errors.ErrCodeDataGap) {
			t.Errorf("want one DATA_GAP error, got %v", errs)
		}
	})

	t.Run("sparse series without a declared interval abstains", func(t *testing.T) {
		p := base
		spec := *base.Rightsizing
		spec.Duration = policy.Duration(72 * time.Hour)
		p.Rightsizing = &spec

		// A lone 3% sample over a 72h window is not evidence of sustained
		// low usage.
		series := resource.Series{{Timestamp: now.Add(-time.Hour), Value: 3}}
		r := &resource.Resource{
			ID:        "aws/ec2/i-006",
			Type:      resource.TypeCompute,
			SizeClass: "t3.medium",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: series},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 0 {
			t.Fatalf("expected no decision from a single sample, got %+v", decisions)
		}
		if len(errs) != 1 || !errors.IsCode(errs[0], errors.ErrCodeDataGap) {
			t.Errorf("want one DATA_GAP error, got %v", errs)
		}
	})

	t.Run("inferred cadence catches coverage holes", func(t *testing.T) {
		p := base
		// Hourly samples covering only the last 3h of a 24h window.
		r := &resource.Resource{
			ID:        "aws/ec2/i-007",
			Type:      resource.TypeCompute,
			SizeClass: "t3.medium",
			Metrics:   map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 3, 8)},
		}
		decisions, errs := e.EvaluateResource(r, []*policy.Policy{&p}, now)
		if len(decisions) != 0 {
			t.Fatalf("expected no decision from partial coverage, got %+v", decisions)
		}
		if len(errs) != 1 || !errors.IsCode(errs[0], errors.ErrCodeDataGap) {
			t.Errorf("want one DATA_GAP error, got %v", errs)
		}
	})
}

func TestEvaluateResource_Cleanup(t *testing.T) {
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	e := newTestEvaluator(5 * time.Minute)

	p := &policy.Policy{
		Name:    "stale-volumes",
		Kind:    policy.KindCleanup,
		Enabled: true,
		Cleanup: &policy.CleanupSpec{
			AgeThreshold:      policy.Duration(30 * 24 * time.Hour),
			RequireUnattached: true,
		},
	}

	tests := []struct {
		name string
		r    *resource.Resource
		want decision.ActionKind
	}{
		{
			name: "old unattached volume deleted",
			r: &resource.Resource{
				ID:             "aws/ebs/vol-001",
				Type:           resource.TypeVolume,
				LastModifiedAt: now.Add(-40 * 24 * time.Hour),
			},
			want: decision.ActionDelete,
		},
		{
			name: "attached volume kept",
			r: &resource.Resource{
				ID:             "aws/ebs/vol-002",
				Type:           resource.TypeVolume,
				Attached:       true,
				LastModifiedAt: now.Add(-40 * 24 * time.Hour),
			},
		},
		{
			name: "young volume kept",
			r: &resource.Resource{
				ID:             "aws/ebs/vol-003",
				Type:           resource.TypeVolume,
				LastModifiedAt: now.Add(-10 * 24 * time.Hour),
			},
		},
		{
			name: "no age reference skips age trigger",
			r: &resource.Resource{
				ID:   "aws/ebs/vol-004",
				Type: resource.TypeVolume,
			},
		},
		{
			name: "retention tag opts out",
			r: &resource.Resource{
				ID:             "aws/ebs/vol-005",
				Type:           resource.TypeVolume,
				Tags:           map[string]string{tagRetention: "permanent"},
				LastModifiedAt: now.Add(-40 * 24 * time.Hour),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decisions, errs := e.EvaluateResource(tt.r, []*policy.Policy{p}, now)
			if len(errs) != 0 {
				t.Fatalf("unexpected errors: %v", errs)
			}
			if tt.want == "" {
				if len(decisions) != 0 {
					t.Fatalf("expected no decision, got %+v", decisions)
				}
				return
			}
			if len(decisions) != 1 || decisions[0].Action != tt.want {
				t.Errorf("got %+v, want action %s", decisions, tt.want)
			}
		})
	}

	t.Run("idle predicate", func(t *testing.T) {
		idle := &policy.Policy{
			Name:    "idle-compute",
			Kind:    policy.KindCleanup,
			Enabled: true,
			Cleanup: &policy.CleanupSpec{
				Statuses: []string{resource.StatusRunning},
				Idle:     &policy.IdleSpec{Below: 5, Lookback: policy.Duration(24 * time.Hour)},
				Action:   "notify",
			},
		}
		busy := &resource.Resource{
			ID:      "aws/ec2/i-busy",
			Type:    resource.TypeCompute,
			Status:  resource.StatusRunning,
			Metrics: map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 24, 40)},
		}
		quiet := &resource.Resource{
			ID:      "aws/ec2/i-quiet",
			Type:    resource.TypeCompute,
			Status:  resource.StatusRunning,
			Metrics: map[string]resource.Series{resource.MetricCPUUtilization: hourlySeries(now, 24, 1)},
		}
		noData := &resource.Resource{
			ID:     "aws/ec2/i-dark",
			Type:   resource.TypeCompute,
			Status: resource.StatusRunning,
		}

		if d, _ := e.EvaluateResource(busy, []*policy.Policy{idle}, now); len(d) != 0 {
			t.Errorf("busy resource flagged idle: %+v", d)
		}
		d, _ := e.EvaluateResource(quiet, []*policy.Policy{idle}, now)
		if len(d) != 1 || d[0].Action != decision.ActionNotify {
			t.Errorf("quiet resource not flagged: %+v", d)
		}
		if d, _ := e.EvaluateResource(noData, []*policy.Policy{idle}, now); len(d) != 0 {
			t.Errorf("resource without samples must not count as idle: %+v", d)
		}
	})
}

func TestEvaluateBudget(t *testing.T) {
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	e := newTestEvaluator(5 * time.Minute)

	p := &policy.Policy{
		Name:    "team-budget",
		Kind:    policy.KindBudget,
		Enabled: true,
		Budget: &policy.BudgetSpec{
			Limit:    1000,
			TimeUnit: "monthly",
			Thresholds: []policy.ThresholdSpec{
				{Percent: 50, Action: "notify"},
				{Percent: 80, Action: "notify"},
				{Percent: 100, Action: "deny"},
			},
		},
	}

	t.Run("skipped levels fire ascending on first evaluation", func(t *testing.T) {
		res := e.EvaluateBudget(p, []spend.ScopeSpend{{Key: spend.TotalKey, Amount: 850}}, nil, nil, now)
		if len(res.Decisions) != 2 {
			t.Fatalf("got %d decisions, want 2 (50%% and 80%%)", len(res.Decisions))
		}
		if got := res.Decisions[0].Details["percent"].(float64); got != 50 {
			t.Errorf("first fired level = %v, want 50", got)
		}
		if got := res.Decisions[1].Details["percent"].(float64); got != 80 {
			t.Errorf("second fired level = %v, want 80", got)
		}
		if len(res.Thresholds) != 1 || res.Thresholds[0].HighestLevelFired != 80 {
			t.Errorf("threshold state = %+v, want highest level 80", res.Thresholds)
		}
	})

	t.Run("already-fired level stays quiet", func(t *testing.T) {
		prev := map[string]*state.ThresholdState{
			"team-budget/total": {
				BudgetName:        "team-budget",
				ScopeKey:          spend.TotalKey,
				HighestLevelFired: 80,
				PeriodStart:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		}
		res := e.EvaluateBudget(p, []spend.ScopeSpend{{Key: spend.TotalKey, Amount: 870}}, prev, nil, now)
		if len(res.Decisions) != 0 {
			t.Errorf("expected no decisions inside the same period, got %+v", res.Decisions)
		}
	})

	t.Run("limit breach escalates to deny", func(t *testing.T) {
		prev := map[string]*state.ThresholdState{
			"team-budget/total": {
				BudgetName:        "team-budget",
				ScopeKey:          spend.TotalKey,
				HighestLevelFired: 80,
				PeriodStart:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			},
		}
		res := e.EvaluateBudget(p, []spend.ScopeSpend{{Key: spend.TotalKey, Amount: 1100}}, prev, nil, now)
		if len(res.Decisions) != 1 || res.Decisions[0].Action != decision.ActionDeny {
			t.Fatalf("got %+v, want one deny decision", res.Decisions)
		}
		if res.Decisions[0].ResourceID != "scope/total" {
			t.Errorf("resource id = %s, want scope/total", res.Decisions[0].ResourceID)
		}
	})

	t.Run("anomalous daily spend notifies", func(t *testing.T) {
		ap := *p
		spec := *p.Budget
		spec.Thresholds = []policy.ThresholdSpec{{Percent: 500, Action: "notify"}} // keep thresholds quiet
		spec.Anomaly = &policy.AnomalySpec{Sensitivity: "medium"}
		ap.Budget = &spec

		day := func(offset int) time.Time { return now.AddDate(0, 0, offset).Truncate(24 * time.Hour) }
		daily := resource.Series{
			{Timestamp: day(-7), Value: 9},
			{Timestamp: day(-6), Value: 10},
			{Timestamp: day(-5), Value: 11},
			{Timestamp: day(-4), Value: 10},
			{Timestamp: day(-3), Value: 9},
			{Timestamp: day(-2), Value: 11},
			{Timestamp: day(-1), Value: 10},
			{Timestamp: day(0), Value: 20}, // partial day, excluded from the baseline
		}
		res := e.EvaluateBudget(&ap, []spend.ScopeSpend{{Key: spend.TotalKey, Amount: 80, Daily: daily}}, nil, nil, now)
		if len(res.Decisions) != 1 {
			t.Fatalf("got %d decisions, want 1 anomaly notification", len(res.Decisions))
		}
		d := res.Decisions[0]
		if d.Action != decision.ActionNotify {
			t.Errorf("action = %s, want notify", d.Action)
		}
		if d.Details["severity"] != "critical" {
			t.Errorf("severity = %v, want critical (100%% deviation)", d.Details["severity"])
		}
		if len(res.Baselines) != 1 || res.Baselines[0].Count != 7 {
			t.Errorf("baseline = %+v, want 7 observed days", res.Baselines)
		}
	})
}

func TestResolveConflicts(t *testing.T) {
	decisions := []decision.Decision{
		{ResourceID: "aws/ec2/i-001", PolicyKind: "shutdown", PolicyName: "weeknights", Precedence: 10, Action: decision.ActionShutdown},
		{ResourceID: "aws/ec2/i-001", PolicyKind: "shutdown", PolicyName: "always-on", Precedence: 20, Action: decision.ActionStartup},
		{ResourceID: "aws/ec2/i-001", PolicyKind: "tagging", PolicyName: "require-owner", Precedence: 5, Action: decision.ActionNotify},
		{ResourceID: "aws/ec2/i-002", PolicyKind: "shutdown", PolicyName: "weeknights", Precedence: 10, Action: decision.ActionShutdown},
	}

	out := ResolveConflicts(decisions)
	if len(out) != 4 {
		t.Fatalf("got %d decisions, want all 4 kept", len(out))
	}

	byPolicy := map[string]decision.Decision{}
	for _, d := range out {
		byPolicy[d.ResourceID+"/"+d.PolicyName] = d
	}

	if d := byPolicy["aws/ec2/i-001/always-on"]; d.Suppressed {
		t.Error("higher-precedence policy must win")
	}
	loser := byPolicy["aws/ec2/i-001/weeknights"]
	if !loser.Suppressed || loser.Reason != decision.ReasonSuperseded {
		t.Errorf("loser = %+v, want suppressed with reason %q", loser, decision.ReasonSuperseded)
	}
	if d := byPolicy["aws/ec2/i-001/require-owner"]; d.Suppressed {
		t.Error("different kinds never conflict")
	}
	if d := byPolicy["aws/ec2/i-002/weeknights"]; d.Suppressed {
		t.Error("sole decision on a target must not be suppressed")
	}

	// Non-suppressed first, then severity ascending rank (shutdown before notify).
	if out[len(out)-1].Suppressed != true {
		t.Errorf("suppressed decisions must sort last, got %+v", out[len(out)-1])
	}
	if out[0].Action != decision.ActionShutdown {
		t.Errorf("most severe action first, got %s", out[0].Action)
	}
}

func TestResolveConflicts_TieBrokenByName(t *testing.T) {
	decisions := []decision.Decision{
		{ResourceID: "r", PolicyKind: "cleanup", PolicyName: "zeta", Precedence: 10, Action: decision.ActionDelete},
		{ResourceID: "r", PolicyKind: "cleanup", PolicyName: "alpha", Precedence: 10, Action: decision.ActionNotify},
	}
	out := ResolveConflicts(decisions)
	for _, d := range out {
		switch d.PolicyName {
		case "alpha":
			if d.Suppressed {
				t.Error("alpha sorts first on a precedence tie and must win")
			}
		case "zeta":
			if !d.Suppressed {
				t.Error("zeta must lose the tie")
			}
		}
	}
}
