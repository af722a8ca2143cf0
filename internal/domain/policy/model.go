package policy

import "regexp"

// Kind discriminates the policy variants.
type Kind string

// Policy kinds
const (
	KindTagging     Kind = "tagging"
	KindShutdown    Kind = "shutdown"
	KindBudget      Kind = "budget"
	KindRightsizing Kind = "rightsizing"
	KindCleanup     Kind = "cleanup"
)

// Kinds lists all policy kinds in evaluation order.
var Kinds = []Kind{KindTagging, KindShutdown, KindBudget, KindRightsizing, KindCleanup}

// Enforcement modes for tagging policies.
const (
	EnforcementDeny  = "deny"
	EnforcementAudit = "audit"
)

// Policy is a single parsed, validated policy document. Exactly one
// kind-specific payload is set, matching Kind. Policies are immutable after
// load; a reload swaps the whole store.
type Policy struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Kind       Kind   `yaml:"kind" json:"kind" validate:"required,oneof=tagging shutdown budget rightsizing cleanup"`
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Precedence int    `yaml:"precedence" json:"precedence"`
	DryRun     bool   `yaml:"dry_run" json:"dry_run"`
	Scope      Scope  `yaml:"scope" json:"scope"`

	Tagging     *TaggingSpec     `yaml:"tagging,omitempty" json:"tagging,omitempty"`
	Shutdown    *ShutdownSpec    `yaml:"shutdown,omitempty" json:"shutdown,omitempty"`
	Budget      *BudgetSpec      `yaml:"budget,omitempty" json:"budget,omitempty"`
	Rightsizing *RightsizingSpec `yaml:"rightsizing,omitempty" json:"rightsizing,omitempty"`
	Cleanup     *CleanupSpec     `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`
}

// Scope filters which resources a policy applies to. Empty slices match
// everything; exclusions always win.
type Scope struct {
	Environments  []string    `yaml:"environments,omitempty" json:"environments,omitempty"`
	ResourceTypes []string    `yaml:"resource_types,omitempty" json:"resource_types,omitempty"`
	Providers     []string    `yaml:"providers,omitempty" json:"providers,omitempty"`
	Exclusions    []Exclusion `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
}

// Exclusion is a single exclusion predicate: either an exact tag match
// ("Key=Value") or an anchored glob over the resource name ('*' wildcard only).
type Exclusion struct {
	Tag  string `yaml:"tag,omitempty" json:"tag,omitempty"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// TaggingSpec validates required tags against patterns or enumerated values.
type TaggingSpec struct {
	Enforcement string        `yaml:"enforcement" json:"enforcement" validate:"required,oneof=deny audit"`
	Required    []RequiredTag `yaml:"required" json:"required" validate:"required,min=1,dive"`
}

// RequiredTag names a tag that must be present and conform. When Pattern is
// set the value must match the (anchored) regular expression; when
// AllowedValues is set the value must be one of them. Either constraint may
// be omitted, in which case mere presence suffices.
type RequiredTag struct {
	Key           string   `yaml:"key" json:"key" validate:"required"`
	Pattern       string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	AllowedValues []string `yaml:"allowed_values,omitempty" json:"allowed_values,omitempty"`

	re *regexp.Regexp // anchored Pattern, cached by Validate
}

// MatchValue reports whether the value satisfies Pattern. A missing pattern
// accepts anything. Validate caches the compiled pattern; a policy that
// skipped validation compiles per call, and a pattern that does not compile
// matches nothing, mirroring the load-time rejection.
func (rt *RequiredTag) MatchValue(value string) bool {
	if rt.Pattern == "" {
		return true
	}
	re := rt.re
	if re == nil {
		var err error
		re, err = compileAnchored(rt.Pattern)
		if err != nil {
			return false
		}
	}
	return re.MatchString(value)
}

func compileAnchored(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// ShutdownSpec holds the recurring shutdown/startup schedule.
type ShutdownSpec struct {
	Schedule ScheduleSpec `yaml:"schedule" json:"schedule"`
}

// ScheduleSpec defines local wall-clock shutdown/startup windows per day
// class. A window whose shutdown time is later than its startup time crosses
// midnight.
type ScheduleSpec struct {
	Weekday  *Window `yaml:"weekday,omitempty" json:"weekday,omitempty"`
	Weekend  *Window `yaml:"weekend,omitempty" json:"weekend,omitempty"`
	Timezone string  `yaml:"timezone" json:"timezone" validate:"required"`
}

// Window is a shutdown/startup pair in HH:MM local wall-clock time.
type Window struct {
	ShutdownTime string `yaml:"shutdown_time" json:"shutdown_time" validate:"required"`
	StartupTime  string `yaml:"startup_time" json:"startup_time" validate:"required"`
}

// BudgetSpec defines spend thresholds against a limit for a billing period.
// ScopeTag partitions actual spend: each distinct value of that tag (or the
// whole feed when empty) is tracked as its own threshold scope.
type BudgetSpec struct {
	Limit      float64         `yaml:"limit" json:"limit" validate:"required,gt=0"`
	TimeUnit   string          `yaml:"time_unit" json:"time_unit" validate:"required,oneof=daily monthly quarterly annually"`
	ScopeTag   string          `yaml:"scope_tag,omitempty" json:"scope_tag,omitempty"`
	Thresholds []ThresholdSpec `yaml:"thresholds" json:"thresholds" validate:"required,min=1,dive"`
	Anomaly    *AnomalySpec    `yaml:"anomaly,omitempty" json:"anomaly,omitempty"`
}

// ThresholdSpec is one escalation level: fire Action when period-to-date
// spend reaches Percent of the limit.
type ThresholdSpec struct {
	Percent float64 `yaml:"percent" json:"percent" validate:"required,gt=0"`
	Action  string  `yaml:"action" json:"action" validate:"required,oneof=notify deny shutdown"`
}

// RightsizingSpec recommends a smaller size class when the metric stays below
// LowThreshold for the full Duration, or flags scale-up above HighThreshold.
// SamplingInterval is the expected metric cadence; a gap longer than one
// interval breaks continuity and suppresses the recommendation.
type RightsizingSpec struct {
	Metric           string        `yaml:"metric,omitempty" json:"metric,omitempty"`
	LowThreshold     float64       `yaml:"low_threshold" json:"low_threshold" validate:"gte=0"`
	HighThreshold    float64       `yaml:"high_threshold" json:"high_threshold" validate:"gte=0"`
	Duration         Duration      `yaml:"duration" json:"duration" validate:"required"`
	SamplingInterval Duration      `yaml:"sampling_interval,omitempty" json:"sampling_interval,omitempty"`
}

// CleanupSpec removes aged or idle resources. AgeThreshold compares against
// the resource's last-modified (or creation) timestamp. The optional idle
// predicate marks a resource idle when more than Fraction of its samples over
// Lookback sit below Below.
type CleanupSpec struct {
	AgeThreshold      Duration      `yaml:"age_threshold,omitempty" json:"age_threshold,omitempty"`
	Statuses          []string      `yaml:"statuses,omitempty" json:"statuses,omitempty"`
	RequireUnattached bool          `yaml:"require_unattached,omitempty" json:"require_unattached,omitempty"`
	Idle              *IdleSpec     `yaml:"idle,omitempty" json:"idle,omitempty"`
	Action            string        `yaml:"action,omitempty" json:"action,omitempty" validate:"omitempty,oneof=delete deregister notify"`
}

// IdleSpec is the idle predicate over a metric series.
type IdleSpec struct {
	Metric   string        `yaml:"metric,omitempty" json:"metric,omitempty"`
	Below    float64       `yaml:"below" json:"below" validate:"required,gt=0"`
	Fraction float64       `yaml:"fraction,omitempty" json:"fraction,omitempty"`
	Lookback Duration      `yaml:"lookback" json:"lookback" validate:"required"`
}

// AnomalySpec enables cost-anomaly detection on a budget policy: the daily
// cost series for each scope is compared against its rolling baseline.
type AnomalySpec struct {
	Sensitivity string        `yaml:"sensitivity" json:"sensitivity" validate:"required,oneof=low medium high"`
	Window      Duration      `yaml:"window,omitempty" json:"window,omitempty"`
}

// Payload returns the kind-specific payload as an untyped value, used for
// generic nil checks during validation.
func (p *Policy) Payload() interface{} {
	switch p.Kind {
	case KindTagging:
		if p.Tagging == nil {
			return nil
		}
		return p.Tagging
	case KindShutdown:
		if p.Shutdown == nil {
			return nil
		}
		return p.Shutdown
	case KindBudget:
		if p.Budget == nil {
			return nil
		}
		return p.Budget
	case KindRightsizing:
		if p.Rightsizing == nil {
			return nil
		}
		return p.Rightsizing
	case KindCleanup:
		if p.Cleanup == nil {
			return nil
		}
		return p.Cleanup
	}
	return nil
}
