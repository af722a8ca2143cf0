package resource

import (
	"sort"
	"time"
)

// Resource is the normalized, provider-agnostic view of a cloud resource at
// evaluation time. Snapshots are immutable for the duration of a cycle;
// collectors replace them wholesale on refresh.
type Resource struct {
	ID             string            `json:"id"` // provider-qualified, opaque
	Name           string            `json:"name,omitempty"`
	Type           string            `json:"type"`
	Provider       string            `json:"provider"`
	Region         string            `json:"region,omitempty"`
	Status         string            `json:"status,omitempty"`
	Tags           map[string]string `json:"tags,omitempty"`
	Metrics        map[string]Series `json:"metrics,omitempty"`
	SizeClass      string            `json:"size_class,omitempty"` // e.g. t3.medium, Standard_D2s_v3
	Attached       bool              `json:"attached,omitempty"`   // volumes only
	CreatedAt      time.Time         `json:"created_at,omitempty"`
	LastModifiedAt time.Time         `json:"last_modified_at,omitempty"`
}

// Resource types
const (
	TypeCompute  = "compute"
	TypeStorage  = "storage"
	TypeDatabase = "database"
	TypeVolume   = "volume"
	TypeSnapshot = "snapshot"
)

// Providers
const (
	ProviderAWS   = "aws"
	ProviderAzure = "azure"
)

// Resource status
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
	StatusUnknown = "unknown"
)

// Well-known metric names supplied by the telemetry collector.
const (
	MetricCPUUtilization = "cpu_utilization"
	MetricMemoryUsed     = "memory_used_percent"
	MetricDailyCost      = "daily_cost"
)

// Point is a single metric sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is a time-ordered metric series.
type Series []Point

// Sorted returns a copy of the series ordered by timestamp ascending.
func (s Series) Sorted() Series {
	out := make(Series, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Latest returns the most recent sample, or false when the series is empty.
func (s Series) Latest() (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	latest := s[0]
	for _, p := range s[1:] {
		if p.Timestamp.After(latest.Timestamp) {
			latest = p
		}
	}
	return latest, true
}

// Since returns the samples at or after cutoff, ordered ascending.
func (s Series) Since(cutoff time.Time) Series {
	out := make(Series, 0, len(s))
	for _, p := range s.Sorted() {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// Tag returns the value of a tag and whether it is present.
func (r *Resource) Tag(key string) (string, bool) {
	v, ok := r.Tags[key]
	return v, ok
}

// Environment returns the resource's Environment tag, if any.
func (r *Resource) Environment() string {
	return r.Tags["Environment"]
}

// AgeReference returns the timestamp cleanup policies compare against:
// last-modified when tracked, otherwise creation time. ok is false when
// neither is known; such resources are excluded from age-based cleanup.
func (r *Resource) AgeReference() (time.Time, bool) {
	if !r.LastModifiedAt.IsZero() {
		return r.LastModifiedAt, true
	}
	if !r.CreatedAt.IsZero() {
		return r.CreatedAt, true
	}
	return time.Time{}, false
}

// Snapshot is one consistent inventory view handed to the evaluator.
type Snapshot struct {
	TakenAt   time.Time   `json:"taken_at"`
	Resources []*Resource `json:"resources"`
}
