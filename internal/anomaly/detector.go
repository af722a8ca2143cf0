// Package anomaly flags cost or utilization values that deviate from a
// rolling statistical baseline.
package anomaly

import (
	"math"
	"time"

	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/domain/state"
)

// Sensitivity maps to a z-score cutoff.
type Sensitivity string

// Sensitivity levels
const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// Cutoff returns the z-score above which a value is anomalous.
func (s Sensitivity) Cutoff() float64 {
	switch s {
	case SensitivityHigh:
		return 1.0
	case SensitivityLow:
		return 3.0
	default:
		return 2.0
	}
}

// Severity levels for detected anomalies.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// Anomaly describes a value that exceeded the baseline cutoff.
type Anomaly struct {
	Key          string  `json:"key"`
	Latest       float64 `json:"latest"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	ZScore       float64 `json:"z_score"`
	DeviationPct float64 `json:"deviation_pct"`
	Severity     string  `json:"severity"`
}

// DefaultWindowDays bounds the baseline history when a policy does not set
// its own window.
const DefaultWindowDays = 30

// Detector performs z-score tests against per-key baselines.
type Detector struct{}

// NewDetector creates a detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares the latest aggregated value against the baseline. It fails
// closed: with no variance or insufficient history no anomaly is ever
// reported, rather than dividing by zero or claiming spurious deviations.
func (d *Detector) Detect(key string, latest float64, baseline *state.AnomalyBaseline, sensitivity Sensitivity) *Anomaly {
	if baseline == nil || !baseline.Ready() {
		return nil
	}
	stddev := baseline.StdDev()
	if stddev == 0 {
		return nil
	}

	z := (latest - baseline.Mean) / stddev
	if math.Abs(z) < sensitivity.Cutoff() {
		return nil
	}

	deviationPct := 0.0
	if baseline.Mean != 0 {
		deviationPct = (latest - baseline.Mean) / baseline.Mean * 100
	}

	return &Anomaly{
		Key:          key,
		Latest:       latest,
		Mean:         baseline.Mean,
		StdDev:       stddev,
		ZScore:       z,
		DeviationPct: deviationPct,
		Severity:     classifySeverity(deviationPct),
	}
}

// UpdateBaseline folds complete-day samples into the baseline. The most
// recent partial day is excluded so the value under test never skews its own
// reference; samples at or before the last folded day are skipped to keep
// the update incremental.
//
// Welford's algorithm cannot evict, so once the oldest folded day falls out
// of the window the baseline is rebuilt from scratch over the in-window
// slice of the series. History the series no longer carries is evicted with
// it.
func (d *Detector) UpdateBaseline(key string, baseline *state.AnomalyBaseline, series resource.Series, now time.Time) *state.AnomalyBaseline {
	if baseline == nil {
		baseline = &state.AnomalyBaseline{WindowDays: DefaultWindowDays}
	}
	baseline.Key = key
	today := now.UTC().Truncate(24 * time.Hour)
	cutoff := today.AddDate(0, 0, -baseline.WindowDays)

	if !baseline.FirstSampleDay.IsZero() && baseline.FirstSampleDay.Before(cutoff) {
		baseline = &state.AnomalyBaseline{Key: key, WindowDays: baseline.WindowDays}
	}

	for _, p := range series.Sorted() {
		day := p.Timestamp.UTC().Truncate(24 * time.Hour)
		if !day.Before(today) { // exclude the partial current day
			continue
		}
		if day.Before(cutoff) {
			continue
		}
		if !baseline.LastSampleDay.IsZero() && !day.After(baseline.LastSampleDay) {
			continue
		}
		baseline.Observe(p.Value, day)
	}
	baseline.UpdatedAt = now
	return baseline
}

func classifySeverity(deviationPct float64) string {
	absDev := math.Abs(deviationPct)
	switch {
	case absDev >= 100:
		return SeverityCritical
	case absDev >= 50:
		return SeverityHigh
	case absDev >= 25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
