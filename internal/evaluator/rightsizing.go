package evaluator

import (
	"fmt"
	"sort"
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/domain/resource"
	"github.com/costgov/costgov/internal/pkg/errors"
	"github.com/costgov/costgov/internal/pricing"
)

// evalRightsizing inspects the utilization series over the observation
// window. Sustained usage below the low threshold yields a downsize
// recommendation; sustained usage above the high threshold flags the
// resource for scale-up review. Gaps in the series abstain with a data-gap
// error rather than recommending on partial evidence.
func evalRightsizing(p *policy.Policy, r *resource.Resource, now time.Time) (*decision.Decision, error) {
	spec := p.Rightsizing

	metric := spec.Metric
	if metric == "" {
		metric = resource.MetricCPUUtilization
	}

	window := spec.Duration.Std()
	samples := r.Metrics[metric].Since(now.Add(-window))
	if len(samples) == 0 {
		return nil, errors.DataGap(r.ID, fmt.Sprintf("no %s samples in the last %s", metric, window))
	}

	interval := spec.SamplingInterval.Std()
	if interval <= 0 {
		// No declared cadence: infer one from the series itself,
		// tolerating a single dropped sample. A series too short to
		// establish a cadence cannot demonstrate a sustained condition.
		interval = 2 * medianCadence(samples)
		if interval <= 0 {
			return nil, errors.DataGap(r.ID, fmt.Sprintf("%s series has too few samples to cover %s", metric, window))
		}
	}
	if gap := maxGap(samples, now.Add(-window), now); gap > interval {
		return nil, errors.DataGap(r.ID, fmt.Sprintf("%s series has a %s gap, above the %s sampling interval", metric, gap.Round(time.Second), interval))
	}

	var minV, maxV, sum float64
	minV = samples[0].Value
	for _, s := range samples {
		if s.Value < minV {
			minV = s.Value
		}
		if s.Value > maxV {
			maxV = s.Value
		}
		sum += s.Value
	}
	avg := sum / float64(len(samples))

	switch {
	case spec.LowThreshold > 0 && maxV < spec.LowThreshold:
		return downsizeDecision(p, r, metric, avg, maxV), nil
	case spec.HighThreshold > 0 && minV > spec.HighThreshold:
		return &decision.Decision{
			ResourceID: r.ID,
			PolicyName: p.Name,
			PolicyKind: string(p.Kind),
			Precedence: p.Precedence,
			Action:     decision.ActionNotify,
			Reason:     fmt.Sprintf("%s stayed above %.1f%% for the full window, consider scaling up", metric, spec.HighThreshold),
			Confidence: decision.ConfidenceHigh,
			DryRun:     p.DryRun,
			Details: map[string]interface{}{
				"metric":  metric,
				"average": avg,
				"minimum": minV,
			},
		}, nil
	}
	return nil, nil
}

func downsizeDecision(p *policy.Policy, r *resource.Resource, metric string, avg, peak float64) *decision.Decision {
	details := map[string]interface{}{
		"metric":  metric,
		"average": avg,
		"peak":    peak,
	}

	confidence := decision.ConfidenceMedium
	if peak < p.Rightsizing.LowThreshold/2 {
		confidence = decision.ConfidenceHigh
	}

	reason := fmt.Sprintf("%s peaked at %.1f%%, below the %.1f%% threshold for the full window", metric, peak, p.Rightsizing.LowThreshold)
	target, ok := pricing.DownsizeOf(r.SizeClass)
	if !ok {
		// Nothing smaller to move to; the finding is still actionable as a
		// notification.
		return &decision.Decision{
			ResourceID: r.ID,
			PolicyName: p.Name,
			PolicyKind: string(p.Kind),
			Precedence: p.Precedence,
			Action:     decision.ActionNotify,
			Reason:     reason,
			Confidence: confidence,
			DryRun:     p.DryRun,
			Details:    details,
		}
	}

	details["current_size"] = r.SizeClass
	details["target_size"] = target
	details["estimated_monthly_savings"] = pricing.MonthlySavings(r.SizeClass, target)

	return &decision.Decision{
		ResourceID: r.ID,
		PolicyName: p.Name,
		PolicyKind: string(p.Kind),
		Precedence: p.Precedence,
		Action:     decision.ActionResize,
		Reason:     reason,
		Confidence: confidence,
		DryRun:     p.DryRun,
		Details:    details,
	}
}

// medianCadence returns the median spacing between consecutive samples, or
// zero when the series has fewer than two points.
func medianCadence(samples resource.Series) time.Duration {
	if len(samples) < 2 {
		return 0
	}
	gaps := make([]time.Duration, 0, len(samples)-1)
	for i := 1; i < len(samples); i++ {
		gaps = append(gaps, samples[i].Timestamp.Sub(samples[i-1].Timestamp))
	}
	sort.Slice(gaps, func(i, j int) bool { return gaps[i] < gaps[j] })
	return gaps[len(gaps)/2]
}

// maxGap returns the longest interval without a sample across the window,
// including the stretches before the first and after the last sample.
func maxGap(samples resource.Series, from, to time.Time) time.Duration {
	longest := samples[0].Timestamp.Sub(from)
	for i := 1; i < len(samples); i++ {
		if gap := samples[i].Timestamp.Sub(samples[i-1].Timestamp); gap > longest {
			longest = gap
		}
	}
	if tail := to.Sub(samples[len(samples)-1].Timestamp); tail > longest {
		longest = tail
	}
	return longest
}
