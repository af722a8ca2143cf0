// Package schedule decides whether a time-based policy is due at a given
// instant. Resolution is a pure function of the schedule and the clock, which
// keeps evaluation replay-safe.
package schedule

import (
	"fmt"
	"time"

	"github.com/costgov/costgov/internal/domain/policy"
	"github.com/costgov/costgov/internal/pkg/errors"
)

// Event selects which window boundary is being tested.
type Event string

// Schedule events
const (
	EventShutdown Event = "shutdown"
	EventStartup  Event = "startup"
)

// DefaultTolerance is used when the caller does not supply the evaluation
// interval. A boundary is due for exactly the cycles landing inside
// [boundary, boundary+tolerance), so a slightly late cycle still fires and a
// fixed cadence fires once per day.
const DefaultTolerance = 5 * time.Minute

// Resolver computes schedule dueness with a fixed tolerance window.
type Resolver struct {
	tolerance time.Duration
}

// NewResolver creates a resolver. A non-positive tolerance falls back to
// DefaultTolerance.
func NewResolver(tolerance time.Duration) *Resolver {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Resolver{tolerance: tolerance}
}

// IsDue reports whether the event boundary falls within the tolerance window
// ending at now. Midnight-crossing windows are handled by unrolling the schedule
// over a 48-hour timeline: boundaries belonging to yesterday's window are
// candidates alongside today's.
func (r *Resolver) IsDue(spec policy.ScheduleSpec, now time.Time, event Event) (bool, error) {
	loc, err := time.LoadLocation(spec.Timezone)
	if err != nil {
		return false, errors.ScheduleError("", fmt.Sprintf("unrecognized timezone %q", spec.Timezone))
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	yesterday := today.AddDate(0, 0, -1)

	for _, day := range []time.Time{yesterday, today} {
		w := windowForDay(spec, day.Weekday())
		if w == nil {
			continue
		}
		boundary, err := eventBoundary(w, day, event)
		if err != nil {
			return false, err
		}
		offset := local.Sub(boundary)
		if offset >= 0 && offset < r.tolerance {
			return true, nil
		}
	}
	return false, nil
}

// eventBoundary returns the instant of the event for the window opening on
// the given day. When the window crosses midnight (shutdown later than
// startup), its startup boundary lands on the following day.
func eventBoundary(w *policy.Window, day time.Time, event Event) (time.Time, error) {
	down, err := policy.ParseWallClock(w.ShutdownTime)
	if err != nil {
		return time.Time{}, errors.ScheduleError("", err.Error())
	}
	up, err := policy.ParseWallClock(w.StartupTime)
	if err != nil {
		return time.Time{}, errors.ScheduleError("", err.Error())
	}
	if down == up {
		return time.Time{}, errors.ScheduleError("", "shutdown_time equals startup_time")
	}

	switch event {
	case EventStartup:
		dayOffset := 0
		if down > up {
			// Crossing window: startup belongs to the next calendar day.
			dayOffset = 1
		}
		return wallClock(day, up, dayOffset), nil
	default:
		return wallClock(day, down, 0), nil
	}
}

// wallClock pins minutes-past-midnight to a calendar day in the day's
// location. time.Date normalizes the day offset, so the boundary stays at the
// configured local time even when the day gains or loses an hour to DST.
func wallClock(day time.Time, minutes, dayOffset int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+dayOffset, minutes/60, minutes%60, 0, 0, day.Location())
}

func windowForDay(spec policy.ScheduleSpec, wd time.Weekday) *policy.Window {
	if wd == time.Saturday || wd == time.Sunday {
		return spec.Weekend
	}
	return spec.Weekday
}
