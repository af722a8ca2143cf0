// Package dispatch turns the cycle's surviving decisions into deduplicated,
// idempotent actions and hands them to a sink. Delivery is at-most-once per
// bucket: the engine journals emitted keys and filters repeats before the
// sink ever sees them.
package dispatch

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/pkg/logger"
)

// Sink receives prepared actions. Implementations must tolerate redelivery
// across buckets; inside a bucket the dispatcher guarantees uniqueness.
type Sink interface {
	Deliver(ctx context.Context, action decision.Action) error
}

// Dispatcher prepares and delivers actions for one cycle at a time.
type Dispatcher struct {
	sink        Sink
	log         *logger.Logger
	forceDryRun bool
}

func New(sink Sink, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, log: log}
}

// ForceDryRun marks every prepared action as a dry run regardless of the
// policy's own setting. The override only ever adds dry-run, never clears a
// policy's.
func (d *Dispatcher) ForceDryRun() {
	d.forceDryRun = true
}

// Prepare converts non-suppressed decisions into actions keyed for the given
// bucket. Key collisions (several decisions reducing to the same logical
// action) keep the highest-precedence decision; the result is ordered most
// severe first so spend-stopping actions go out before notifications.
func (d *Dispatcher) Prepare(decisions []decision.Decision, bucket, now time.Time) []decision.Action {
	byKey := map[string]decision.Decision{}
	for _, dec := range decisions {
		if dec.Suppressed {
			continue
		}
		key := decision.IdempotencyKey(dec.ResourceID, dec.Action, dec.PolicyName, bucket)
		if prev, ok := byKey[key]; ok && prev.Precedence >= dec.Precedence {
			continue
		}
		byKey[key] = dec
	}

	actions := make([]decision.Action, 0, len(byKey))
	for key, dec := range byKey {
		var payload json.RawMessage
		if len(dec.Details) > 0 {
			payload, _ = json.Marshal(dec.Details)
		}
		actions = append(actions, decision.Action{
			IdempotencyKey: key,
			ResourceID:     dec.ResourceID,
			Kind:           dec.Action,
			PolicyName:     dec.PolicyName,
			Reason:         dec.Reason,
			Payload:        payload,
			DryRun:         dec.DryRun || d.forceDryRun,
			CreatedAt:      now,
		})
	}
	sort.Slice(actions, func(i, j int) bool {
		if s1, s2 := actions[i].Kind.Severity(), actions[j].Kind.Severity(); s1 != s2 {
			return s1 < s2
		}
		return actions[i].IdempotencyKey < actions[j].IdempotencyKey
	})
	return actions
}

// Dispatch delivers actions in order and returns the keys that reached the
// sink. A sink failure skips that action's key so a later cycle can retry it
// in the next bucket; remaining actions still go out.
func (d *Dispatcher) Dispatch(ctx context.Context, actions []decision.Action) ([]string, error) {
	delivered := make([]string, 0, len(actions))
	for _, a := range actions {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		if err := d.sink.Deliver(ctx, a); err != nil {
			d.log.ErrorWithErr(err, "action delivery failed")
			continue
		}
		delivered = append(delivered, a.IdempotencyKey)
	}
	return delivered, nil
}

// LogSink writes actions to the structured log. It is the default sink and
// the one dry-run actions always take.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Deliver(_ context.Context, a decision.Action) error {
	s.log.WithFields(map[string]interface{}{
		"resource": a.ResourceID,
		"kind":     a.Kind,
		"policy":   a.PolicyName,
		"dry_run":  a.DryRun,
		"key":      a.IdempotencyKey,
	}).Info(a.Reason)
	return nil
}

// CollectSink buffers delivered actions. One-shot evaluations use it to
// print the outcome instead of acting on it.
type CollectSink struct {
	mu      sync.Mutex
	Actions []decision.Action
}

func (s *CollectSink) Deliver(_ context.Context, a decision.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Actions = append(s.Actions, a)
	return nil
}
