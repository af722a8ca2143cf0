package state

import (
	"context"
	"time"
)

// Repository is the durable key-value dependency holding the engine's only
// cross-cycle state. Implementations must apply CommitCycle atomically: a
// cancelled or failed cycle leaves every key exactly as it was.
type Repository interface {
	// LoadThresholds reads all threshold states, keyed by ThresholdState.Key().
	LoadThresholds(ctx context.Context) (map[string]*ThresholdState, error)

	// LoadBaselines reads all anomaly baselines, keyed by AnomalyBaseline.Key.
	LoadBaselines(ctx context.Context) (map[string]*AnomalyBaseline, error)

	// CommitCycle atomically writes the updated threshold states and
	// baselines and journals the emitted action keys for the given bucket.
	CommitCycle(ctx context.Context, thresholds map[string]*ThresholdState, baselines map[string]*AnomalyBaseline, actionKeys []string, bucket time.Time) error

	// SeenActions returns which of the given idempotency keys were already
	// journaled, so emission stays at-most-once across restarts.
	SeenActions(ctx context.Context, keys []string) (map[string]bool, error)

	// PruneJournal drops journal entries for buckets older than cutoff.
	PruneJournal(ctx context.Context, cutoff time.Time) error
}
