package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/costgov/costgov/internal/domain/state"
	"github.com/costgov/costgov/internal/pkg/errors"
)

// LoadThresholds reads every threshold state, keyed by ThresholdState.Key().
func (s *Store) LoadThresholds(ctx context.Context) (map[string]*state.ThresholdState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT budget_name, scope_key, highest_level_fired, period_start, last_evaluated_at FROM threshold_states`)
	if err != nil {
		return nil, errors.StoreError("load threshold states", err)
	}
	defer rows.Close()

	out := map[string]*state.ThresholdState{}
	for rows.Next() {
		var ts state.ThresholdState
		if err := rows.Scan(&ts.BudgetName, &ts.ScopeKey, &ts.HighestLevelFired, &ts.PeriodStart, &ts.LastEvaluatedAt); err != nil {
			return nil, errors.StoreError("scan threshold state", err)
		}
		out[ts.Key()] = &ts
	}
	return out, rows.Err()
}

// LoadBaselines reads every anomaly baseline, keyed by AnomalyBaseline.Key.
func (s *Store) LoadBaselines(ctx context.Context) (map[string]*state.AnomalyBaseline, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, count, mean, m2, window_days, first_sample_day, last_sample_day, updated_at FROM anomaly_baselines`)
	if err != nil {
		return nil, errors.StoreError("load anomaly baselines", err)
	}
	defer rows.Close()

	out := map[string]*state.AnomalyBaseline{}
	for rows.Next() {
		var (
			b        state.AnomalyBaseline
			firstDay sql.NullTime
			lastDay  sql.NullTime
		)
		if err := rows.Scan(&b.Key, &b.Count, &b.Mean, &b.M2, &b.WindowDays, &firstDay, &lastDay, &b.UpdatedAt); err != nil {
			return nil, errors.StoreError("scan anomaly baseline", err)
		}
		if firstDay.Valid {
			b.FirstSampleDay = firstDay.Time
		}
		if lastDay.Valid {
			b.LastSampleDay = lastDay.Time
		}
		out[b.Key] = &b
	}
	return out, rows.Err()
}

// CommitCycle writes the cycle's state updates and journals the emitted
// action keys in one transaction. Any failure rolls everything back, so an
// aborted cycle leaves no trace.
func (s *Store) CommitCycle(ctx context.Context, thresholds map[string]*state.ThresholdState, baselines map[string]*state.AnomalyBaseline, actionKeys []string, bucket time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("begin cycle commit", err)
	}
	defer tx.Rollback()

	upsertThreshold := s.rebind(`
INSERT INTO threshold_states (budget_name, scope_key, highest_level_fired, period_start, last_evaluated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (budget_name, scope_key) DO UPDATE SET
    highest_level_fired = excluded.highest_level_fired,
    period_start = excluded.period_start,
    last_evaluated_at = excluded.last_evaluated_at`)
	for _, ts := range thresholds {
		if _, err := tx.ExecContext(ctx, upsertThreshold,
			ts.BudgetName, ts.ScopeKey, ts.HighestLevelFired, ts.PeriodStart.UTC(), ts.LastEvaluatedAt.UTC()); err != nil {
			return errors.StoreError("upsert threshold state", err)
		}
	}

	upsertBaseline := s.rebind(`
INSERT INTO anomaly_baselines (key, count, mean, m2, window_days, first_sample_day, last_sample_day, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
    count = excluded.count,
    mean = excluded.mean,
    m2 = excluded.m2,
    window_days = excluded.window_days,
    first_sample_day = excluded.first_sample_day,
    last_sample_day = excluded.last_sample_day,
    updated_at = excluded.updated_at`)
	for _, b := range baselines {
		var firstDay, lastDay interface{}
		if !b.FirstSampleDay.IsZero() {
			firstDay = b.FirstSampleDay.UTC()
		}
		if !b.LastSampleDay.IsZero() {
			lastDay = b.LastSampleDay.UTC()
		}
		if _, err := tx.ExecContext(ctx, upsertBaseline,
			b.Key, b.Count, b.Mean, b.M2, b.WindowDays, firstDay, lastDay, b.UpdatedAt.UTC()); err != nil {
			return errors.StoreError("upsert anomaly baseline", err)
		}
	}

	journal := s.rebind(`
INSERT INTO action_journal (idempotency_key, bucket, journaled_at)
VALUES (?, ?, ?)
ON CONFLICT (idempotency_key) DO NOTHING`)
	now := time.Now().UTC()
	for _, key := range actionKeys {
		if _, err := tx.ExecContext(ctx, journal, key, bucket.UTC(), now); err != nil {
			return errors.StoreError("journal action key", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StoreError("commit cycle", err)
	}
	return nil
}

// SeenActions reports which of the given idempotency keys are already
// journaled.
func (s *Store) SeenActions(ctx context.Context, keys []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(keys))
	query := s.rebind(`SELECT 1 FROM action_journal WHERE idempotency_key = ?`)
	for _, key := range keys {
		var one int
		err := s.db.QueryRowContext(ctx, query, key).Scan(&one)
		switch {
		case err == sql.ErrNoRows:
			continue
		case err != nil:
			return nil, errors.StoreError("query action journal", err)
		default:
			seen[key] = true
		}
	}
	return seen, nil
}

// PruneJournal drops journal rows for buckets older than cutoff. Keys from
// pruned buckets can never collide again; their bucket component differs.
func (s *Store) PruneJournal(ctx context.Context, cutoff time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM action_journal WHERE bucket < ?`), cutoff.UTC()); err != nil {
		return errors.StoreError("prune action journal", err)
	}
	return nil
}
