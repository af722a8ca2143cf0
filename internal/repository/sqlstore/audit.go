package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/pkg/errors"
)

// WriteAudit appends one cycle's decision log. The audit trail is a write-
// only side channel; a failure here is reported but never fails the cycle.
func (s *Store) WriteAudit(ctx context.Context, cycleID string, decisions []decision.Decision, now time.Time) error {
	if len(decisions) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreError("begin audit write", err)
	}
	defer tx.Rollback()

	insert := s.rebind(`
INSERT INTO audit_log (id, cycle_id, resource_id, policy_name, action, reason, dry_run, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, d := range decisions {
		if _, err := tx.ExecContext(ctx, insert,
			uuid.NewString(), cycleID, d.ResourceID, d.PolicyName, string(d.Action), d.Reason, d.DryRun, now.UTC()); err != nil {
			return errors.StoreError("insert audit entry", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.StoreError("commit audit write", err)
	}
	return nil
}

// PruneAudit drops audit entries older than cutoff.
func (s *Store) PruneAudit(ctx context.Context, cutoff time.Time) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM audit_log WHERE created_at < ?`), cutoff.UTC()); err != nil {
		return errors.StoreError("prune audit log", err)
	}
	return nil
}
