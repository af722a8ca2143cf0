package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/costgov/costgov/internal/domain/decision"
	"github.com/costgov/costgov/internal/pkg/logger"
)

func TestPrepare(t *testing.T) {
	bucket := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	now := bucket.Add(3 * time.Minute)
	d := New(&CollectSink{}, logger.Nop())

	decisions := []decision.Decision{
		{ResourceID: "aws/ec2/i-001", PolicyName: "office-hours", PolicyKind: "shutdown", Action: decision.ActionShutdown, Precedence: 10},
		{ResourceID: "aws/ec2/i-001", PolicyName: "require-owner", PolicyKind: "tagging", Action: decision.ActionNotify, Details: map[string]interface{}{"violations": []string{"missing required tag \"Owner\""}}},
		{ResourceID: "aws/ec2/i-002", PolicyName: "weeknights", PolicyKind: "shutdown", Action: decision.ActionShutdown, Suppressed: true, Reason: decision.ReasonSuperseded},
	}

	actions := d.Prepare(decisions, bucket, now)
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2 (suppressed dropped)", len(actions))
	}
	if actions[0].Kind != decision.ActionShutdown {
		t.Errorf("most severe action must come first, got %s", actions[0].Kind)
	}
	if actions[0].IdempotencyKey != decision.IdempotencyKey("aws/ec2/i-001", decision.ActionShutdown, "office-hours", bucket) {
		t.Error("idempotency key must derive from resource, kind, policy and bucket")
	}
	if actions[1].Payload == nil {
		t.Error("decision details must carry over as the action payload")
	}
	for _, a := range actions {
		if !a.CreatedAt.Equal(now) {
			t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, now)
		}
	}
}

func TestPrepare_KeyCollisionKeepsHighestPrecedence(t *testing.T) {
	bucket := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	d := New(&CollectSink{}, logger.Nop())

	// Same resource, kind, policy and bucket: one logical action.
	decisions := []decision.Decision{
		{ResourceID: "r", PolicyName: "p", PolicyKind: "cleanup", Action: decision.ActionDelete, Precedence: 5, Reason: "low"},
		{ResourceID: "r", PolicyName: "p", PolicyKind: "cleanup", Action: decision.ActionDelete, Precedence: 20, Reason: "high"},
	}
	actions := d.Prepare(decisions, bucket, bucket)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1", len(actions))
	}
	if actions[0].Reason != "high" {
		t.Errorf("kept reason = %q, want the higher-precedence decision", actions[0].Reason)
	}
}

func TestPrepare_BucketChangesKey(t *testing.T) {
	d := New(&CollectSink{}, logger.Nop())
	dec := []decision.Decision{{ResourceID: "r", PolicyName: "p", PolicyKind: "cleanup", Action: decision.ActionDelete}}

	b1 := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	b2 := b1.Add(time.Hour)
	k1 := d.Prepare(dec, b1, b1)[0].IdempotencyKey
	k2 := d.Prepare(dec, b2, b2)[0].IdempotencyKey
	if k1 == k2 {
		t.Error("different buckets must produce different idempotency keys")
	}
}

func TestPrepare_ForceDryRun(t *testing.T) {
	bucket := time.Date(2025, 3, 12, 14, 0, 0, 0, time.UTC)
	d := New(&CollectSink{}, logger.Nop())
	d.ForceDryRun()

	decisions := []decision.Decision{
		{ResourceID: "r1", PolicyName: "p1", PolicyKind: "shutdown", Action: decision.ActionShutdown},
		{ResourceID: "r2", PolicyName: "p2", PolicyKind: "tagging", Action: decision.ActionNotify, DryRun: true},
	}
	actions := d.Prepare(decisions, bucket, bucket)
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	for _, a := range actions {
		if !a.DryRun {
			t.Errorf("action %s/%s not dry-run under the override", a.ResourceID, a.Kind)
		}
	}
}

type failingSink struct {
	failOn    decision.ActionKind
	delivered []decision.Action
}

func (s *failingSink) Deliver(_ context.Context, a decision.Action) error {
	if a.Kind == s.failOn {
		return fmt.Errorf("sink refused %s", a.Kind)
	}
	s.delivered = append(s.delivered, a)
	return nil
}

func TestDispatch_FailureSkipsKeyAndContinues(t *testing.T) {
	sink := &failingSink{failOn: decision.ActionShutdown}
	d := New(sink, logger.Nop())

	actions := []decision.Action{
		{IdempotencyKey: "k1", Kind: decision.ActionShutdown},
		{IdempotencyKey: "k2", Kind: decision.ActionNotify},
	}
	delivered, err := d.Dispatch(context.Background(), actions)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(delivered) != 1 || delivered[0] != "k2" {
		t.Errorf("delivered = %v, want only k2 (failed key retried next bucket)", delivered)
	}
	if len(sink.delivered) != 1 {
		t.Errorf("sink saw %d actions, want 1", len(sink.delivered))
	}
}

func TestDispatch_CancelledContextStops(t *testing.T) {
	sink := &CollectSink{}
	d := New(sink, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	delivered, err := d.Dispatch(ctx, []decision.Action{{IdempotencyKey: "k1"}, {IdempotencyKey: "k2"}})
	if err == nil {
		t.Fatal("expected a context error")
	}
	if len(delivered) != 0 || len(sink.Actions) != 0 {
		t.Errorf("cancelled dispatch must deliver nothing, got %v", delivered)
	}
}

func TestCollectSink(t *testing.T) {
	sink := &CollectSink{}
	d := New(sink, logger.Nop())

	actions := []decision.Action{
		{IdempotencyKey: "k1", Kind: decision.ActionDelete},
		{IdempotencyKey: "k2", Kind: decision.ActionNotify},
	}
	delivered, err := d.Dispatch(context.Background(), actions)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(delivered) != 2 || len(sink.Actions) != 2 {
		t.Errorf("got %d delivered / %d collected, want 2 / 2", len(delivered), len(sink.Actions))
	}
}
