package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// ActionKind enumerates the abstract actions the engine may emit.
type ActionKind string

// Action kinds, ordered by severity (most severe first).
const (
	ActionDeny       ActionKind = "deny"
	ActionShutdown   ActionKind = "shutdown"
	ActionStartup    ActionKind = "startup"
	ActionResize     ActionKind = "resize"
	ActionDelete     ActionKind = "delete"
	ActionDeregister ActionKind = "deregister"
	ActionNotify     ActionKind = "notify"
)

// Severity returns a rank for dispatch ordering: deny and shutdown stop spend
// and go out before informational actions.
func (k ActionKind) Severity() int {
	switch k {
	case ActionDeny:
		return 0
	case ActionShutdown:
		return 1
	case ActionDelete:
		return 2
	case ActionDeregister:
		return 3
	case ActionResize:
		return 4
	case ActionStartup:
		return 5
	case ActionNotify:
		return 6
	default:
		return 7
	}
}

// Confidence levels carried on rightsizing decisions.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Reason for a suppressed decision that lost a same-kind precedence conflict.
const ReasonSuperseded = "superseded"

// Decision is the per-resource, per-policy outcome of one evaluation cycle.
// Decisions are recomputed fresh every cycle and never persisted; only the
// deduplicated Actions and the tracker/baseline state survive.
type Decision struct {
	ResourceID string                 `json:"resource_id"`
	PolicyName string                 `json:"policy_name"`
	PolicyKind string                 `json:"policy_kind"`
	Precedence int                    `json:"precedence"`
	Action     ActionKind             `json:"action"`
	Reason     string                 `json:"reason"`
	Confidence string                 `json:"confidence,omitempty"`
	DryRun     bool                   `json:"dry_run"`
	Suppressed bool                   `json:"suppressed,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Action is a deduplicated, dispatch-ready instruction. The idempotency key
// guarantees the same logical action is emitted at most once per evaluation
// window bucket, across process restarts.
type Action struct {
	IdempotencyKey string          `json:"idempotency_key"`
	ResourceID     string          `json:"resource_id"`
	Kind           ActionKind      `json:"kind"`
	PolicyName     string          `json:"policy_name"`
	Reason         string          `json:"reason"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	DryRun         bool            `json:"dry_run"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IdempotencyKey derives the at-most-once key for a logical action within a
// time bucket. The bucket is the cycle instant truncated to the configured
// bucket duration, so re-evaluation inside the same bucket collides.
func IdempotencyKey(resourceID string, kind ActionKind, policyName string, bucket time.Time) string {
	h := sha256.New()
	h.Write([]byte(resourceID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(policyName))
	h.Write([]byte{0})
	h.Write([]byte(bucket.UTC().Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))
}

// AuditEntry is one line of the decision log side-channel used for
// compliance reporting. The engine writes it and never reads it back.
type AuditEntry struct {
	ID         string     `json:"id"`
	CycleID    string     `json:"cycle_id"`
	ResourceID string     `json:"resource_id"`
	PolicyName string     `json:"policy_name"`
	Action     ActionKind `json:"action"`
	Reason     string     `json:"reason"`
	DryRun     bool       `json:"dry_run"`
	Timestamp  time.Time  `json:"timestamp"`
}
