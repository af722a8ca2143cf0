// Package spend holds the cost-telemetry view consumed by budget policies.
package spend

import "github.com/costgov/costgov/internal/domain/resource"

// ScopeSpend is one scope's period-to-date spend plus its daily cost series.
// The key is the scope tag value, or "total" for an unpartitioned budget.
type ScopeSpend struct {
	Key    string          `json:"key"`
	Amount float64         `json:"amount"`
	Daily  resource.Series `json:"daily,omitempty"`
}

// TotalKey is the scope key of an unpartitioned budget.
const TotalKey = "total"
