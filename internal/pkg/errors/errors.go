package errors

import (
	"errors"
	"fmt"
)

// EngineError represents an evaluation engine error with a machine-readable
// code and optional policy/resource scoping. Errors scoped to a single policy
// or resource are logged and skipped; only store-level failures abort a cycle.
type EngineError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Policy   string `json:"policy,omitempty"`
	Resource string `json:"resource,omitempty"`
	Internal error  `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *EngineError) Unwrap() error {
	return e.Internal
}

// Error codes
const (
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeSchedule      = "SCHEDULE_ERROR"
	ErrCodeDataGap       = "DATA_GAP"
	ErrCodeStateConflict = "STATE_CONFLICT"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeProvider      = "PROVIDER_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
)

// New creates a new EngineError
func New(code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// Wrap wraps an error with an EngineError
func Wrap(err error, code, message string) *EngineError {
	return &EngineError{Code: code, Message: message, Internal: err}
}

// ForPolicy scopes the error to a policy
func (e *EngineError) ForPolicy(name string) *EngineError {
	e.Policy = name
	return e
}

// ForResource scopes the error to a resource
func (e *EngineError) ForResource(id string) *EngineError {
	e.Resource = id
	return e
}

// ConfigError reports a malformed policy document. The offending policy is
// excluded from the store; the rest of the load proceeds.
func ConfigError(policy, field, message string) *EngineError {
	return New(ErrCodeConfig, fmt.Sprintf("policy %q: field %q: %s", policy, field, message)).ForPolicy(policy)
}

// ScheduleError reports an invalid schedule spec, scoped to one policy.
func ScheduleError(policy, message string) *EngineError {
	return New(ErrCodeSchedule, message).ForPolicy(policy)
}

// DataGap reports insufficient or discontinuous metric data. The evaluator
// abstains from a decision rather than guessing.
func DataGap(resource, message string) *EngineError {
	return New(ErrCodeDataGap, message).ForResource(resource)
}

// StateConflict reports contention on a shared state key.
func StateConflict(key string) *EngineError {
	return New(ErrCodeStateConflict, fmt.Sprintf("concurrent update on state key %q", key))
}

// StoreError reports a durable state store failure. Store errors at cycle
// boundaries are cycle-fatal.
func StoreError(message string, err error) *EngineError {
	return Wrap(err, ErrCodeStore, message)
}

// ProviderError reports a cloud provider API failure.
func ProviderError(provider string, err error) *EngineError {
	return Wrap(err, ErrCodeProvider, fmt.Sprintf("%s API request failed", provider))
}

// NotFound reports a missing record.
func NotFound(what string) *EngineError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", what))
}

// IsCode reports whether err is an EngineError with the given code.
func IsCode(err error, code string) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
