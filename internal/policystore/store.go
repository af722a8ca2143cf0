// Package policystore loads, validates, and versions policy documents. The
// active set is immutable; a reload builds a complete replacement store and
// swaps it atomically, so no cycle ever observes a partial load.
package policystore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync/atomic"
	"time"

	"github.com/costgov/costgov/internal/domain/policy"
)

// Store is one immutable, versioned set of validated policies.
type Store struct {
	policies []*policy.Policy
	version  string
	loadedAt time.Time
}

// NewStore builds a store from validated policies. Policies are ordered by
// name for deterministic iteration; the version is a content hash.
func NewStore(policies []*policy.Policy, loadedAt time.Time) *Store {
	sorted := make([]*policy.Policy, len(policies))
	copy(sorted, policies)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		return sorted[i].Name < sorted[j].Name
	})

	return &Store{
		policies: sorted,
		version:  contentHash(sorted),
		loadedAt: loadedAt,
	}
}

// Policies returns all policies in deterministic order.
func (s *Store) Policies() []*policy.Policy {
	return s.policies
}

// Enabled returns the enabled policies in deterministic order.
func (s *Store) Enabled() []*policy.Policy {
	out := make([]*policy.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ByKind returns enabled policies of one kind.
func (s *Store) ByKind(kind policy.Kind) []*policy.Policy {
	out := []*policy.Policy{}
	for _, p := range s.policies {
		if p.Enabled && p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

// Version is the content hash identifying this policy set.
func (s *Store) Version() string {
	return s.version
}

// LoadedAt is when this store was built.
func (s *Store) LoadedAt() time.Time {
	return s.loadedAt
}

// Len returns the number of policies.
func (s *Store) Len() int {
	return len(s.policies)
}

func contentHash(policies []*policy.Policy) string {
	h := sha256.New()
	for _, p := range policies {
		raw, _ := json.Marshal(p)
		h.Write(raw)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Holder publishes the active store and swaps it atomically on reload.
type Holder struct {
	current atomic.Pointer[Store]
}

// NewHolder creates a holder with an initial store.
func NewHolder(initial *Store) *Holder {
	h := &Holder{}
	h.current.Store(initial)
	return h
}

// Current returns the active store. Cycles capture the reference once at
// cycle start and never re-read it mid-cycle.
func (h *Holder) Current() *Store {
	return h.current.Load()
}

// Swap installs a freshly loaded store.
func (h *Holder) Swap(next *Store) {
	h.current.Store(next)
}
