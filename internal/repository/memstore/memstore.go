// Package memstore is an in-memory state repository. It backs one-shot
// offline evaluations and tests; nothing survives the process.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/costgov/costgov/internal/domain/state"
)

// Store implements state.Repository with plain maps.
type Store struct {
	mu         sync.Mutex
	thresholds map[string]*state.ThresholdState
	baselines  map[string]*state.AnomalyBaseline
	journal    map[string]time.Time // key -> bucket
	Commits    int
}

func New() *Store {
	return &Store{
		thresholds: map[string]*state.ThresholdState{},
		baselines:  map[string]*state.AnomalyBaseline{},
		journal:    map[string]time.Time{},
	}
}

func (s *Store) LoadThresholds(_ context.Context) (map[string]*state.ThresholdState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*state.ThresholdState, len(s.thresholds))
	for k, v := range s.thresholds {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (s *Store) LoadBaselines(_ context.Context) (map[string]*state.AnomalyBaseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*state.AnomalyBaseline, len(s.baselines))
	for k, v := range s.baselines {
		cp := *v
		out[k] = &cp
	}
	return out, nil
}

func (s *Store) CommitCycle(ctx context.Context, thresholds map[string]*state.ThresholdState, baselines map[string]*state.AnomalyBaseline, actionKeys []string, bucket time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range thresholds {
		cp := *v
		s.thresholds[k] = &cp
	}
	for k, v := range baselines {
		cp := *v
		s.baselines[k] = &cp
	}
	for _, key := range actionKeys {
		s.journal[key] = bucket
	}
	s.Commits++
	return nil
}

func (s *Store) SeenActions(_ context.Context, keys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(keys))
	for _, key := range keys {
		if _, ok := s.journal[key]; ok {
			out[key] = true
		}
	}
	return out, nil
}

func (s *Store) PruneJournal(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, bucket := range s.journal {
		if bucket.Before(cutoff) {
			delete(s.journal, key)
		}
	}
	return nil
}

// JournalLen reports the number of journaled keys.
func (s *Store) JournalLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.journal)
}
