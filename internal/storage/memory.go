package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"neurowombat/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	summaries   map[string]model.ExperimentSummary
	trials      map[string][]model.TrialRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.summaries = make(map[string]model.ExperimentSummary)
	s.trials = make(map[string][]model.TrialRecord)
	return nil
}

func (s *MemoryStore) SaveSummary(_ context.Context, summary model.ExperimentSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.summaries[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetSummary(_ context.Context, runID string) (model.ExperimentSummary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[runID]
	return summary, ok, nil
}

// ListSummaries returns summaries newest first.
func (s *MemoryStore) ListSummaries(_ context.Context) ([]model.ExperimentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ExperimentSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		out = append(out, summary)
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) SaveTrials(_ context.Context, runID string, trials []model.TrialRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.trials[runID] = append([]model.TrialRecord(nil), trials...)
	return nil
}

func (s *MemoryStore) GetTrials(_ context.Context, runID string) ([]model.TrialRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trials, ok := s.trials[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]model.TrialRecord(nil), trials...), true, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.summaries, runID)
	delete(s.trials, runID)
	return nil
}

func sortSummaries(summaries []model.ExperimentSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAtUTC == summaries[j].CreatedAtUTC {
			return summaries[i].RunID > summaries[j].RunID
		}
		return summaries[i].CreatedAtUTC > summaries[j].CreatedAtUTC
	})
}
