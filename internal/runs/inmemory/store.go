package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/unbilled-sync/internal/runs"
)

// Store is an in-memory implementation of runs.Store.
// It is safe for concurrent use. Data is lost when the process exits.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*runs.Run
	now  func() time.Time
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*runs.Run),
		now:  time.Now,
	}
}

// Start implements the runs.Store interface.
func (s *Store) Start(ctx context.Context, bank, sheet string) (string, error) {
	if bank == "" {
		return "", fmt.Errorf("bank is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := runs.NewRunID()
	s.runs[id] = &runs.Run{
		RunID:     id,
		Bank:      bank,
		Sheet:     sheet,
		Status:    runs.StatusRunning,
		StartedAt: s.now(),
	}
	return id, nil
}

// Finish implements the runs.Store interface.
func (s *Store) Finish(ctx context.Context, runID string, out runs.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("%w: %s", runs.ErrNotFound, runID)
	}

	finished := s.now()
	run.Status = out.Status
	run.FinishedAt = &finished
	run.Extracted = out.Extracted
	run.Published = out.Published
	run.FailedState = out.FailedState
	run.Error = runs.ErrorMessage(out.Err)
	return nil
}

// Get returns a copy of one run.
func (s *Store) Get(ctx context.Context, runID string) (*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", runs.ErrNotFound, runID)
	}

	// Return a copy to avoid external modifications
	runCopy := *run
	return &runCopy, nil
}

// List implements the runs.Store interface.
func (s *Store) List(ctx context.Context, filter runs.Filter) ([]*runs.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*runs.Run{}
	for _, run := range s.runs {
		if filter.Bank != "" && run.Bank != filter.Bank {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}

		runCopy := *run
		result = append(result, &runCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Ensure Store implements runs.Store interface.
var _ runs.Store = (*Store)(nil)
