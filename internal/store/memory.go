package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hedgelab/hedge-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*model.RunRecord
	summaries []model.ScenarioSummary
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*model.RunRecord),
	}
}

func (s *MemoryStore) CreateRun(_ context.Context, run *model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}

	// Store a copy to avoid external mutation.
	copy := *run
	s.runs[run.ID] = &copy
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (*model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s not found", id)
	}
	copy := *r
	return &copy, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *MemoryStore) MarkRunCompleted(_ context.Context, id string, completedAt time.Time) error {
	return s.setStatus(id, model.RunStatusCompleted, "", completedAt)
}

func (s *MemoryStore) MarkRunFailed(_ context.Context, id string, reason string, completedAt time.Time) error {
	return s.setStatus(id, model.RunStatusFailed, reason, completedAt)
}

func (s *MemoryStore) setStatus(id, status, reason string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("run %s not found", id)
	}
	r.Status = status
	r.Error = reason
	r.CompletedAt = &completedAt
	return nil
}

func (s *MemoryStore) InsertSummaries(_ context.Context, summaries []model.ScenarioSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, summaries...)
	return nil
}

func (s *MemoryStore) GetSummariesByRun(_ context.Context, runID string) ([]model.ScenarioSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.ScenarioSummary
	for _, sum := range s.summaries {
		if sum.RunID == runID {
			result = append(result, sum)
		}
	}
	return result, nil
}
