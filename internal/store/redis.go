package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hedgelab/hedge-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Completed runs and their
// summaries are immutable, which makes them ideal cache candidates.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateRun(ctx context.Context, r *model.RunRecord) error {
	if err := s.primary.CreateRun(ctx, r); err != nil {
		return err
	}
	s.cacheRun(ctx, r)
	return nil
}

func (s *CachedStore) MarkRunCompleted(ctx context.Context, id string, completedAt time.Time) error {
	if err := s.primary.MarkRunCompleted(ctx, id, completedAt); err != nil {
		return err
	}
	// Invalidate; next read will re-populate.
	s.rdb.Del(ctx, runKey(id))
	return nil
}

func (s *CachedStore) MarkRunFailed(ctx context.Context, id string, reason string, completedAt time.Time) error {
	if err := s.primary.MarkRunFailed(ctx, id, reason, completedAt); err != nil {
		return err
	}
	s.rdb.Del(ctx, runKey(id))
	return nil
}

func (s *CachedStore) InsertSummaries(ctx context.Context, summaries []model.ScenarioSummary) error {
	if err := s.primary.InsertSummaries(ctx, summaries); err != nil {
		return err
	}
	if len(summaries) > 0 {
		s.rdb.Del(ctx, summariesKey(summaries[0].RunID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetRun(ctx context.Context, id string) (*model.RunRecord, error) {
	data, err := s.rdb.Get(ctx, runKey(id)).Bytes()
	if err == nil {
		var r model.RunRecord
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	// Cache miss: read from primary.
	r, err := s.primary.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheRun(ctx, r)
	return r, nil
}

func (s *CachedStore) GetSummariesByRun(ctx context.Context, runID string) ([]model.ScenarioSummary, error) {
	data, err := s.rdb.Get(ctx, summariesKey(runID)).Bytes()
	if err == nil {
		var summaries []model.ScenarioSummary
		if json.Unmarshal(data, &summaries) == nil {
			return summaries, nil
		}
	}

	// Cache miss.
	summaries, err := s.primary.GetSummariesByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summaries); err == nil {
		s.rdb.Set(ctx, summariesKey(runID), data, s.ttl)
	}
	return summaries, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListRuns(ctx context.Context) ([]model.RunRecord, error) {
	return s.primary.ListRuns(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheRun(ctx context.Context, r *model.RunRecord) {
	if data, err := json.Marshal(r); err == nil {
		s.rdb.Set(ctx, runKey(r.ID), data, s.ttl)
	}
}

func runKey(id string) string       { return fmt.Sprintf("run:%s", id) }
func summariesKey(id string) string { return fmt.Sprintf("summaries:%s", id) }
