// Package store defines the persistence interface for simulation runs.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"time"

	"github.com/hedgelab/hedge-engine/internal/model"
)

// Store is the persistence interface. Run records are the headers of
// executed simulations; scenario summaries are the per-(strike, scenario,
// lot) aggregates, written once when a run completes.
type Store interface {
	// --- Run records ---

	// CreateRun persists a new run record in the "running" state.
	CreateRun(ctx context.Context, run *model.RunRecord) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (*model.RunRecord, error)

	// ListRuns returns all runs, most recent first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)

	// MarkRunCompleted transitions a run to "completed".
	MarkRunCompleted(ctx context.Context, id string, completedAt time.Time) error

	// MarkRunFailed transitions a run to "failed" with a reason.
	MarkRunFailed(ctx context.Context, id string, reason string, completedAt time.Time) error

	// --- Scenario summaries ---

	// InsertSummaries appends the per-cell aggregates for a completed run.
	InsertSummaries(ctx context.Context, summaries []model.ScenarioSummary) error

	// GetSummariesByRun returns all scenario summaries for a run.
	GetSummariesByRun(ctx context.Context, runID string) ([]model.ScenarioSummary, error)
}
