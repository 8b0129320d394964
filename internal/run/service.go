// Package run provides the HTTP handlers and orchestration for executing
// hedging simulation runs: generate GBM price paths, price the option grid,
// compute per-scenario hedging excess returns, aggregate, and persist.
//
// Simulation math is float64 throughout the pipeline; reported statistics
// are converted to shopspring/decimal at the boundary.
package run

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hedgelab/hedge-engine/internal/bsm"
	"github.com/hedgelab/hedge-engine/internal/gbm"
	"github.com/hedgelab/hedge-engine/internal/grid"
	"github.com/hedgelab/hedge-engine/internal/hedge"
	"github.com/hedgelab/hedge-engine/internal/metrics"
	"github.com/hedgelab/hedge-engine/internal/model"
	"github.com/hedgelab/hedge-engine/internal/stats"
	"github.com/hedgelab/hedge-engine/internal/store"
)

// Service executes simulation runs and serves their results. Runs share no
// mutable state (each owns its generators and buffers), so no serialization
// is needed across concurrent requests.
type Service struct {
	store store.Store
	wsHub *WSHub // optional WebSocket hub for run lifecycle broadcasts
}

// NewService creates a new run service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{store: st, wsHub: hub}
}

// --- Request/Response types ---

// RealizedStats are the sanity statistics of the generated path population.
type RealizedStats struct {
	AnnualReturn     decimal.Decimal `json:"annual_return"`
	AnnualVolatility decimal.Decimal `json:"annual_volatility"`
}

// RunResponse is the JSON body returned from POST /api/v1/runs.
type RunResponse struct {
	Run       model.RunRecord         `json:"run"`
	Realized  RealizedStats           `json:"realized"`
	Summaries []model.ScenarioSummary `json:"summaries"`
}

// --- HTTP Handlers ---

// ExecuteRun handles POST /api/v1/runs.
// The request body is a RunConfig; zero-valued fields take the
// reference-scenario defaults. The run executes synchronously and the
// response carries the persisted record plus all scenario summaries.
func (s *Service) ExecuteRun(w http.ResponseWriter, r *http.Request) {
	var cfg model.RunConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	record := &model.RunRecord{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateRun(ctx, record); err != nil {
		writeError(w, "failed to create run", http.StatusInternalServerError)
		return
	}

	s.broadcast(WSMessage{Type: "run_started", RunID: record.ID, Status: record.Status})

	metrics.ActiveRuns.Inc()
	start := time.Now()
	result, err := Execute(ctx, cfg)
	metrics.ActiveRuns.Dec()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	completedAt := time.Now().UTC()
	if err != nil {
		metrics.RunsTotal.WithLabelValues(model.RunStatusFailed).Inc()
		if markErr := s.store.MarkRunFailed(ctx, record.ID, err.Error(), completedAt); markErr != nil {
			slog.Error("failed to mark run failed", "run_id", record.ID, "err", markErr)
		}
		s.broadcast(WSMessage{Type: "run_failed", RunID: record.ID, Status: model.RunStatusFailed, Error: err.Error()})
		slog.Error("run failed", "run_id", record.ID, "err", err)
		writeError(w, err.Error(), statusForError(err))
		return
	}

	for i := range result.Summaries {
		result.Summaries[i].RunID = record.ID
	}
	if err := s.store.InsertSummaries(ctx, result.Summaries); err != nil {
		writeError(w, "failed to persist summaries", http.StatusInternalServerError)
		return
	}
	if err := s.store.MarkRunCompleted(ctx, record.ID, completedAt); err != nil {
		writeError(w, "failed to complete run", http.StatusInternalServerError)
		return
	}

	record.Status = model.RunStatusCompleted
	record.CompletedAt = &completedAt
	metrics.RunsTotal.WithLabelValues(model.RunStatusCompleted).Inc()

	slog.Info("run completed",
		"run_id", record.ID,
		"assets", cfg.AssetCount,
		"horizon_days", cfg.HorizonDays,
		"strikes", len(cfg.Strikes),
		"scenarios", len(cfg.VolScenarios),
		"lots", len(cfg.LotSizes),
		"duration", time.Since(start).String(),
	)

	s.broadcast(WSMessage{
		Type:   "run_completed",
		RunID:  record.ID,
		Status: record.Status,
	})

	resp := RunResponse{
		Run:       *record,
		Realized:  result.Realized,
		Summaries: result.Summaries,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// ListRuns handles GET /api/v1/runs.
func (s *Service) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun handles GET /api/v1/runs/{runID}.
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	record, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// GetSummaries handles GET /api/v1/runs/{runID}/summaries.
func (s *Service) GetSummaries(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if _, err := s.store.GetRun(r.Context(), runID); err != nil {
		writeError(w, "run not found", http.StatusNotFound)
		return
	}

	summaries, err := s.store.GetSummariesByRun(r.Context(), runID)
	if err != nil {
		writeError(w, "failed to load summaries", http.StatusInternalServerError)
		return
	}
	if summaries == nil {
		summaries = []model.ScenarioSummary{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summaries)
}

func (s *Service) broadcast(msg WSMessage) {
	if s.wsHub != nil {
		s.wsHub.Broadcast(msg)
	}
}

// --- Pipeline ---

// Result is the in-memory outcome of one run.
type Result struct {
	Paths     []model.PricePath
	Realized  RealizedStats
	Summaries []model.ScenarioSummary
}

// Execute runs the full pipeline for a validated configuration:
// paths → option grid → excess returns → aggregates. Pure apart from
// metrics counters; all state is owned by the call.
func Execute(ctx context.Context, cfg model.RunConfig) (*Result, error) {
	sim, err := gbm.NewSimulator(gbm.ParamsFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	paths, err := sim.Generate(ctx)
	if err != nil {
		return nil, err
	}
	metrics.PathsGenerated.Add(float64(len(paths)))

	optionGrid, err := grid.Build(ctx, paths,
		cfg.Strikes, cfg.VolScenarios,
		cfg.RiskFreeRate, cfg.DividendYield,
		cfg.TradingDaysPerYear)
	if err != nil {
		return nil, err
	}
	metrics.OptionPricings.Add(float64(
		len(paths) * cfg.HorizonDays * len(cfg.Strikes) * len(cfg.VolScenarios)))

	finals := make([]float64, len(paths))
	for i, p := range paths {
		finals[i] = p.Final()
	}

	dailyRate := cfg.DailyRate()
	summaries := make([]model.ScenarioSummary, 0,
		len(cfg.Strikes)*len(cfg.VolScenarios)*len(cfg.LotSizes))

	for _, strike := range cfg.Strikes {
		itm, err := stats.InTheMoney(finals, strike)
		if err != nil {
			return nil, err
		}
		for _, scenario := range cfg.VolScenarios {
			cell := optionGrid[grid.Key{Strike: strike, VolScenario: scenario}]
			for _, lot := range cfg.LotSizes {
				sums := hedge.CumulativeByAsset(cell, paths, dailyRate, lot)
				agg, err := stats.Aggregate(sums)
				if err != nil {
					return nil, err
				}
				annualized := stats.AnnualizeVolatility(agg.StdDev,
					cfg.TradingDaysPerYear, cfg.HorizonDays)

				summaries = append(summaries, model.ScenarioSummary{
					Strike:             strike,
					VolScenario:        scenario,
					LotSize:            lot,
					AssetCount:         agg.Count,
					InTheMoney:         itm.Count,
					MeanExcessReturn:   model.Stat(agg.Mean),
					StdDevExcessReturn: model.Stat(agg.StdDev),
					AnnualizedStdDev:   model.Stat(annualized),
					MeanITMPayoff:      model.Stat(itm.MeanPayoff),
					PayoffStdDev:       model.Stat(itm.PayoffStdDev),
				})
			}
		}
	}

	params := sim.Params()
	return &Result{
		Paths: paths,
		Realized: RealizedStats{
			AnnualReturn:     model.Stat(gbm.RealizedAnnualReturn(paths, params)),
			AnnualVolatility: model.Stat(gbm.RealizedAnnualVolatility(paths, params)),
		},
		Summaries: summaries,
	}, nil
}

// statusForError maps pipeline errors to HTTP statuses. Invalid parameters
// surface as 400s even when detected below the handler's own validation.
func statusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidParameter),
		errors.Is(err, gbm.ErrInvalidInitialPrice),
		errors.Is(err, gbm.ErrInvalidVolatility),
		errors.Is(err, gbm.ErrInvalidTimeScale),
		errors.Is(err, gbm.ErrInvalidAssetCount),
		errors.Is(err, bsm.ErrInvalidSpot),
		errors.Is(err, bsm.ErrInvalidStrike),
		errors.Is(err, bsm.ErrInvalidVolatility),
		errors.Is(err, bsm.ErrNegativeExpiry),
		errors.Is(err, stats.ErrEmptyInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
