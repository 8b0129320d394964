package run_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hedgelab/hedge-engine/internal/model"
	"github.com/hedgelab/hedge-engine/internal/run"
	"github.com/hedgelab/hedge-engine/internal/store"
)

func newTestRouter(t *testing.T) (*chi.Mux, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := run.NewService(st, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/runs", svc.ExecuteRun)
	r.Get("/api/v1/runs", svc.ListRuns)
	r.Get("/api/v1/runs/{runID}", svc.GetRun)
	r.Get("/api/v1/runs/{runID}/summaries", svc.GetSummaries)
	return r, st
}

// smallConfig keeps test runs fast while exercising the full grid.
func smallConfig() model.RunConfig {
	return model.RunConfig{
		InitialPrice:       100,
		AnnualDrift:        0.15,
		AnnualVolatility:   0.15,
		TradingDaysPerYear: 260,
		HorizonDays:        10,
		AssetCount:         40,
		Strikes:            []float64{97, 100},
		VolScenarios:       []float64{0.10, 0.15},
		LotSizes:           []float64{0, 0.5},
		RiskFreeRate:       0.05,
		Seed:               42,
	}
}

func postRun(t *testing.T, r http.Handler, cfg model.RunConfig) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestExecuteRun_Success(t *testing.T) {
	r, st := newTestRouter(t)
	cfg := smallConfig()

	w := postRun(t, r, cfg)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp run.RunResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Run.Status != model.RunStatusCompleted {
		t.Errorf("expected status %q, got %q", model.RunStatusCompleted, resp.Run.Status)
	}
	if resp.Run.CompletedAt == nil {
		t.Error("completed run should carry a completion timestamp")
	}

	wantSummaries := len(cfg.Strikes) * len(cfg.VolScenarios) * len(cfg.LotSizes)
	if len(resp.Summaries) != wantSummaries {
		t.Fatalf("expected %d summaries, got %d", wantSummaries, len(resp.Summaries))
	}
	for _, s := range resp.Summaries {
		if s.RunID != resp.Run.ID {
			t.Errorf("summary carries run ID %q, want %q", s.RunID, resp.Run.ID)
		}
		if s.AssetCount != cfg.AssetCount {
			t.Errorf("summary asset count %d, want %d", s.AssetCount, cfg.AssetCount)
		}
		if s.InTheMoney < 0 || s.InTheMoney > cfg.AssetCount {
			t.Errorf("in-the-money count %d out of range [0,%d]", s.InTheMoney, cfg.AssetCount)
		}
		if s.StdDevExcessReturn.IsNegative() || s.AnnualizedStdDev.IsNegative() {
			t.Errorf("dispersion statistics must be non-negative: %v / %v",
				s.StdDevExcessReturn, s.AnnualizedStdDev)
		}
	}

	// The run is persisted, not just echoed.
	stored, err := st.GetRun(context.Background(), resp.Run.ID)
	if err != nil {
		t.Fatalf("run not persisted: %v", err)
	}
	if stored.Status != model.RunStatusCompleted {
		t.Errorf("persisted status %q, want %q", stored.Status, model.RunStatusCompleted)
	}
	summaries, err := st.GetSummariesByRun(context.Background(), resp.Run.ID)
	if err != nil {
		t.Fatalf("summaries not persisted: %v", err)
	}
	if len(summaries) != wantSummaries {
		t.Errorf("persisted %d summaries, want %d", len(summaries), wantSummaries)
	}
}

func TestExecuteRun_DefaultsApplied(t *testing.T) {
	r, _ := newTestRouter(t)

	// An empty body object gets the full reference scenario.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte(`{"horizon_days":5,"asset_count":20}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp run.RunResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Run.Config.InitialPrice != model.DefaultInitialPrice {
		t.Errorf("expected default initial price, got %v", resp.Run.Config.InitialPrice)
	}
	want := len(model.DefaultStrikes) * len(model.DefaultVolScenarios) * len(model.DefaultLotSizes)
	if len(resp.Summaries) != want {
		t.Errorf("expected %d summaries from default grid, got %d", want, len(resp.Summaries))
	}
}

func TestExecuteRun_InvalidBody(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte(`{not json`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestExecuteRun_InvalidConfig(t *testing.T) {
	r, st := newTestRouter(t)

	cfg := smallConfig()
	cfg.Strikes = []float64{-100}
	w := postRun(t, r, cfg)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative strike, got %d", w.Code)
	}

	// Rejected configurations never create a run record.
	runs, err := st.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("expected no persisted runs, got %d", len(runs))
	}
}

func TestExecuteRun_OneDayHorizonRejected(t *testing.T) {
	r, st := newTestRouter(t)

	// A one-day horizon has no daily returns to hedge or measure; it must
	// be rejected up front, never reach the pipeline, and never leave a
	// record stuck in the running state.
	cfg := smallConfig()
	cfg.HorizonDays = 1
	w := postRun(t, r, cfg)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for one-day horizon, got %d: %s", w.Code, w.Body.String())
	}
	runs, err := st.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("rejected config must not persist a run, got %d (status %q)",
			len(runs), runs[0].Status)
	}
}

func TestExecute_MinimalHorizon(t *testing.T) {
	// Two observations is the shortest legal horizon: one daily return per
	// path, single-element dispersion 0. The whole pipeline, realized
	// statistics included, must complete without error.
	cfg := smallConfig()
	cfg.HorizonDays = 2

	result, err := run.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("minimal horizon execution failed: %v", err)
	}

	want := len(cfg.Strikes) * len(cfg.VolScenarios) * len(cfg.LotSizes)
	if len(result.Summaries) != want {
		t.Errorf("expected %d summaries, got %d", want, len(result.Summaries))
	}
	if result.Realized.AnnualVolatility.IsNegative() {
		t.Errorf("realized volatility must be non-negative, got %v", result.Realized.AnnualVolatility)
	}
}

func TestListAndGetRun(t *testing.T) {
	r, _ := newTestRouter(t)

	created := postRun(t, r, smallConfig())
	if created.Code != http.StatusCreated {
		t.Fatalf("setup run failed: %d", created.Code)
	}
	var resp run.RunResponse
	json.NewDecoder(created.Body).Decode(&resp)

	// List.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var runs []model.RunRecord
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != resp.Run.ID {
		t.Errorf("expected the created run in the listing, got %+v", runs)
	}

	// Get by ID.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+resp.Run.ID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}

	// Summaries by ID.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/runs/"+resp.Run.ID+"/summaries", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("summaries: expected 200, got %d", w.Code)
	}
	var summaries []model.ScenarioSummary
	if err := json.NewDecoder(w.Body).Decode(&summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != len(resp.Summaries) {
		t.Errorf("expected %d summaries, got %d", len(resp.Summaries), len(summaries))
	}
}

func TestGetRun_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	for _, path := range []string{
		"/api/v1/runs/nonexistent",
		"/api/v1/runs/nonexistent/summaries",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

// --- Pipeline ---

func TestExecute_Deterministic(t *testing.T) {
	cfg := smallConfig()

	first, err := run.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("first execution failed: %v", err)
	}
	second, err := run.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("second execution failed: %v", err)
	}

	if !first.Realized.AnnualReturn.Equal(second.Realized.AnnualReturn) {
		t.Errorf("realized return differs across identically seeded runs: %v vs %v",
			first.Realized.AnnualReturn, second.Realized.AnnualReturn)
	}
	if len(first.Summaries) != len(second.Summaries) {
		t.Fatalf("summary counts differ: %d vs %d", len(first.Summaries), len(second.Summaries))
	}
	for i := range first.Summaries {
		a, b := first.Summaries[i], second.Summaries[i]
		if !a.MeanExcessReturn.Equal(b.MeanExcessReturn) ||
			!a.StdDevExcessReturn.Equal(b.StdDevExcessReturn) ||
			a.InTheMoney != b.InTheMoney {
			t.Errorf("summary %d differs across identically seeded runs", i)
		}
	}
}

func TestExecute_CorrectVolatilityHedgesBest(t *testing.T) {
	// Hedging with deltas from the path-generating volatility should leave
	// less slippage dispersion than hedging with a badly misestimated one.
	cfg := model.RunConfig{
		InitialPrice:       100,
		AnnualDrift:        0.15,
		AnnualVolatility:   0.15,
		TradingDaysPerYear: 260,
		HorizonDays:        25,
		AssetCount:         250,
		Strikes:            []float64{100},
		VolScenarios:       []float64{0.10, 0.15},
		LotSizes:           []float64{0},
		RiskFreeRate:       0.05,
		Seed:               42,
	}

	result, err := run.Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("execution failed: %v", err)
	}
	if len(result.Summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(result.Summaries))
	}

	byScenario := make(map[float64]model.ScenarioSummary, 2)
	for _, s := range result.Summaries {
		byScenario[s.VolScenario] = s
	}
	mishedged := byScenario[0.10].StdDevExcessReturn
	hedged := byScenario[0.15].StdDevExcessReturn
	if hedged.GreaterThan(mishedged) {
		t.Errorf("hedging at the generating volatility should not be worse: σ=0.15 stddev %v > σ=0.10 stddev %v",
			hedged, mishedged)
	}
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := run.Execute(ctx, smallConfig()); err == nil {
		t.Error("expected error when the context is already cancelled")
	}
}
