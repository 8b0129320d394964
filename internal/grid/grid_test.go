package grid

import (
	"context"
	"math"
	"testing"

	"github.com/hedgelab/hedge-engine/internal/bsm"
	"github.com/hedgelab/hedge-engine/internal/model"
)

const tradingDays = 260

func testPaths() []model.PricePath {
	return []model.PricePath{
		{100, 101.2, 99.8, 100.5, 102.1},
		{100, 98.7, 97.9, 99.2, 98.5},
	}
}

func TestBuild_Dimensions(t *testing.T) {
	paths := testPaths()
	strikes := []float64{97, 100, 103}
	scenarios := []float64{0.10, 0.15, 0.20}

	g, err := Build(context.Background(), paths, strikes, scenarios, 0.05, 0, tradingDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(g) != len(strikes)*len(scenarios) {
		t.Fatalf("expected %d cells, got %d", len(strikes)*len(scenarios), len(g))
	}
	for _, k := range strikes {
		for _, v := range scenarios {
			cell, ok := g[Key{Strike: k, VolScenario: v}]
			if !ok {
				t.Fatalf("missing cell for strike=%v scenario=%v", k, v)
			}
			if len(cell) != len(paths) {
				t.Fatalf("cell %v/%v: expected %d series, got %d", k, v, len(paths), len(cell))
			}
			for i, series := range cell {
				if len(series.Prices) != len(paths[i]) || len(series.Deltas) != len(paths[i]) {
					t.Fatalf("cell %v/%v asset %d: series length mismatch", k, v, i)
				}
			}
		}
	}
}

func TestBuild_MatchesPricerDayByDay(t *testing.T) {
	paths := testPaths()
	strikes := []float64{100}
	scenarios := []float64{0.15}

	g, err := Build(context.Background(), paths, strikes, scenarios, 0.05, 0, tradingDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cell := g[Key{Strike: 100, VolScenario: 0.15}]
	horizon := len(paths[0])
	for i, path := range paths {
		for j := 0; j < horizon; j++ {
			T := float64(horizon-j) / tradingDays
			wantPrice, wantDelta, err := bsm.Price(path[j], 100, 0.05, 0.15, 0, T)
			if err != nil {
				t.Fatalf("pricer error: %v", err)
			}
			if cell[i].Prices[j] != wantPrice || cell[i].Deltas[j] != wantDelta {
				t.Errorf("asset %d day %d: grid (%g, %g) != pricer (%g, %g)",
					i, j, cell[i].Prices[j], cell[i].Deltas[j], wantPrice, wantDelta)
			}
		}
	}
}

func TestBuild_TerminalDayKeepsOneDayOfLife(t *testing.T) {
	// The final observed day is priced with T = 1/tradingDays, never T = 0:
	// its value must strictly exceed intrinsic for an at-the-money option.
	paths := []model.PricePath{{100, 100, 100}}

	g, err := Build(context.Background(), paths, []float64{100}, []float64{0.15}, 0.05, 0, tradingDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	series := g[Key{Strike: 100, VolScenario: 0.15}][0]
	last := series.Prices[len(series.Prices)-1]
	if last <= 0 {
		t.Errorf("terminal ATM option should retain time value, got %g", last)
	}

	wantPrice, _, _ := bsm.Price(100, 100, 0.05, 0.15, 0, 1.0/tradingDays)
	if last != wantPrice {
		t.Errorf("terminal day should be priced with T=1/%d: got %g, want %g",
			tradingDays, last, wantPrice)
	}
}

func TestBuild_ATMDayZeroReferenceValue(t *testing.T) {
	// Reference scenario: S=K=100, r=5%, σ=15%, 25 trading days of life
	// gives a day-0 call worth ≈ 2.10.
	path := make(model.PricePath, 25)
	for i := range path {
		path[i] = 100
	}

	g, err := Build(context.Background(), []model.PricePath{path},
		[]float64{100}, []float64{0.15}, 0.05, 0, tradingDays)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	day0 := g[Key{Strike: 100, VolScenario: 0.15}][0].Prices[0]
	if math.Abs(day0-2.10) > 0.02 {
		t.Errorf("expected day-0 ATM price ≈ 2.10, got %f", day0)
	}
}

func TestBuild_PropagatesPricerErrors(t *testing.T) {
	paths := testPaths()

	_, err := Build(context.Background(), paths, []float64{-100}, []float64{0.15}, 0.05, 0, tradingDays)
	if err == nil {
		t.Fatal("expected error for negative strike")
	}
}
