// Package grid applies the BSM pricer across every (asset, day, strike,
// volatility-scenario) combination of a simulation run, producing the
// option price and delta tensors the hedging stage consumes.
package grid

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hedgelab/hedge-engine/internal/bsm"
	"github.com/hedgelab/hedge-engine/internal/model"
)

// Key identifies one (strike, volatility-scenario) cell of the grid.
type Key struct {
	Strike      float64
	VolScenario float64
}

// Grid maps each (strike, scenario) cell to one OptionSeries per asset,
// indexed by asset.
type Grid map[Key][]model.OptionSeries

// Build prices every cell of the grid. Day j of an H-day path is priced
// with time to expiry (H-j)/tradingDaysPerYear years, so the final observed
// day is priced with one trading day of option life remaining — never with
// T = 0. This convention is part of the output contract.
//
// Work is partitioned across workers by asset index; each asset's series
// occupy distinct slots, so workers never contend.
func Build(
	ctx context.Context,
	paths []model.PricePath,
	strikes, scenarios []float64,
	rate, dividendYield float64,
	tradingDaysPerYear int,
) (Grid, error) {
	g := make(Grid, len(strikes)*len(scenarios))
	for _, k := range strikes {
		for _, v := range scenarios {
			g[Key{Strike: k, VolScenario: v}] = make([]model.OptionSeries, len(paths))
		}
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(paths) {
		workers = len(paths)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		eg.Go(func() error {
			for i := w; i < len(paths); i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := priceAsset(g, i, paths[i], strikes, scenarios, rate, dividendYield, tradingDaysPerYear); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return g, nil
}

// priceAsset fills every (strike, scenario) series for one asset.
func priceAsset(
	g Grid,
	asset int,
	path model.PricePath,
	strikes, scenarios []float64,
	rate, dividendYield float64,
	tradingDaysPerYear int,
) error {
	horizon := len(path)
	for _, k := range strikes {
		for _, v := range scenarios {
			series := model.OptionSeries{
				Prices: make([]float64, horizon),
				Deltas: make([]float64, horizon),
			}
			for j := 0; j < horizon; j++ {
				timeToExpiry := float64(horizon-j) / float64(tradingDaysPerYear)
				price, delta, err := bsm.Price(path[j], k, rate, v, dividendYield, timeToExpiry)
				if err != nil {
					return err
				}
				series.Prices[j] = price
				series.Deltas[j] = delta
			}
			g[Key{Strike: k, VolScenario: v}][asset] = series
		}
	}
	return nil
}
