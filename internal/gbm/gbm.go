// Package gbm generates synthetic daily price paths under geometric
// Brownian motion for a population of independent assets.
//
// Each asset draws from its own seeded generator (master seed + asset
// index), so a run is reproducible regardless of how the work is scheduled
// across workers. Sharing one generator across workers would interleave
// draws non-deterministically, which is a correctness bug here, not just a
// contention problem.
package gbm

import (
	"context"
	"errors"
	"math"
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/hedgelab/hedge-engine/internal/model"
)

var (
	// ErrInvalidInitialPrice is returned when the initial price is not positive.
	ErrInvalidInitialPrice = errors.New("gbm: initial price must be positive")

	// ErrInvalidVolatility is returned when the annual volatility is not positive.
	ErrInvalidVolatility = errors.New("gbm: annual volatility must be positive")

	// ErrInvalidTimeScale is returned when trading days per year is not
	// positive or the horizon is shorter than two observations.
	ErrInvalidTimeScale = errors.New("gbm: trading days per year must be positive and horizon at least 2 days")

	// ErrInvalidAssetCount is returned when the asset count is not positive.
	ErrInvalidAssetCount = errors.New("gbm: asset count must be positive")
)

// Params configures one path-generation run.
type Params struct {
	InitialPrice       float64
	AnnualDrift        float64 // simple annual rate; may be any real > -1
	AnnualVolatility   float64
	TradingDaysPerYear int
	HorizonDays        int // path length including the initial observation; at least 2
	AssetCount         int
	Seed               uint64
}

// ParamsFromConfig extracts the path-generation parameters from a run
// configuration.
func ParamsFromConfig(c model.RunConfig) Params {
	return Params{
		InitialPrice:       c.InitialPrice,
		AnnualDrift:        c.AnnualDrift,
		AnnualVolatility:   c.AnnualVolatility,
		TradingDaysPerYear: c.TradingDaysPerYear,
		HorizonDays:        c.HorizonDays,
		AssetCount:         c.AssetCount,
		Seed:               c.Seed,
	}
}

// Simulator generates GBM price paths. It is stateless between calls to
// Generate; all randomness derives from Params.Seed.
type Simulator struct {
	params     Params
	dailyDrift float64 // ln(1 + annual drift) / trading days
	dailyVol   float64 // annual volatility / sqrt(trading days)
}

// NewSimulator validates the parameters and returns a simulator.
func NewSimulator(p Params) (*Simulator, error) {
	switch {
	case p.InitialPrice <= 0:
		return nil, ErrInvalidInitialPrice
	case p.AnnualVolatility <= 0:
		return nil, ErrInvalidVolatility
	case p.TradingDaysPerYear <= 0 || p.HorizonDays < 2:
		return nil, ErrInvalidTimeScale
	case p.AssetCount <= 0:
		return nil, ErrInvalidAssetCount
	}

	days := float64(p.TradingDaysPerYear)
	return &Simulator{
		params:     p,
		dailyDrift: math.Log(1+p.AnnualDrift) / days,
		dailyVol:   p.AnnualVolatility / math.Sqrt(days),
	}, nil
}

// Params returns the simulator's configuration.
func (s *Simulator) Params() Params {
	return s.params
}

// Generate produces one PricePath per asset, partitioned across workers.
// path[0] is the initial price; each subsequent day multiplies by
// exp(dailyDrift + dailyVol·z) with z ~ N(0,1) from the asset's own stream.
func (s *Simulator) Generate(ctx context.Context) ([]model.PricePath, error) {
	paths := make([]model.PricePath, s.params.AssetCount)

	workers := runtime.GOMAXPROCS(0)
	if workers > s.params.AssetCount {
		workers = s.params.AssetCount
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < s.params.AssetCount; i += workers {
				if err := ctx.Err(); err != nil {
					return err
				}
				paths[i] = s.generatePath(uint64(i))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// generatePath simulates one asset using a generator seeded as a function
// of the master seed and the asset index.
func (s *Simulator) generatePath(assetIndex uint64) model.PricePath {
	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewSource(s.params.Seed + assetIndex),
	}

	path := make(model.PricePath, s.params.HorizonDays)
	path[0] = s.params.InitialPrice
	for t := 1; t < s.params.HorizonDays; t++ {
		path[t] = path[t-1] * math.Exp(s.dailyDrift+s.dailyVol*normal.Rand())
	}
	return path
}

// RealizedAnnualReturn is the mean simple return over the horizon scaled to
// an annual rate. Used to sanity-check the generator against the
// theoretical drift, not part of the hedging pipeline.
func RealizedAnnualReturn(paths []model.PricePath, p Params) float64 {
	if len(paths) == 0 {
		return 0
	}
	returns := make([]float64, len(paths))
	for i, path := range paths {
		returns[i] = path.Final()/path[0] - 1
	}
	return stat.Mean(returns, nil) * float64(p.TradingDaysPerYear) / float64(p.HorizonDays)
}

// RealizedAnnualVolatility is the mean per-asset dispersion of daily log
// returns scaled by sqrt(tradingDays/horizon). Sanity check only. Paths
// shorter than two observations carry no returns and yield 0 rather than
// a NaN that would poison downstream decimal conversion.
func RealizedAnnualVolatility(paths []model.PricePath, p Params) float64 {
	if len(paths) == 0 || len(paths[0]) < 2 {
		return 0
	}
	stddevs := make([]float64, len(paths))
	for i, path := range paths {
		logReturns := make([]float64, len(path)-1)
		for t := 1; t < len(path); t++ {
			logReturns[t-1] = math.Log(path[t] / path[t-1])
		}
		stddevs[i] = stat.PopStdDev(logReturns, nil)
	}
	return stat.Mean(stddevs, nil) * math.Sqrt(float64(p.TradingDaysPerYear)/float64(p.HorizonDays))
}
