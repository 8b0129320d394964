// Package hedge computes the day-by-day excess return of a delta-hedged
// option position: the mismatch between the option's mark-to-market change
// and the change of the self-financing hedge portfolio (stock plus
// financing) held against it. Under frictionless BSM assumptions the excess
// return is zero in expectation; discrete rebalancing, lot-size rounding,
// and volatility misspecification all show up as dispersion here.
package hedge

import (
	"math"

	"github.com/hedgelab/hedge-engine/internal/model"
)

// RoundToLot rounds a hedge ratio to the nearest multiple of lotSize.
// lotSize <= 0 means shares are infinitely divisible: the ratio is used
// as-is (continuous hedging).
func RoundToLot(delta, lotSize float64) float64 {
	if lotSize <= 0 {
		return delta
	}
	return lotSize * math.Round(delta/lotSize)
}

// ExcessReturns computes the daily hedging excess return for one
// asset/strike/scenario/lot combination:
//
//	ER[t] = (C[t] - C[t-1]) - h[t-1]·(P[t] - P[t-1]) - r·(C[t-1] - h[t-1]·P[t-1])
//
// where h is the (optionally lot-rounded) delta held from the prior day and
// r is the simple daily financing rate. ER[0] is 0 by definition: there is
// no prior hedge to mark against on day 0.
func ExcessReturns(series model.OptionSeries, path model.PricePath, dailyRate, lotSize float64) model.ExcessReturnSeries {
	n := len(path)
	daily := make([]float64, n)

	var sum float64
	for t := 1; t < n; t++ {
		h := RoundToLot(series.Deltas[t-1], lotSize)
		er := (series.Prices[t] - series.Prices[t-1]) -
			h*(path[t]-path[t-1]) -
			dailyRate*(series.Prices[t-1]-h*path[t-1])
		daily[t] = er
		sum += er
	}

	return model.ExcessReturnSeries{Daily: daily, Sum: sum}
}

// CumulativeByAsset runs ExcessReturns over every asset in a grid cell and
// returns each asset's cumulative (summed) excess return.
func CumulativeByAsset(cell []model.OptionSeries, paths []model.PricePath, dailyRate, lotSize float64) []float64 {
	sums := make([]float64, len(cell))
	for i, series := range cell {
		sums[i] = ExcessReturns(series, paths[i], dailyRate, lotSize).Sum
	}
	return sums
}
