// Package stats provides the pure reducers applied to simulation outputs:
// means, population dispersion, annualization scaling, and in-the-money
// summaries. Statistics over an empty collection are undefined and fail
// with ErrEmptyInput rather than returning NaN.
package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned when a statistic is requested over no data.
var ErrEmptyInput = errors.New("stats: empty input")

// Summary is the basic aggregate over a collection of values.
type Summary struct {
	Mean   float64
	StdDev float64 // population standard deviation
	Count  int
}

// Aggregate computes mean, population standard deviation, and count.
// A single-element collection has standard deviation 0.
func Aggregate(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, ErrEmptyInput
	}
	return Summary{
		Mean:   stat.Mean(values, nil),
		StdDev: stat.PopStdDev(values, nil),
		Count:  len(values),
	}, nil
}

// Mean returns the arithmetic mean.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	return stat.Mean(values, nil), nil
}

// PopStdDev returns the population standard deviation.
func PopStdDev(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptyInput
	}
	return stat.PopStdDev(values, nil), nil
}

// AnnualizeReturn scales a horizon-period return to an annual rate.
func AnnualizeReturn(r float64, tradingDaysPerYear, horizonDays int) float64 {
	return r * float64(tradingDaysPerYear) / float64(horizonDays)
}

// AnnualizeVolatility scales a horizon-period dispersion to an annual rate.
func AnnualizeVolatility(v float64, tradingDaysPerYear, horizonDays int) float64 {
	return v * math.Sqrt(float64(tradingDaysPerYear)/float64(horizonDays))
}

// ITMSummary describes the terminal in-the-money outcomes for one strike.
type ITMSummary struct {
	Count         int     // assets finishing above the strike
	MeanPayoff    float64 // mean payoff given in-the-money; 0 when Count is 0
	PayoffStdDev  float64 // population stddev of the indicator-weighted payoff
	TotalObserved int
}

// InTheMoney partitions terminal prices against a strike. The payoff
// max(final-strike, 0) is zero out-of-the-money, so PayoffStdDev is taken
// over all observations while MeanPayoff conditions on the ITM subset.
func InTheMoney(finalPrices []float64, strike float64) (ITMSummary, error) {
	if len(finalPrices) == 0 {
		return ITMSummary{}, ErrEmptyInput
	}

	payoffs := make([]float64, len(finalPrices))
	var itm []float64
	for i, p := range finalPrices {
		if p > strike {
			payoffs[i] = p - strike
			itm = append(itm, payoffs[i])
		}
	}

	s := ITMSummary{
		Count:         len(itm),
		PayoffStdDev:  stat.PopStdDev(payoffs, nil),
		TotalObserved: len(finalPrices),
	}
	if len(itm) > 0 {
		s.MeanPayoff = stat.Mean(itm, nil)
	}
	return s, nil
}
