// Package bsm implements Black-Scholes-Merton pricing for European call
// options under constant volatility and geometric Brownian motion.
//
// Pricing is a pure function of its inputs:
//
//	d1 = (ln(S/K) + (r - q + σ²/2)·T) / (σ·√T)
//	d2 = d1 - σ·√T
//	C  = S·e^(-qT)·Φ(d1) - K·e^(-rT)·Φ(d2)
//	Δ  = Φ(d1)
//
// Φ is the standard normal CDF from gonum's distuv. T = 0 is special-cased
// to the intrinsic value so the formula's division by σ·√T never produces
// NaN; invalid inputs are rejected with errors instead of propagating Inf.
package bsm

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrInvalidSpot is returned when the spot price is not positive.
	ErrInvalidSpot = errors.New("bsm: spot must be positive")

	// ErrInvalidStrike is returned when the strike price is not positive.
	ErrInvalidStrike = errors.New("bsm: strike must be positive")

	// ErrInvalidVolatility is returned when volatility is zero or negative.
	ErrInvalidVolatility = errors.New("bsm: volatility must be positive")

	// ErrNegativeExpiry is returned when time to expiry is negative.
	ErrNegativeExpiry = errors.New("bsm: time to expiry must be non-negative")
)

var stdNormal = distuv.UnitNormal

// Price returns the European call price and delta for the given spot,
// strike, continuously-compounded risk-free rate, annualized volatility,
// continuous dividend yield, and time to expiry in years.
//
// At T = 0 the option is worth its intrinsic value max(S-K, 0) and delta is
// 1 above the strike, 0 below, and 0.5 at the money (the limit of Φ(d1) as
// T → 0⁺ at S = K).
func Price(spot, strike, rate, vol, dividendYield, timeToExpiry float64) (price, delta float64, err error) {
	switch {
	case spot <= 0:
		return 0, 0, ErrInvalidSpot
	case strike <= 0:
		return 0, 0, ErrInvalidStrike
	case vol <= 0:
		return 0, 0, ErrInvalidVolatility
	case timeToExpiry < 0:
		return 0, 0, ErrNegativeExpiry
	}

	if timeToExpiry == 0 {
		return intrinsic(spot, strike)
	}

	volSqrtT := vol * math.Sqrt(timeToExpiry)
	d1 := (math.Log(spot/strike) + (rate-dividendYield+0.5*vol*vol)*timeToExpiry) / volSqrtT
	d2 := d1 - volSqrtT

	delta = stdNormal.CDF(d1)
	price = spot*math.Exp(-dividendYield*timeToExpiry)*delta -
		strike*math.Exp(-rate*timeToExpiry)*stdNormal.CDF(d2)

	return price, delta, nil
}

// intrinsic is the T=0 convention: payoff value and a step-function delta.
func intrinsic(spot, strike float64) (price, delta float64, err error) {
	switch {
	case spot > strike:
		return spot - strike, 1, nil
	case spot < strike:
		return 0, 0, nil
	default:
		return 0, 0.5, nil
	}
}
