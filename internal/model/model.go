// Package model defines the core domain types shared across the hedge engine.
// Simulation math is done in float64; persisted and reported statistics are
// converted to shopspring/decimal at the boundary and rounded to StatScale.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StatScale is the number of decimal places for persisted/reported statistics.
var StatScale int32 = 8

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ErrInvalidParameter is returned when a run configuration contains a
// non-positive price, volatility, time scale, or malformed list.
var ErrInvalidParameter = errors.New("model: invalid parameter")

// RunConfig is the full configuration surface for one simulation run.
// The zero value of any field is replaced by the reference-scenario default
// in ApplyDefaults; Seed 0 is a valid (and the default) seed.
type RunConfig struct {
	InitialPrice       float64   `json:"initial_price"`
	AnnualDrift        float64   `json:"annual_drift"`
	AnnualVolatility   float64   `json:"annual_volatility"` // volatility generating the paths
	TradingDaysPerYear int       `json:"trading_days_per_year"`
	HorizonDays        int       `json:"horizon_days"`
	AssetCount         int       `json:"asset_count"`
	Strikes            []float64 `json:"strikes"`
	VolScenarios       []float64 `json:"volatility_scenarios"` // assumed by the hedger, may differ from AnnualVolatility
	LotSizes           []float64 `json:"lot_sizes"`            // 0 = continuous hedging
	RiskFreeRate       float64   `json:"risk_free_rate"`
	DividendYield      float64   `json:"dividend_yield"`
	Seed               uint64    `json:"seed"`
}

// Reference-scenario defaults.
var (
	DefaultStrikes      = []float64{97, 100, 103, 105}
	DefaultVolScenarios = []float64{0.10, 0.13, 0.15, 0.17, 0.20}
	DefaultLotSizes     = []float64{0, 0.2, 0.5}
)

const (
	DefaultInitialPrice       = 100.0
	DefaultAnnualDrift        = 0.15
	DefaultAnnualVolatility   = 0.15
	DefaultTradingDaysPerYear = 260
	DefaultHorizonDays        = 25
	DefaultAssetCount         = 250
	DefaultRiskFreeRate       = 0.05
)

// ApplyDefaults fills zero-valued fields with the reference-scenario
// defaults. Slices are copied so callers cannot mutate the shared defaults.
func (c *RunConfig) ApplyDefaults() {
	if c.InitialPrice == 0 {
		c.InitialPrice = DefaultInitialPrice
	}
	if c.AnnualDrift == 0 {
		c.AnnualDrift = DefaultAnnualDrift
	}
	if c.AnnualVolatility == 0 {
		c.AnnualVolatility = DefaultAnnualVolatility
	}
	if c.TradingDaysPerYear == 0 {
		c.TradingDaysPerYear = DefaultTradingDaysPerYear
	}
	if c.HorizonDays == 0 {
		c.HorizonDays = DefaultHorizonDays
	}
	if c.AssetCount == 0 {
		c.AssetCount = DefaultAssetCount
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = DefaultRiskFreeRate
	}
	if len(c.Strikes) == 0 {
		c.Strikes = append([]float64(nil), DefaultStrikes...)
	}
	if len(c.VolScenarios) == 0 {
		c.VolScenarios = append([]float64(nil), DefaultVolScenarios...)
	}
	if len(c.LotSizes) == 0 {
		c.LotSizes = append([]float64(nil), DefaultLotSizes...)
	}
}

// Validate checks the configuration. Drift may be any real above -100%;
// everything that enters a log, sqrt, or division must be strictly positive.
// The horizon needs at least two observations so every path carries a
// daily return.
func (c *RunConfig) Validate() error {
	switch {
	case c.InitialPrice <= 0:
		return fmt.Errorf("%w: initial_price must be positive, got %v", ErrInvalidParameter, c.InitialPrice)
	case c.AnnualVolatility <= 0:
		return fmt.Errorf("%w: annual_volatility must be positive, got %v", ErrInvalidParameter, c.AnnualVolatility)
	case c.TradingDaysPerYear <= 0:
		return fmt.Errorf("%w: trading_days_per_year must be positive, got %d", ErrInvalidParameter, c.TradingDaysPerYear)
	case c.HorizonDays < 2:
		return fmt.Errorf("%w: horizon_days must be at least 2, got %d", ErrInvalidParameter, c.HorizonDays)
	case c.AssetCount <= 0:
		return fmt.Errorf("%w: asset_count must be positive, got %d", ErrInvalidParameter, c.AssetCount)
	case c.AnnualDrift <= -1:
		return fmt.Errorf("%w: annual_drift must exceed -1, got %v", ErrInvalidParameter, c.AnnualDrift)
	case c.DividendYield < 0:
		return fmt.Errorf("%w: dividend_yield must be non-negative, got %v", ErrInvalidParameter, c.DividendYield)
	}
	for _, k := range c.Strikes {
		if k <= 0 {
			return fmt.Errorf("%w: strike must be positive, got %v", ErrInvalidParameter, k)
		}
	}
	for _, v := range c.VolScenarios {
		if v <= 0 {
			return fmt.Errorf("%w: volatility scenario must be positive, got %v", ErrInvalidParameter, v)
		}
	}
	for _, l := range c.LotSizes {
		if l < 0 {
			return fmt.Errorf("%w: lot_size must be non-negative, got %v", ErrInvalidParameter, l)
		}
	}
	return nil
}

// DailyRate returns the simple daily financing rate used in the hedging
// excess-return recursion.
func (c *RunConfig) DailyRate() float64 {
	return c.RiskFreeRate / float64(c.TradingDaysPerYear)
}

// PricePath is one asset's ordered daily close prices. Index 0 is the
// initial price and the length is HorizonDays, so the final observed day
// still has one day of option life remaining. Treated as read-only once
// generated.
type PricePath []float64

// Final returns the last observed price.
func (p PricePath) Final() float64 {
	return p[len(p)-1]
}

// OptionSeries holds the per-day BSM call price and delta for one
// (asset, strike, volatility-scenario) combination. Derived from a
// PricePath on demand; holds no back-reference to it.
type OptionSeries struct {
	Prices []float64 `json:"prices"`
	Deltas []float64 `json:"deltas"`
}

// ExcessReturnSeries is the day-by-day hedging slippage for one
// asset/strike/scenario/lot combination. Daily[0] is always 0: there is no
// prior position to mark against on day 0.
type ExcessReturnSeries struct {
	Daily []float64 `json:"daily"`
	Sum   float64   `json:"sum"`
}

// RunRecord is the persisted header of one simulation run.
type RunRecord struct {
	ID          string     `json:"id" db:"id"`
	Status      string     `json:"status" db:"status"` // "running", "completed", "failed"
	Config      RunConfig  `json:"config" db:"config"`
	Error       string     `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// ScenarioSummary is the persisted aggregate for one
// (strike, volatility-scenario, lot-size) cell of a run: statistics of the
// per-asset cumulative hedging excess returns, plus in-the-money statistics
// of the terminal payoffs at that strike.
type ScenarioSummary struct {
	RunID       string  `json:"run_id" db:"run_id"`
	Strike      float64 `json:"strike" db:"strike"`
	VolScenario float64 `json:"volatility_scenario" db:"volatility_scenario"`
	LotSize     float64 `json:"lot_size" db:"lot_size"`
	AssetCount  int     `json:"asset_count" db:"asset_count"`
	InTheMoney  int     `json:"in_the_money" db:"in_the_money"`

	MeanExcessReturn   decimal.Decimal `json:"mean_excess_return" db:"mean_excess_return"`
	StdDevExcessReturn decimal.Decimal `json:"stddev_excess_return" db:"stddev_excess_return"`
	AnnualizedStdDev   decimal.Decimal `json:"annualized_stddev" db:"annualized_stddev"`
	MeanITMPayoff      decimal.Decimal `json:"mean_itm_payoff" db:"mean_itm_payoff"`
	PayoffStdDev       decimal.Decimal `json:"payoff_stddev" db:"payoff_stddev"`
}

// Stat converts an internal float64 statistic to its reporting form.
func Stat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(StatScale)
}
