package domain

import (
	"errors"
	"fmt"
)

// AmbiguousBarPolicy decides the exit when a single bar's range touches
// both target and stop and true intrabar order is unknowable.
type AmbiguousBarPolicy string

// Ambiguous-bar policy constants.
const (
	// PolicyConservative treats STOP as hit before TARGET. This is a
	// deliberate pessimistic bias and the default.
	PolicyConservative AmbiguousBarPolicy = "conservative"

	// PolicyProportional draws the outcome from a deterministic
	// per-trade RNG, weighted by boundary proximity to the bar open.
	// Intended for statistical studies only.
	PolicyProportional AmbiguousBarPolicy = "proportional"
)

// Configuration errors. All are fatal at simulation start.
var (
	ErrConfigConcurrency  = errors.New("max concurrent positions must be positive")
	ErrConfigPerTradeCash = errors.New("per-trade cash must be positive")
	ErrConfigBudget       = errors.New("budget must cover at least one per-trade allocation")
	ErrConfigLag          = errors.New("execution lag must be at least one bar")
	ErrConfigTimeLimit    = errors.New("default time limit must be positive")
	ErrConfigPolicy       = errors.New("unknown ambiguous-bar policy")
	ErrConfigAdverseR     = errors.New("max daily adverse R must be negative or zero (disabled)")
)

// SimulationConfig holds all knobs of one simulation run.
type SimulationConfig struct {
	RunID string // optional; derived from the config hash when empty

	// Admission caps.
	MaxConcurrent int     // open + pending positions at any instant
	PerTradeCash  float64 // cash allocated per admitted candidate
	Budget        float64 // total committable cash across open positions

	// Daily risk limits. Zero disables the respective limit.
	MaxDailyStops    int     // STOP exits per day before blocking
	MaxDailyAdverseR float64 // block when day's cumulative R <= this (negative)

	// Execution.
	AmbiguousBarPolicy AmbiguousBarPolicy
	ExecutionLagBars   int // bars between signal evaluation and entry, >= 1

	// Sizing.
	AllowFractional     bool
	FractionalPrecision int // decimal places in fractional mode

	// DefaultTimeLimitBars applies to signals that carry no limit.
	DefaultTimeLimitBars int

	// AllowMultiplePerInstrument lifts the one-open-position-per-
	// instrument rule.
	AllowMultiplePerInstrument bool

	// FlattenOnBlock closes remaining open positions at the first bar
	// close after a daily block fires, with reason DAILY_RISK_STOP.
	// Default keeps them managed to their normal exits.
	FlattenOnBlock bool
}

// Validate fails fast on configuration errors, before any event is
// processed. Row-level data problems are handled elsewhere; a bad
// config is a programming error, not noisy market data.
func (c *SimulationConfig) Validate() error {
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: got %d", ErrConfigConcurrency, c.MaxConcurrent)
	}
	if c.PerTradeCash <= 0 {
		return fmt.Errorf("%w: got %g", ErrConfigPerTradeCash, c.PerTradeCash)
	}
	if c.Budget < c.PerTradeCash {
		return fmt.Errorf("%w: budget=%g per-trade=%g", ErrConfigBudget, c.Budget, c.PerTradeCash)
	}
	if c.ExecutionLagBars < 1 {
		return fmt.Errorf("%w: got %d", ErrConfigLag, c.ExecutionLagBars)
	}
	if c.DefaultTimeLimitBars <= 0 {
		return fmt.Errorf("%w: got %d", ErrConfigTimeLimit, c.DefaultTimeLimitBars)
	}
	if c.MaxDailyAdverseR > 0 {
		return fmt.Errorf("%w: got %g", ErrConfigAdverseR, c.MaxDailyAdverseR)
	}
	switch c.AmbiguousBarPolicy {
	case PolicyConservative, PolicyProportional:
	default:
		return fmt.Errorf("%w: %q", ErrConfigPolicy, c.AmbiguousBarPolicy)
	}
	return nil
}

// DefaultConfig returns a runnable baseline configuration.
func DefaultConfig() SimulationConfig {
	return SimulationConfig{
		MaxConcurrent:        3,
		PerTradeCash:         10_000,
		Budget:               30_000,
		MaxDailyStops:        2,
		MaxDailyAdverseR:     -3,
		AmbiguousBarPolicy:   PolicyConservative,
		ExecutionLagBars:     1,
		FractionalPrecision:  4,
		DefaultTimeLimitBars: 20,
	}
}
