// Package exits determines which boundary an open position touches
// first: target, stop, or its time limit.
package exits

import (
	"errors"
	"fmt"
	"math/rand"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/idhash"
)

// Resolver errors. Level violations indicate a programming error
// upstream of the resolver and abort the run.
var (
	ErrInvalidLevels = errors.New("position stop/target on wrong side of entry")
	ErrNoQuantity    = errors.New("position has no quantity")
)

// Resolution is the outcome of scanning a position against bars.
type Resolution struct {
	ExitTimeMs int64
	ExitPrice  float64
	Reason     string
	Degenerate bool // no bars were available after entry
}

// Resolver applies first-touch exit logic using bar highs and lows.
type Resolver struct {
	policy domain.AmbiguousBarPolicy
}

// NewResolver creates a resolver with the given ambiguous-bar policy.
func NewResolver(policy domain.AmbiguousBarPolicy) *Resolver {
	if policy == "" {
		policy = domain.PolicyConservative
	}
	return &Resolver{policy: policy}
}

// Resolve scans bars in timestamp order and returns the first boundary
// touch, bounded by the position's time limit. bars[0] must be the
// entry bar: its range is checked first, since the opening bar may
// already imply an immediate stop or target touch after the open fill.
//
// With zero bars the position exits at its entry price with reason
// TIME_LIMIT and the degenerate flag set.
func (r *Resolver) Resolve(p *domain.Position, bars []domain.Bar) (Resolution, error) {
	if err := r.validate(p); err != nil {
		return Resolution{}, err
	}

	if len(bars) == 0 {
		return Resolution{
			ExitTimeMs: p.EntryTimeMs,
			ExitPrice:  p.EntryPrice,
			Reason:     domain.ExitReasonTimeLimit,
			Degenerate: true,
		}, nil
	}

	for held, bar := range bars {
		res, done := r.step(p, bar, held)
		if done {
			return res, nil
		}
	}

	// No boundary touched and the limit never elapsed inside the
	// available data: exit at the close of the last eligible bar.
	last := bars[len(bars)-1]
	return Resolution{
		ExitTimeMs: last.TimestampMs,
		ExitPrice:  last.Close,
		Reason:     domain.ExitReasonTimeLimit,
	}, nil
}

// Step advances a position by a single bar. held is the number of bars
// already seen since entry (0 for the entry bar itself). Used by the
// paper session, which receives bars incrementally instead of holding
// the whole future series.
func (r *Resolver) Step(p *domain.Position, bar domain.Bar, held int) (Resolution, bool, error) {
	if err := r.validate(p); err != nil {
		return Resolution{}, false, err
	}
	res, done := r.step(p, bar, held)
	return res, done, nil
}

func (r *Resolver) validate(p *domain.Position) error {
	switch p.Side {
	case domain.SideLong:
		if !(p.Stop < p.EntryPrice && p.EntryPrice < p.Target) {
			return fmt.Errorf("%w: LONG stop=%g entry=%g target=%g",
				ErrInvalidLevels, p.Stop, p.EntryPrice, p.Target)
		}
	case domain.SideShort:
		if !(p.Target < p.EntryPrice && p.EntryPrice < p.Stop) {
			return fmt.Errorf("%w: SHORT target=%g entry=%g stop=%g",
				ErrInvalidLevels, p.Target, p.EntryPrice, p.Stop)
		}
	default:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidLevels, p.Side)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: signal %s", ErrNoQuantity, p.SignalID)
	}
	return nil
}

func (r *Resolver) step(p *domain.Position, bar domain.Bar, held int) (Resolution, bool) {
	var touchTarget, touchStop bool
	if p.Side == domain.SideLong {
		touchTarget = bar.High >= p.Target
		touchStop = bar.Low <= p.Stop
	} else {
		touchTarget = bar.Low <= p.Target
		touchStop = bar.High >= p.Stop
	}

	switch {
	case touchTarget && touchStop:
		// The bar range spans both boundaries; true intrabar order is
		// unknowable from OHLC data alone.
		if r.stopFirst(p, bar) {
			return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: p.Stop, Reason: domain.ExitReasonStop}, true
		}
		return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: p.Target, Reason: domain.ExitReasonTarget}, true
	case touchStop:
		return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: p.Stop, Reason: domain.ExitReasonStop}, true
	case touchTarget:
		return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: p.Target, Reason: domain.ExitReasonTarget}, true
	}

	// Time limits count bars strictly after entry; the entry bar is
	// held == 0 and never triggers a bar-count exit.
	if p.TimeLimitBars > 0 && held >= p.TimeLimitBars {
		return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: bar.Close, Reason: domain.ExitReasonTimeLimit}, true
	}
	if p.TimeLimitMs > 0 && held > 0 && bar.TimestampMs-p.EntryTimeMs >= p.TimeLimitMs {
		return Resolution{ExitTimeMs: bar.TimestampMs, ExitPrice: bar.Close, Reason: domain.ExitReasonTimeLimit}, true
	}

	return Resolution{}, false
}

// stopFirst decides the ambiguous-bar outcome.
func (r *Resolver) stopFirst(p *domain.Position, bar domain.Bar) bool {
	if r.policy == domain.PolicyConservative {
		return true
	}

	// Proportional tie-break: the boundary closer to the bar open is
	// the more likely first touch. Seeded per (signal, bar) so runs
	// stay reproducible.
	dStop := absDiff(bar.Open, p.Stop)
	dTarget := absDiff(bar.Open, p.Target)
	total := dStop + dTarget
	pStop := 0.5
	if total > 0 {
		pStop = dTarget / total
	}

	rng := rand.New(rand.NewSource(idhash.TieBreakSeed(p.SignalID, bar.TimestampMs)))
	return rng.Float64() < pStop
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
