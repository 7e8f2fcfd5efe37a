package domain

// PositionState tracks the per-position lifecycle.
// PENDING_ENTRY -> OPEN -> CLOSED, CLOSED is terminal.
type PositionState string

// Position state constants.
const (
	PositionPendingEntry PositionState = "PENDING_ENTRY"
	PositionOpen         PositionState = "OPEN"
	PositionClosed       PositionState = "CLOSED"
)

// Position is an admitted trade awaiting or holding exposure.
// Created by the admission controller, mutated only by the simulator's
// close path. Positions close atomically; there are no partial exits.
type Position struct {
	SignalID   string // opened-by-signal reference
	Instrument string
	Side       Side
	State      PositionState

	SignalTimeMs int64 // originating signal's as-of timestamp (ms)

	EntryTimeMs int64   // actual entry bar timestamp (ms)
	EntryPrice  float64 // actual fill price (entry bar open)
	Quantity    float64
	Target      float64
	Stop        float64

	// Time limit resolved from the signal (or the run default).
	TimeLimitBars int
	TimeLimitMs   int64

	// CommittedCash is the budget reserved for this position while it
	// is pending or open. Freed when the position closes.
	CommittedCash float64
}

// RiskDistance returns the absolute entry-to-stop distance.
func (p *Position) RiskDistance() float64 {
	if p.Side == SideLong {
		return p.EntryPrice - p.Stop
	}
	return p.Stop - p.EntryPrice
}
