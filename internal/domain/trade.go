package domain

// ClosedTrade is one row of the simulator's output ledger.
// Immutable once appended.
type ClosedTrade struct {
	TradeID  string // deterministic hash
	RunID    string // owning simulation run
	SignalID string // originating candidate signal

	Instrument string
	Side       Side

	// Entry
	SignalTimeMs int64   // candidate as-of timestamp (ms)
	EntryTimeMs  int64   // actual entry bar timestamp (ms)
	EntryPrice   float64 // entry bar open
	Quantity     float64
	Target       float64
	Stop         float64

	// Exit
	ExitTimeMs int64
	ExitPrice  float64
	ExitReason string

	// Outcome
	PnL       float64 // realized, signed
	RMultiple float64 // PnL / (quantity * risk distance)

	// Degenerate marks trades that could not be executed normally
	// (no bars after entry, zero sizeable quantity). Flagged, never
	// hidden, so downstream metrics stay auditable.
	Degenerate bool
}

// Exit reason codes.
const (
	ExitReasonTarget        = "TARGET"
	ExitReasonStop          = "STOP"
	ExitReasonTimeLimit     = "TIME_LIMIT"
	ExitReasonDailyRiskStop = "DAILY_RISK_STOP"
)

// Day returns the UTC calendar day the trade closed on.
func (t *ClosedTrade) Day() string {
	return DayKey(t.ExitTimeMs)
}

// Win reports whether the trade realized a positive PnL.
func (t *ClosedTrade) Win() bool {
	return t.PnL > 0
}
