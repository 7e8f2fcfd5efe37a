// Package reporting renders stored runs into human-readable summaries.
package reporting

import "time"

// Report is the rendered view of every stored run.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	RunCount    int

	// Data Summary
	DataSummary DataSummary

	// Run Metrics (sorted by run_id)
	RunMetrics []RunMetricRow

	// Exit Breakdown (sorted by run_id)
	ExitBreakdown []ExitBreakdownRow

	// Instrument Breakdown (sorted by run_id, instrument)
	InstrumentBreakdown []InstrumentBreakdownRow
}

// DataSummary describes the inputs behind the stored runs.
type DataSummary struct {
	TotalSignals   int
	TotalTrades    int
	DateRangeStart int64 // Unix ms, earliest signal as-of
	DateRangeEnd   int64 // Unix ms, latest signal as-of
}

// RunMetricRow is one row in the run metrics table.
type RunMetricRow struct {
	RunID                string
	TotalTrades          int
	Wins                 int
	Losses               int
	WinRate              float64
	NetPnL               float64
	ProfitFactor         float64
	Expectancy           float64
	RMedian              float64
	RP10                 float64
	RP90                 float64
	MaxDrawdown          float64
	MaxConsecutiveLosses int
	DegenerateTrades     int
}

// ExitBreakdownRow counts exits by reason for one run.
type ExitBreakdownRow struct {
	RunID          string
	TargetExits    int
	StopExits      int
	TimeLimitExits int
	RiskStopExits  int
}

// InstrumentBreakdownRow summarizes one instrument within one run.
type InstrumentBreakdownRow struct {
	RunID      string
	Instrument string
	Trades     int
	Wins       int
	NetPnL     float64
}
