package metrics

import (
	"math"
	"testing"

	"equity-signal-lab/internal/domain"
)

func mktrade(id string, exitMs int64, pnl, r float64, reason string) *domain.ClosedTrade {
	return &domain.ClosedTrade{
		TradeID:    id,
		RunID:      "run-1",
		SignalID:   "sig-" + id,
		Instrument: "AAPL",
		Side:       domain.SideLong,
		ExitTimeMs: exitMs,
		PnL:        pnl,
		RMultiple:  r,
		ExitReason: reason,
	}
}

func TestComputeFromTrades_Counts(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 200, 2.0, domain.ExitReasonTarget),
		mktrade("b", 2000, -100, -1.0, domain.ExitReasonStop),
		mktrade("c", 3000, 50, 0.5, domain.ExitReasonTimeLimit),
		mktrade("d", 4000, -100, -1.0, domain.ExitReasonStop),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.TotalTrades != 4 {
		t.Errorf("TotalTrades = %d, want 4", agg.TotalTrades)
	}
	if agg.Wins != 2 || agg.Losses != 2 {
		t.Errorf("Wins/Losses = %d/%d, want 2/2", agg.Wins, agg.Losses)
	}
	if agg.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", agg.WinRate)
	}
	if agg.TargetExits != 1 || agg.StopExits != 2 || agg.TimeLimitExits != 1 {
		t.Errorf("exit counts = %d/%d/%d, want 1/2/1",
			agg.TargetExits, agg.StopExits, agg.TimeLimitExits)
	}
	if agg.NetPnL != 50 {
		t.Errorf("NetPnL = %v, want 50", agg.NetPnL)
	}
}

func TestComputeFromTrades_ProfitFactor(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 300, 3.0, domain.ExitReasonTarget),
		mktrade("b", 2000, -100, -1.0, domain.ExitReasonStop),
		mktrade("c", 3000, -50, -0.5, domain.ExitReasonStop),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.GrossProfit != 300 {
		t.Errorf("GrossProfit = %v, want 300", agg.GrossProfit)
	}
	if agg.GrossLoss != 150 {
		t.Errorf("GrossLoss = %v, want 150", agg.GrossLoss)
	}
	if agg.ProfitFactor != 2.0 {
		t.Errorf("ProfitFactor = %v, want 2.0", agg.ProfitFactor)
	}
}

func TestComputeFromTrades_ProfitFactorNoLosses(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 100, 1.0, domain.ExitReasonTarget),
	}

	agg := computeFromTrades("run-1", trades)

	if !math.IsInf(agg.ProfitFactor, 1) {
		t.Errorf("ProfitFactor = %v, want +Inf when all trades win", agg.ProfitFactor)
	}
}

func TestComputeFromTrades_MaxDrawdown(t *testing.T) {
	// Cumulative PnL: 100, 300, 200, 50, 150. Peak 300, trough 50.
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 100, 1.0, domain.ExitReasonTarget),
		mktrade("b", 2000, 200, 2.0, domain.ExitReasonTarget),
		mktrade("c", 3000, -100, -1.0, domain.ExitReasonStop),
		mktrade("d", 4000, -150, -1.5, domain.ExitReasonStop),
		mktrade("e", 5000, 100, 1.0, domain.ExitReasonTarget),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.MaxDrawdown != 250 {
		t.Errorf("MaxDrawdown = %v, want 250", agg.MaxDrawdown)
	}
}

func TestComputeFromTrades_DrawdownUsesCloseOrder(t *testing.T) {
	// Same trades in scrambled input order must produce the same
	// drawdown: the computation sorts by exit time first.
	trades := []*domain.ClosedTrade{
		mktrade("d", 4000, -150, -1.5, domain.ExitReasonStop),
		mktrade("a", 1000, 100, 1.0, domain.ExitReasonTarget),
		mktrade("e", 5000, 100, 1.0, domain.ExitReasonTarget),
		mktrade("c", 3000, -100, -1.0, domain.ExitReasonStop),
		mktrade("b", 2000, 200, 2.0, domain.ExitReasonTarget),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.MaxDrawdown != 250 {
		t.Errorf("MaxDrawdown = %v, want 250 regardless of input order", agg.MaxDrawdown)
	}
}

func TestComputeFromTrades_MaxConsecutiveLosses(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, -10, -0.1, domain.ExitReasonStop),
		mktrade("b", 2000, 50, 0.5, domain.ExitReasonTarget),
		mktrade("c", 3000, -10, -0.1, domain.ExitReasonStop),
		mktrade("d", 4000, -10, -0.1, domain.ExitReasonStop),
		mktrade("e", 5000, -10, -0.1, domain.ExitReasonStop),
		mktrade("f", 6000, 50, 0.5, domain.ExitReasonTarget),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.MaxConsecutiveLosses != 3 {
		t.Errorf("MaxConsecutiveLosses = %d, want 3", agg.MaxConsecutiveLosses)
	}
}

func TestComputeFromTrades_RDistribution(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, -100, -1.0, domain.ExitReasonStop),
		mktrade("b", 2000, 0, 0.0, domain.ExitReasonTimeLimit),
		mktrade("c", 3000, 100, 1.0, domain.ExitReasonTarget),
		mktrade("d", 4000, 200, 2.0, domain.ExitReasonTarget),
		mktrade("e", 5000, 300, 3.0, domain.ExitReasonTarget),
	}

	agg := computeFromTrades("run-1", trades)

	if agg.RMedian != 1.0 {
		t.Errorf("RMedian = %v, want 1.0", agg.RMedian)
	}
	if agg.RMin != -1.0 || agg.RMax != 3.0 {
		t.Errorf("RMin/RMax = %v/%v, want -1.0/3.0", agg.RMin, agg.RMax)
	}
	if agg.Expectancy != 1.0 {
		t.Errorf("Expectancy = %v, want 1.0", agg.Expectancy)
	}
}

func TestComputeFromTrades_Empty(t *testing.T) {
	agg := computeFromTrades("run-1", nil)

	if agg.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", agg.RunID)
	}
	if agg.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0", agg.TotalTrades)
	}
}

func TestComputeFromTrades_DegenerateCounted(t *testing.T) {
	tr := mktrade("a", 1000, 0, 0, domain.ExitReasonTimeLimit)
	tr.Degenerate = true

	agg := computeFromTrades("run-1", []*domain.ClosedTrade{tr})

	if agg.DegenerateTrades != 1 {
		t.Errorf("DegenerateTrades = %d, want 1", agg.DegenerateTrades)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	tests := []struct {
		p    float64
		want float64
	}{
		{0.0, 10},
		{0.5, 25},
		{1.0, 40},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); got != tt.want {
			t.Errorf("computePercentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
