package risk

import (
	"testing"

	"equity-signal-lab/internal/domain"
)

const (
	day1Ms = int64(1_700_000_000_000) // 2023-11-14 UTC
	day2Ms = int64(1_700_100_000_000) // 2023-11-16 UTC
)

func stopTrade(exitMs int64, r float64) *domain.ClosedTrade {
	return &domain.ClosedTrade{
		ExitTimeMs: exitMs,
		ExitReason: domain.ExitReasonStop,
		RMultiple:  r,
	}
}

func TestGovernor_BlocksOnStopCount(t *testing.T) {
	g := NewGovernor(2, 0)
	day := domain.DayKey(day1Ms)

	g.RecordClose(stopTrade(day1Ms, -1))
	if !g.MayOpen(day) {
		t.Fatal("one stop should not block with limit 2")
	}

	g.RecordClose(stopTrade(day1Ms+60_000, -1))
	if g.MayOpen(day) {
		t.Error("second stop should block the day")
	}
}

func TestGovernor_BlocksOnAdverseR(t *testing.T) {
	g := NewGovernor(0, -2.5)
	day := domain.DayKey(day1Ms)

	g.RecordClose(&domain.ClosedTrade{
		ExitTimeMs: day1Ms,
		ExitReason: domain.ExitReasonTimeLimit,
		RMultiple:  -1.5,
	})
	if !g.MayOpen(day) {
		t.Fatal("day should still be open at -1.5R")
	}

	g.RecordClose(&domain.ClosedTrade{
		ExitTimeMs: day1Ms + 60_000,
		ExitReason: domain.ExitReasonTimeLimit,
		RMultiple:  -1.2,
	})
	if g.MayOpen(day) {
		t.Error("day should block at or below -2.5R cumulative")
	}
}

func TestGovernor_NeverUnblocksWithinDay(t *testing.T) {
	g := NewGovernor(1, 0)
	day := domain.DayKey(day1Ms)

	g.RecordClose(stopTrade(day1Ms, -1))
	if g.MayOpen(day) {
		t.Fatal("day should be blocked")
	}

	// A big winner later the same day must not re-open it.
	g.RecordClose(&domain.ClosedTrade{
		ExitTimeMs: day1Ms + 3_600_000,
		ExitReason: domain.ExitReasonTarget,
		RMultiple:  5,
	})
	if g.MayOpen(day) {
		t.Error("blocked day must never un-block")
	}
}

func TestGovernor_FreshDayResetsCounters(t *testing.T) {
	// Historical bug risk: the prior day's counters silently carrying
	// into the next day. Both days must be independent.
	g := NewGovernor(1, 0)

	g.RecordClose(stopTrade(day1Ms, -1))
	if g.MayOpen(domain.DayKey(day1Ms)) {
		t.Fatal("first day should be blocked")
	}

	day2 := domain.DayKey(day2Ms)
	if !g.MayOpen(day2) {
		t.Error("next day must start OPEN")
	}
	state := g.StateFor(day2)
	if state.StopExits != 0 || state.CumulativeR != 0 || state.Blocked {
		t.Errorf("next day state must be zeroed, got %+v", state)
	}
}

func TestGovernor_UnseenDayIsOpen(t *testing.T) {
	g := NewGovernor(1, -1)

	if !g.MayOpen("2024-01-02") {
		t.Error("unseen day must initialize fresh and OPEN")
	}
	state := g.StateFor("2024-01-02")
	if state.Day != "2024-01-02" || state.Blocked {
		t.Errorf("unexpected state for unseen day: %+v", state)
	}
}

func TestGovernor_DisabledLimits(t *testing.T) {
	g := NewGovernor(0, 0)
	day := domain.DayKey(day1Ms)

	for i := 0; i < 10; i++ {
		g.RecordClose(stopTrade(day1Ms+int64(i)*60_000, -2))
	}
	if !g.MayOpen(day) {
		t.Error("disabled limits must never block")
	}
}
