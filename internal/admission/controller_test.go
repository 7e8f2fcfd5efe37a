package admission

import (
	"sort"
	"testing"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/risk"
	"equity-signal-lab/internal/sizing"
)

const tickMs = int64(1_700_000_000_000)

func testController(cfg domain.SimulationConfig, g *risk.Governor) *Controller {
	if g == nil {
		g = risk.NewGovernor(0, 0)
	}
	return NewController(cfg, sizing.NewSizer(cfg.AllowFractional, cfg.FractionalPrecision), g)
}

func candidate(id, instrument string, score, entry float64) *domain.CandidateSignal {
	return &domain.CandidateSignal{
		SignalID:   id,
		Instrument: instrument,
		Side:       domain.SideLong,
		AsOfMs:     tickMs,
		Entry:      entry,
		Target:     entry * 1.1,
		Stop:       entry * 0.95,
		Score:      score,
	}
}

func baseConfig() domain.SimulationConfig {
	cfg := domain.DefaultConfig()
	cfg.MaxConcurrent = 2
	cfg.PerTradeCash = 10_000
	cfg.Budget = 20_000
	return cfg
}

func TestAdmit_HigherScoreWinsUnderConcurrencyCap(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxConcurrent = 1
	c := testController(cfg, nil)

	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "AAPL", 0.55, 100),
		candidate("s2", "MSFT", 0.80, 200),
	}, nil, 0)

	if len(accepted) != 1 {
		t.Fatalf("expected 1 admission, got %d", len(accepted))
	}
	if accepted[0].Signal.Instrument != "MSFT" {
		t.Errorf("expected higher-scored MSFT admitted, got %s", accepted[0].Signal.Instrument)
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectConcurrencyCap {
		t.Errorf("expected AAPL rejected on concurrency cap, got %+v", rejected)
	}
}

func TestAdmit_SkipsInstrumentWithOpenPosition(t *testing.T) {
	c := testController(baseConfig(), nil)
	open := []*domain.Position{{Instrument: "AAPL", State: domain.PositionOpen, CommittedCash: 10_000}}

	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "AAPL", 0.9, 100),
		candidate("s2", "MSFT", 0.5, 100),
	}, open, 10_000)

	if len(accepted) != 1 || accepted[0].Signal.Instrument != "MSFT" {
		t.Fatalf("expected only MSFT admitted, got %+v", accepted)
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectInstrumentOpen {
		t.Errorf("expected AAPL rejected for open instrument, got %+v", rejected)
	}
}

func TestAdmit_BudgetCap(t *testing.T) {
	cfg := baseConfig()
	cfg.MaxConcurrent = 5
	c := testController(cfg, nil)

	// Budget 20k, per-trade 10k: third candidate hits the cap.
	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "AAPL", 0.9, 100),
		candidate("s2", "MSFT", 0.8, 100),
		candidate("s3", "NVDA", 0.7, 100),
	}, nil, 0)

	if len(accepted) != 2 {
		t.Fatalf("expected 2 admissions, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectBudgetCap {
		t.Errorf("expected NVDA rejected on budget cap, got %+v", rejected)
	}
}

func TestAdmit_CostOverEntireBudgetIsPermanent(t *testing.T) {
	cfg := baseConfig()
	cfg.PerTradeCash = 50_000 // sized cost exceeds the whole 20k budget
	c := testController(cfg, nil)

	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "AAPL", 0.9, 100),
	}, nil, 0)

	if len(accepted) != 0 {
		t.Fatalf("expected no admissions, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectCostOverBudget {
		t.Errorf("expected COST_OVER_BUDGET, got %+v", rejected)
	}
}

func TestAdmit_GovernorVetoBeatsRank(t *testing.T) {
	g := risk.NewGovernor(1, 0)
	g.RecordClose(&domain.ClosedTrade{
		ExitTimeMs: tickMs - 3_600_000, // earlier the same day
		ExitReason: domain.ExitReasonStop,
		RMultiple:  -1,
	})
	c := testController(baseConfig(), g)

	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "AAPL", 0.99, 100),
	}, nil, 0)

	if len(accepted) != 0 {
		t.Fatalf("expected governor veto, got %d admissions", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectDayBlocked {
		t.Errorf("expected DAY_BLOCKED, got %+v", rejected)
	}
}

func TestAdmit_ZeroQuantityDropped(t *testing.T) {
	cfg := baseConfig()
	cfg.PerTradeCash = 10_000
	cfg.Budget = 20_000
	c := testController(cfg, nil)

	// Integer mode, entry above per-trade cash: floor gives zero.
	accepted, rejected := c.Admit([]*domain.CandidateSignal{
		candidate("s1", "BRK", 0.9, 15_000),
	}, nil, 0)

	if len(accepted) != 0 {
		t.Fatalf("expected no admissions, got %d", len(accepted))
	}
	if len(rejected) != 1 || rejected[0].Reason != RejectZeroQuantity {
		t.Errorf("expected ZERO_QUANTITY, got %+v", rejected)
	}
}

func TestLess_DeterministicOrdering(t *testing.T) {
	sigs := []*domain.CandidateSignal{
		candidate("s3", "NVDA", 0.5, 100),
		candidate("s1", "MSFT", 0.5, 100),
		candidate("s2", "AAPL", 0.9, 100),
		candidate("s0", "MSFT", 0.5, 100),
	}

	sort.SliceStable(sigs, func(i, j int) bool { return Less(sigs[i], sigs[j]) })

	got := []string{sigs[0].SignalID, sigs[1].SignalID, sigs[2].SignalID, sigs[3].SignalID}
	want := []string{"s2", "s0", "s1", "s3"} // score desc, instrument asc, id asc
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ordering mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
