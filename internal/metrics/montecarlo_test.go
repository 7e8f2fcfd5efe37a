package metrics

import (
	"testing"

	"equity-signal-lab/internal/domain"
)

func TestResampleLedger_Deterministic(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 200, 2.0, domain.ExitReasonTarget),
		mktrade("b", 2000, -100, -1.0, domain.ExitReasonStop),
		mktrade("c", 3000, 50, 0.5, domain.ExitReasonTimeLimit),
	}
	cfg := MonteCarloConfig{Iterations: 200, Seed: 42}

	first, err := ResampleLedger(trades, cfg)
	if err != nil {
		t.Fatalf("ResampleLedger() error = %v", err)
	}
	second, err := ResampleLedger(trades, cfg)
	if err != nil {
		t.Fatalf("ResampleLedger() error = %v", err)
	}

	if *first != *second {
		t.Errorf("same seed produced different results: %+v vs %+v", first, second)
	}
}

func TestResampleLedger_AllWinnersNeverLose(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 100, 1.0, domain.ExitReasonTarget),
		mktrade("b", 2000, 50, 0.5, domain.ExitReasonTarget),
	}

	res, err := ResampleLedger(trades, MonteCarloConfig{Iterations: 100, Seed: 7})
	if err != nil {
		t.Fatalf("ResampleLedger() error = %v", err)
	}

	if res.LossProbability != 0 {
		t.Errorf("LossProbability = %v, want 0 for an all-winner ledger", res.LossProbability)
	}
	if res.FinalPnLP05 < 100 {
		t.Errorf("FinalPnLP05 = %v, want >= 100 (two draws from {100, 50})", res.FinalPnLP05)
	}
}

func TestResampleLedger_EmptyLedger(t *testing.T) {
	if _, err := ResampleLedger(nil, MonteCarloConfig{Iterations: 10, Seed: 1}); err != ErrNoOutcomes {
		t.Errorf("error = %v, want ErrNoOutcomes", err)
	}
}

func TestResampleLedger_DefaultIterations(t *testing.T) {
	trades := []*domain.ClosedTrade{
		mktrade("a", 1000, 100, 1.0, domain.ExitReasonTarget),
	}

	res, err := ResampleLedger(trades, MonteCarloConfig{Seed: 1})
	if err != nil {
		t.Fatalf("ResampleLedger() error = %v", err)
	}
	if res.Iterations != 1000 {
		t.Errorf("Iterations = %d, want default 1000", res.Iterations)
	}
}
