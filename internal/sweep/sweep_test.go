package sweep

import (
	"context"
	"io"
	"log"
	"testing"

	"equity-signal-lab/internal/domain"
)

const baseMs = int64(1_700_000_000_000)

func mkbar(instrument string, minute int, open, high, low, close float64) domain.Bar {
	return domain.Bar{
		Instrument:  instrument,
		TimestampMs: baseMs + int64(minute)*60_000,
		Open:        open,
		High:        high,
		Low:         low,
		Close:       close,
		Volume:      1000,
	}
}

func mksignal(instrument string, minute int, entry, target, stop, score float64) *domain.CandidateSignal {
	return &domain.CandidateSignal{
		Instrument: instrument,
		Side:       domain.SideLong,
		AsOfMs:     baseMs + int64(minute)*60_000,
		Entry:      entry,
		Target:     target,
		Stop:       stop,
		Score:      score,
	}
}

func baseConfig() domain.SimulationConfig {
	cfg := domain.DefaultConfig()
	cfg.MaxDailyStops = 0
	cfg.MaxDailyAdverseR = 0
	cfg.DefaultTimeLimitBars = 5
	return cfg
}

// fixture: two instruments, both signals land winning target exits,
// so admitting both beats admitting one on every goal.
func fixture() ([]domain.Bar, []*domain.CandidateSignal) {
	bars := []domain.Bar{
		mkbar("AAPL", 0, 99.5, 100, 99, 100),
		mkbar("MSFT", 0, 199, 200, 198, 200),
		mkbar("AAPL", 1, 100, 100.5, 99.8, 100.2),
		mkbar("MSFT", 1, 200, 201, 199, 200.5),
		mkbar("AAPL", 2, 101, 111, 101, 110),
		mkbar("MSFT", 2, 202, 221, 202, 220),
	}
	signals := []*domain.CandidateSignal{
		mksignal("AAPL", 0, 100, 110, 95, 0.7),
		mksignal("MSFT", 0, 200, 220, 190, 0.6),
	}
	return bars, signals
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestGrid_ExpandCartesianProduct(t *testing.T) {
	g := Grid{
		MaxConcurrent: []int{1, 2, 3},
		MaxDailyStops: []int{1, 2},
	}
	variants := g.Expand(baseConfig())

	if len(variants) != 6 {
		t.Fatalf("Expand() produced %d variants, want 6", len(variants))
	}
	for _, v := range variants {
		if v.Config.RunID != "" {
			t.Errorf("variant %s kept a run ID, want empty", v.Name)
		}
		if v.Config.PerTradeCash != baseConfig().PerTradeCash {
			t.Errorf("variant %s lost the base per-trade cash", v.Name)
		}
	}
}

func TestGrid_ExpandEmptyAxesKeepBase(t *testing.T) {
	variants := Grid{}.Expand(baseConfig())

	if len(variants) != 1 {
		t.Fatalf("Expand() produced %d variants, want 1", len(variants))
	}
	cfg := variants[0].Config
	base := baseConfig()
	if cfg.MaxConcurrent != base.MaxConcurrent || cfg.MaxDailyStops != base.MaxDailyStops {
		t.Errorf("empty grid should keep base values, got %+v", cfg)
	}
}

func TestSweep_RanksByNetPnL(t *testing.T) {
	bars, signals := fixture()
	variants := Grid{MaxConcurrent: []int{1, 2}}.Expand(baseConfig())

	results, err := New(GoalNetPnL, 2, quietLogger()).Run(context.Background(), variants, bars, signals)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	best := results[0]
	if best.Rank != 1 {
		t.Errorf("best Rank = %d, want 1", best.Rank)
	}
	if best.Variant.Config.MaxConcurrent != 2 {
		t.Errorf("best variant MaxConcurrent = %d, want 2 (admits both winners)",
			best.Variant.Config.MaxConcurrent)
	}
	if best.Score <= results[1].Score {
		t.Errorf("scores not descending: %g then %g", best.Score, results[1].Score)
	}
	if best.Trades != 2 || results[1].Trades != 1 {
		t.Errorf("trades = %d/%d, want 2/1", best.Trades, results[1].Trades)
	}
}

func TestSweep_Deterministic(t *testing.T) {
	bars, signals := fixture()
	variants := Grid{
		MaxConcurrent: []int{1, 2, 3},
		MaxDailyStops: []int{0, 2},
	}.Expand(baseConfig())

	s := New(GoalExpectancy, 4, quietLogger())
	first, err := s.Run(context.Background(), variants, bars, signals)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	second, err := s.Run(context.Background(), variants, bars, signals)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	for i := range first {
		if first[i].Variant.Name != second[i].Variant.Name ||
			first[i].Score != second[i].Score ||
			first[i].Rank != second[i].Rank {
			t.Fatalf("run %d diverged: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSweep_EmptyVariants(t *testing.T) {
	if _, err := New(GoalNetPnL, 1, quietLogger()).Run(context.Background(), nil, nil, nil); err == nil {
		t.Error("expected error for empty variant list")
	}
}

func TestSweep_CancelledContext(t *testing.T) {
	bars, signals := fixture()
	variants := Grid{MaxConcurrent: []int{1, 2}}.Expand(baseConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(GoalNetPnL, 1, quietLogger()).Run(ctx, variants, bars, signals); err == nil {
		t.Error("expected error when context is already cancelled")
	}
}
