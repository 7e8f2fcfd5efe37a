// Package sweep runs the same inputs through a grid of simulation
// configurations and ranks the outcomes. Runs execute in parallel;
// each individual run stays single-threaded and deterministic, so the
// ranked output is reproducible regardless of worker scheduling.
package sweep

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/metrics"
	"equity-signal-lab/internal/simulation"
)

// Goal selects the metric a sweep ranks by.
type Goal string

// Ranking goals.
const (
	GoalNetPnL       Goal = "net_pnl"
	GoalExpectancy   Goal = "expectancy"
	GoalProfitFactor Goal = "profit_factor"
	GoalWinRate      Goal = "win_rate"
)

// Variant is one named configuration in the grid.
type Variant struct {
	Name   string
	Config domain.SimulationConfig
}

// Result is the outcome of one variant, ranked after the whole sweep
// completes.
type Result struct {
	Variant   Variant
	Aggregate *domain.RunAggregate
	Trades    int
	Score     float64
	Rank      int
}

// Sweep executes configuration grids over fixed inputs.
type Sweep struct {
	goal    Goal
	workers int
	logger  *log.Logger
}

// New creates a sweep. Workers are clamped to [1, 16].
func New(goal Goal, workers int, logger *log.Logger) *Sweep {
	if workers < 1 {
		workers = 1
	}
	if workers > 16 {
		workers = 16
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Sweep{goal: goal, workers: workers, logger: logger}
}

// Run executes every variant and returns results sorted by score
// descending, ranks assigned. A variant whose configuration fails
// validation aborts the sweep: a bad grid is a programming error.
// Cancellation stops whole runs, never partial ones.
func (s *Sweep) Run(ctx context.Context, variants []Variant, bars []domain.Bar, signals []*domain.CandidateSignal) ([]*Result, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("no variants to sweep")
	}

	s.logger.Printf("sweep: %d variants, %d workers, goal=%s", len(variants), s.workers, s.goal)

	results := make([]*Result, len(variants))
	errs := make([]error, len(variants))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.workers)

	for i, v := range variants {
		wg.Add(1)
		go func(idx int, variant Variant) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}

			res, err := s.runOne(ctx, variant, bars, signals)
			if err != nil {
				errs[idx] = fmt.Errorf("variant %s: %w", variant.Name, err)
				return
			}
			results[idx] = res
			s.logger.Printf("sweep: variant %s done, trades=%d score=%.4f",
				variant.Name, res.Trades, res.Score)
		}(i, v)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Variant.Name < results[j].Variant.Name
	})
	for i, r := range results {
		r.Rank = i + 1
	}

	return results, nil
}

func (s *Sweep) runOne(ctx context.Context, variant Variant, bars []domain.Bar, signals []*domain.CandidateSignal) (*Result, error) {
	engine, err := simulation.NewEngine(variant.Config)
	if err != nil {
		return nil, err
	}

	out, err := engine.Run(ctx, bars, signals)
	if err != nil {
		return nil, err
	}

	agg := metrics.FromLedger(out.RunID, out.Trades)
	return &Result{
		Variant:   variant,
		Aggregate: agg,
		Trades:    len(out.Trades),
		Score:     s.score(agg),
	}, nil
}

func (s *Sweep) score(agg *domain.RunAggregate) float64 {
	switch s.goal {
	case GoalExpectancy:
		return agg.Expectancy
	case GoalProfitFactor:
		return agg.ProfitFactor
	case GoalWinRate:
		return agg.WinRate
	default:
		return agg.NetPnL
	}
}
