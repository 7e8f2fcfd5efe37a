package metrics

import (
	"errors"
	"math/rand"
	"sort"

	"equity-signal-lab/internal/domain"
)

// ErrNoOutcomes is returned when resampling an empty ledger.
var ErrNoOutcomes = errors.New("no outcomes to resample")

// MonteCarloConfig controls ledger resampling.
type MonteCarloConfig struct {
	Iterations int   // number of resampled sequences
	Seed       int64 // RNG seed; fixed seed gives reproducible results
}

// MonteCarloResult summarizes the resampled distribution of final PnL
// and drawdown across iterations. Each iteration draws len(ledger)
// outcomes with replacement and replays them as a sequence.
type MonteCarloResult struct {
	Iterations int

	FinalPnLMedian  float64
	FinalPnLP05     float64 // 5th percentile, the pessimistic tail
	FinalPnLP95     float64
	LossProbability float64 // fraction of iterations ending below zero

	DrawdownMedian float64
	DrawdownP95    float64 // worst-case tail drawdown
}

// ResampleLedger runs a Monte Carlo study over a closed-trade ledger.
// Iterations are independent by construction: this is the only place
// parallelism would be legitimate, but sequential execution keeps the
// result identical for a given seed.
func ResampleLedger(trades []*domain.ClosedTrade, cfg MonteCarloConfig) (*MonteCarloResult, error) {
	if len(trades) == 0 {
		return nil, ErrNoOutcomes
	}
	iterations := cfg.Iterations
	if iterations <= 0 {
		iterations = 1000
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	finals := make([]float64, iterations)
	drawdowns := make([]float64, iterations)
	lossCount := 0

	for it := 0; it < iterations; it++ {
		cumulative, peak, maxDD := 0.0, 0.0, 0.0
		for range pnls {
			cumulative += pnls[rng.Intn(len(pnls))]
			if cumulative > peak {
				peak = cumulative
			}
			if dd := peak - cumulative; dd > maxDD {
				maxDD = dd
			}
		}
		finals[it] = cumulative
		drawdowns[it] = maxDD
		if cumulative < 0 {
			lossCount++
		}
	}

	sort.Float64s(finals)
	sort.Float64s(drawdowns)

	return &MonteCarloResult{
		Iterations:      iterations,
		FinalPnLMedian:  computePercentile(finals, 0.50),
		FinalPnLP05:     computePercentile(finals, 0.05),
		FinalPnLP95:     computePercentile(finals, 0.95),
		LossProbability: float64(lossCount) / float64(iterations),
		DrawdownMedian:  computePercentile(drawdowns, 0.50),
		DrawdownP95:     computePercentile(drawdowns, 0.95),
	}, nil
}
