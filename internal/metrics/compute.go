package metrics

import (
	"math"
	"sort"

	"equity-signal-lab/internal/domain"
)

// computeFromTrades calculates all per-run metrics from a ledger.
// Trades are sorted by ExitTimeMs ASC, TradeID ASC before computing
// order-dependent metrics (MaxDrawdown, MaxConsecutiveLosses).
func computeFromTrades(runID string, trades []*domain.ClosedTrade) *domain.RunAggregate {
	n := len(trades)
	if n == 0 {
		return &domain.RunAggregate{RunID: runID}
	}

	sorted := make([]*domain.ClosedTrade, n)
	copy(sorted, trades)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ExitTimeMs != sorted[j].ExitTimeMs {
			return sorted[i].ExitTimeMs < sorted[j].ExitTimeMs
		}
		return sorted[i].TradeID < sorted[j].TradeID
	})

	agg := &domain.RunAggregate{RunID: runID, TotalTrades: n}

	rValues := make([]float64, n)
	pnls := make([]float64, n)
	for i, t := range sorted {
		rValues[i] = t.RMultiple
		pnls[i] = t.PnL
		agg.NetPnL += t.PnL

		if t.Win() {
			agg.Wins++
			agg.GrossProfit += t.PnL
		} else {
			agg.Losses++
			agg.GrossLoss += -t.PnL
		}

		switch t.ExitReason {
		case domain.ExitReasonTarget:
			agg.TargetExits++
		case domain.ExitReasonStop:
			agg.StopExits++
		case domain.ExitReasonTimeLimit:
			agg.TimeLimitExits++
		case domain.ExitReasonDailyRiskStop:
			agg.RiskStopExits++
		}
		if t.Degenerate {
			agg.DegenerateTrades++
		}
	}

	agg.WinRate = float64(agg.Wins) / float64(n)
	if agg.GrossLoss > 0 {
		agg.ProfitFactor = agg.GrossProfit / agg.GrossLoss
	} else if agg.GrossProfit > 0 {
		agg.ProfitFactor = math.Inf(1)
	}

	mean := computeMean(rValues)
	agg.Expectancy = mean
	agg.RStddev = computeStddev(rValues, mean)

	sortedR := make([]float64, n)
	copy(sortedR, rValues)
	sort.Float64s(sortedR)

	agg.RMedian = computePercentile(sortedR, 0.50)
	agg.RP10 = computePercentile(sortedR, 0.10)
	agg.RP25 = computePercentile(sortedR, 0.25)
	agg.RP75 = computePercentile(sortedR, 0.75)
	agg.RP90 = computePercentile(sortedR, 0.90)
	agg.RMin = sortedR[0]
	agg.RMax = sortedR[n-1]

	agg.MaxDrawdown = computeMaxDrawdown(pnls)
	agg.MaxConsecutiveLosses = computeMaxConsecutiveLosses(sorted)

	return agg
}

// computeMean calculates the arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates population standard deviation.
func computeStddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// computePercentile uses linear interpolation on a pre-sorted slice.
func computePercentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}

// computeMaxDrawdown finds the worst peak-to-trough decline of the
// cumulative PnL curve, in ledger close order. Returned as a positive
// number of cash units.
func computeMaxDrawdown(pnls []float64) float64 {
	cumulative := 0.0
	peak := 0.0
	maxDD := 0.0
	for _, pnl := range pnls {
		cumulative += pnl
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// computeMaxConsecutiveLosses counts the longest losing streak in
// close order.
func computeMaxConsecutiveLosses(trades []*domain.ClosedTrade) int {
	maxStreak := 0
	streak := 0
	for _, t := range trades {
		if t.Win() {
			streak = 0
			continue
		}
		streak++
		if streak > maxStreak {
			maxStreak = streak
		}
	}
	return maxStreak
}
