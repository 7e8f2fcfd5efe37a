package reporting

import (
	"context"
	"sort"
	"time"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// Generator produces reports from stored data.
type Generator struct {
	signalStore    storage.SignalStore
	tradeStore     storage.TradeStore
	aggregateStore storage.AggregateStore
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(
	signalStore storage.SignalStore,
	tradeStore storage.TradeStore,
	aggregateStore storage.AggregateStore,
) *Generator {
	return &Generator{
		signalStore:    signalStore,
		tradeStore:     tradeStore,
		aggregateStore: aggregateStore,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a report over every stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	aggs, err := g.aggregateStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	dataSummary, err := g.generateDataSummary(ctx, aggs)
	if err != nil {
		return nil, err
	}

	instruments, err := g.generateInstrumentBreakdown(ctx, aggs)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:         g.now(),
		RunCount:            len(aggs),
		DataSummary:         *dataSummary,
		RunMetrics:          generateRunMetrics(aggs),
		ExitBreakdown:       generateExitBreakdown(aggs),
		InstrumentBreakdown: instruments,
	}, nil
}

// generateDataSummary computes the input summary from signals and
// aggregates.
func (g *Generator) generateDataSummary(ctx context.Context, aggs []*domain.RunAggregate) (*DataSummary, error) {
	signals, err := g.signalStore.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	totalTrades := 0
	for _, agg := range aggs {
		totalTrades += agg.TotalTrades
	}

	var dateRangeStart, dateRangeEnd int64
	if len(signals) > 0 {
		// Signals come back ordered by (as_of_ms, signal_id).
		dateRangeStart = signals[0].AsOfMs
		dateRangeEnd = signals[len(signals)-1].AsOfMs
	}

	return &DataSummary{
		TotalSignals:   len(signals),
		TotalTrades:    totalTrades,
		DateRangeStart: dateRangeStart,
		DateRangeEnd:   dateRangeEnd,
	}, nil
}

// generateRunMetrics builds sorted per-run rows from aggregates.
func generateRunMetrics(aggs []*domain.RunAggregate) []RunMetricRow {
	rows := make([]RunMetricRow, len(aggs))
	for i, agg := range aggs {
		rows[i] = RunMetricRow{
			RunID:                agg.RunID,
			TotalTrades:          agg.TotalTrades,
			Wins:                 agg.Wins,
			Losses:               agg.Losses,
			WinRate:              agg.WinRate,
			NetPnL:               agg.NetPnL,
			ProfitFactor:         agg.ProfitFactor,
			Expectancy:           agg.Expectancy,
			RMedian:              agg.RMedian,
			RP10:                 agg.RP10,
			RP90:                 agg.RP90,
			MaxDrawdown:          agg.MaxDrawdown,
			MaxConsecutiveLosses: agg.MaxConsecutiveLosses,
			DegenerateTrades:     agg.DegenerateTrades,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RunID < rows[j].RunID
	})
	return rows
}

// generateExitBreakdown builds sorted per-run exit counts.
func generateExitBreakdown(aggs []*domain.RunAggregate) []ExitBreakdownRow {
	rows := make([]ExitBreakdownRow, len(aggs))
	for i, agg := range aggs {
		rows[i] = ExitBreakdownRow{
			RunID:          agg.RunID,
			TargetExits:    agg.TargetExits,
			StopExits:      agg.StopExits,
			TimeLimitExits: agg.TimeLimitExits,
			RiskStopExits:  agg.RiskStopExits,
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].RunID < rows[j].RunID
	})
	return rows
}

// generateInstrumentBreakdown groups each run's ledger by instrument.
func (g *Generator) generateInstrumentBreakdown(ctx context.Context, aggs []*domain.RunAggregate) ([]InstrumentBreakdownRow, error) {
	type key struct {
		RunID      string
		Instrument string
	}
	groups := make(map[key]*InstrumentBreakdownRow)

	for _, agg := range aggs {
		trades, err := g.tradeStore.GetByRunID(ctx, agg.RunID)
		if err != nil {
			return nil, err
		}

		for _, trade := range trades {
			k := key{RunID: trade.RunID, Instrument: trade.Instrument}
			row := groups[k]
			if row == nil {
				row = &InstrumentBreakdownRow{RunID: trade.RunID, Instrument: trade.Instrument}
				groups[k] = row
			}
			row.Trades++
			if trade.PnL > 0 {
				row.Wins++
			}
			row.NetPnL += trade.PnL
		}
	}

	rows := make([]InstrumentBreakdownRow, 0, len(groups))
	for _, row := range groups {
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].RunID != rows[j].RunID {
			return rows[i].RunID < rows[j].RunID
		}
		return rows[i].Instrument < rows[j].Instrument
	})
	return rows, nil
}
