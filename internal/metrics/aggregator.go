// Package metrics turns closed-trade ledgers into per-run aggregates:
// win rate, profit factor, expectancy, drawdown, R distribution.
package metrics

import (
	"context"
	"errors"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator computes run aggregates from stored ledgers.
type Aggregator struct {
	tradeStore     storage.TradeStore
	aggregateStore storage.AggregateStore
}

// NewAggregator creates a new metrics aggregator. aggregateStore may
// be nil when persistence is not wanted.
func NewAggregator(tradeStore storage.TradeStore, aggregateStore storage.AggregateStore) *Aggregator {
	return &Aggregator{
		tradeStore:     tradeStore,
		aggregateStore: aggregateStore,
	}
}

// ComputeAggregate loads a run's ledger and computes its aggregate.
// Returns ErrNoTrades for an empty ledger: an empty run completed,
// it just has nothing to aggregate.
func (a *Aggregator) ComputeAggregate(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	trades, err := a.tradeStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}
	return computeFromTrades(runID, trades), nil
}

// ComputeAndStore computes and persists an aggregate.
// Returns storage.ErrDuplicateKey if the aggregate already exists.
func (a *Aggregator) ComputeAndStore(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	agg, err := a.ComputeAggregate(ctx, runID)
	if err != nil {
		return nil, err
	}
	if a.aggregateStore != nil {
		if err := a.aggregateStore.Insert(ctx, agg); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// FromLedger computes an aggregate directly from an in-memory ledger,
// bypassing storage. Used by sweeps and Monte Carlo resampling where
// the ledger never leaves memory.
func FromLedger(runID string, trades []*domain.ClosedTrade) *domain.RunAggregate {
	return computeFromTrades(runID, trades)
}
