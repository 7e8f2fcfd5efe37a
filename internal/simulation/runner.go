package simulation

import (
	"context"
	"fmt"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// Runner executes simulations over stored inputs.
type Runner struct {
	barStore    storage.BarStore
	signalStore storage.SignalStore
	tradeStore  storage.TradeStore
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	BarStore    storage.BarStore
	SignalStore storage.SignalStore
	TradeStore  storage.TradeStore // optional; ledger is persisted when set
}

// NewRunner creates a simulation runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		barStore:    opts.BarStore,
		signalStore: opts.SignalStore,
		tradeStore:  opts.TradeStore,
	}
}

// Run loads all bars and signals, executes one simulation with the
// given config, and persists the resulting ledger when a trade store
// is configured.
func (r *Runner) Run(ctx context.Context, cfg domain.SimulationConfig) (*Result, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	barPtrs, err := r.barStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	bars := make([]domain.Bar, len(barPtrs))
	for i, b := range barPtrs {
		bars[i] = *b
	}

	signals, err := r.signalStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	result, err := engine.Run(ctx, bars, signals)
	if err != nil {
		return nil, err
	}

	if r.tradeStore != nil && len(result.Trades) > 0 {
		if err := r.tradeStore.InsertBulk(ctx, result.Trades); err != nil {
			return nil, fmt.Errorf("persist ledger: %w", err)
		}
	}

	return result, nil
}
