package storage

import (
	"context"

	"equity-signal-lab/internal/domain"
)

// BarStore provides access to OHLCV bar storage.
type BarStore interface {
	// InsertBulk adds multiple bars. Fails entire batch on duplicate
	// (instrument, timestamp_ms).
	InsertBulk(ctx context.Context, bars []*domain.Bar) error

	// GetByInstrument retrieves all bars for an instrument, ordered by timestamp ASC.
	GetByInstrument(ctx context.Context, instrument string) ([]*domain.Bar, error)

	// GetByTimeRange retrieves bars for an instrument within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, instrument string, start, end int64) ([]*domain.Bar, error)

	// GetAll retrieves every stored bar, ordered by (instrument, timestamp) ASC.
	GetAll(ctx context.Context) ([]*domain.Bar, error)
}

// SignalStore provides access to candidate signal storage.
type SignalStore interface {
	// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
	Insert(ctx context.Context, s *domain.CandidateSignal) error

	// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, signals []*domain.CandidateSignal) error

	// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, signalID string) (*domain.CandidateSignal, error)

	// GetByTimeRange retrieves signals with as-of within [start, end] (inclusive),
	// ordered by (as_of_ms, signal_id) ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.CandidateSignal, error)

	// GetAll retrieves all signals, ordered by (as_of_ms, signal_id) ASC.
	GetAll(ctx context.Context) ([]*domain.CandidateSignal, error)
}

// TradeStore provides access to the closed-trade ledger.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.ClosedTrade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.ClosedTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error)

	// GetByRunID retrieves a run's ledger ordered by (exit_time_ms, trade_id) ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.ClosedTrade, error)
}

// AggregateStore provides access to per-run aggregate storage.
type AggregateStore interface {
	// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, a *domain.RunAggregate) error

	// GetByRunID retrieves an aggregate by run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.RunAggregate, error)

	// GetAll retrieves all aggregates, ordered by run_id ASC.
	GetAll(ctx context.Context) ([]*domain.RunAggregate, error)
}
