package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_id, run_id, signal_id, instrument, side,
	signal_time_ms, entry_time_ms, entry_price, quantity,
	target_price, stop_price,
	exit_time_ms, exit_price, exit_reason,
	pnl, r_multiple, degenerate
`

const insertTradeQuery = `
	INSERT INTO closed_trades (
		trade_id, run_id, signal_id, instrument, side,
		signal_time_ms, entry_time_ms, entry_price, quantity,
		target_price, stop_price,
		exit_time_ms, exit_price, exit_reason,
		pnl, r_multiple, degenerate
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9,
		$10, $11,
		$12, $13, $14,
		$15, $16, $17
	)
`

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.ClosedTrade) error {
	_, err := s.pool.Exec(ctx, insertTradeQuery,
		t.TradeID, t.RunID, t.SignalID, t.Instrument, string(t.Side),
		t.SignalTimeMs, t.EntryTimeMs, t.EntryPrice, t.Quantity,
		t.Target, t.Stop,
		t.ExitTimeMs, t.ExitPrice, t.ExitReason,
		t.PnL, t.RMultiple, t.Degenerate,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.ClosedTrade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range trades {
		_, err := tx.Exec(ctx, insertTradeQuery,
			t.TradeID, t.RunID, t.SignalID, t.Instrument, string(t.Side),
			t.SignalTimeMs, t.EntryTimeMs, t.EntryPrice, t.Quantity,
			t.Target, t.Stop,
			t.ExitTimeMs, t.ExitPrice, t.ExitReason,
			t.PnL, t.RMultiple, t.Degenerate,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.ClosedTrade, error) {
	query := `SELECT ` + tradeColumns + ` FROM closed_trades WHERE trade_id = $1`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByRunID retrieves a run's ledger ordered by (exit_time_ms, trade_id) ASC.
func (s *TradeStore) GetByRunID(ctx context.Context, runID string) ([]*domain.ClosedTrade, error) {
	query := `SELECT ` + tradeColumns + `
		FROM closed_trades
		WHERE run_id = $1
		ORDER BY exit_time_ms ASC, trade_id ASC`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get trades by run id: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single row into a ClosedTrade.
func scanTrade(row pgx.Row) (*domain.ClosedTrade, error) {
	var t domain.ClosedTrade
	var side string

	err := row.Scan(
		&t.TradeID, &t.RunID, &t.SignalID, &t.Instrument, &side,
		&t.SignalTimeMs, &t.EntryTimeMs, &t.EntryPrice, &t.Quantity,
		&t.Target, &t.Stop,
		&t.ExitTimeMs, &t.ExitPrice, &t.ExitReason,
		&t.PnL, &t.RMultiple, &t.Degenerate,
	)
	if err != nil {
		return nil, err
	}

	t.Side = domain.Side(side)
	return &t, nil
}

// scanTrades scans multiple rows into a slice of ClosedTrade.
func scanTrades(rows pgx.Rows) ([]*domain.ClosedTrade, error) {
	var trades []*domain.ClosedTrade

	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}
