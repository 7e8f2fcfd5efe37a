package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// AggregateStore implements storage.AggregateStore using PostgreSQL.
type AggregateStore struct {
	pool *Pool
}

// NewAggregateStore creates a new AggregateStore.
func NewAggregateStore(pool *Pool) *AggregateStore {
	return &AggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AggregateStore = (*AggregateStore)(nil)

const aggregateColumns = `
	run_id, total_trades, wins, losses, win_rate,
	net_pnl, gross_profit, gross_loss, profit_factor, expectancy,
	r_median, r_p10, r_p25, r_p75, r_p90, r_min, r_max, r_stddev,
	max_drawdown, max_consecutive_losses,
	target_exits, stop_exits, time_limit_exits, risk_stop_exits, degenerate_trades
`

// Insert adds a new aggregate. Returns ErrDuplicateKey if run_id exists.
func (s *AggregateStore) Insert(ctx context.Context, a *domain.RunAggregate) error {
	query := `
		INSERT INTO run_aggregates (
			run_id, total_trades, wins, losses, win_rate,
			net_pnl, gross_profit, gross_loss, profit_factor, expectancy,
			r_median, r_p10, r_p25, r_p75, r_p90, r_min, r_max, r_stddev,
			max_drawdown, max_consecutive_losses,
			target_exits, stop_exits, time_limit_exits, risk_stop_exits, degenerate_trades
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20,
			$21, $22, $23, $24, $25
		)
	`

	_, err := s.pool.Exec(ctx, query,
		a.RunID, a.TotalTrades, a.Wins, a.Losses, a.WinRate,
		a.NetPnL, a.GrossProfit, a.GrossLoss, a.ProfitFactor, a.Expectancy,
		a.RMedian, a.RP10, a.RP25, a.RP75, a.RP90, a.RMin, a.RMax, a.RStddev,
		a.MaxDrawdown, a.MaxConsecutiveLosses,
		a.TargetExits, a.StopExits, a.TimeLimitExits, a.RiskStopExits, a.DegenerateTrades,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert aggregate: %w", err)
	}
	return nil
}

// GetByRunID retrieves an aggregate by run ID. Returns ErrNotFound if not exists.
func (s *AggregateStore) GetByRunID(ctx context.Context, runID string) (*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM run_aggregates WHERE run_id = $1`

	row := s.pool.QueryRow(ctx, query, runID)
	a, err := scanAggregate(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get aggregate by run id: %w", err)
	}
	return a, nil
}

// GetAll retrieves all aggregates, ordered by run_id ASC.
func (s *AggregateStore) GetAll(ctx context.Context) ([]*domain.RunAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM run_aggregates ORDER BY run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []*domain.RunAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		aggs = append(aggs, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}

	return aggs, nil
}

// scanAggregate scans a single row into a RunAggregate.
func scanAggregate(row pgx.Row) (*domain.RunAggregate, error) {
	var a domain.RunAggregate

	err := row.Scan(
		&a.RunID, &a.TotalTrades, &a.Wins, &a.Losses, &a.WinRate,
		&a.NetPnL, &a.GrossProfit, &a.GrossLoss, &a.ProfitFactor, &a.Expectancy,
		&a.RMedian, &a.RP10, &a.RP25, &a.RP75, &a.RP90, &a.RMin, &a.RMax, &a.RStddev,
		&a.MaxDrawdown, &a.MaxConsecutiveLosses,
		&a.TargetExits, &a.StopExits, &a.TimeLimitExits, &a.RiskStopExits, &a.DegenerateTrades,
	)
	if err != nil {
		return nil, err
	}

	return &a, nil
}
