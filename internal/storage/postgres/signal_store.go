package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SignalStore = (*SignalStore)(nil)

const signalColumns = `
	signal_id, instrument, side, as_of_ms,
	entry_price, target_price, stop_price, score,
	time_limit_bars, time_limit_ms, tags
`

const insertSignalQuery = `
	INSERT INTO candidate_signals (
		signal_id, instrument, side, as_of_ms,
		entry_price, target_price, stop_price, score,
		time_limit_bars, time_limit_ms, tags
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10, $11
	)
`

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(ctx context.Context, sig *domain.CandidateSignal) error {
	tags, err := marshalTags(sig.Tags)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, insertSignalQuery,
		sig.SignalID, sig.Instrument, string(sig.Side), sig.AsOfMs,
		sig.Entry, sig.Target, sig.Stop, sig.Score,
		sig.TimeLimitBars, sig.TimeLimitMs, tags,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
func (s *SignalStore) InsertBulk(ctx context.Context, signals []*domain.CandidateSignal) error {
	if len(signals) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, sig := range signals {
		tags, err := marshalTags(sig.Tags)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, insertSignalQuery,
			sig.SignalID, sig.Instrument, string(sig.Side), sig.AsOfMs,
			sig.Entry, sig.Target, sig.Stop, sig.Score,
			sig.TimeLimitBars, sig.TimeLimitMs, tags,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert signal in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(ctx context.Context, signalID string) (*domain.CandidateSignal, error) {
	query := `SELECT ` + signalColumns + ` FROM candidate_signals WHERE signal_id = $1`

	row := s.pool.QueryRow(ctx, query, signalID)
	sig, err := scanSignal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get signal by id: %w", err)
	}
	return sig, nil
}

// GetByTimeRange retrieves signals with as-of within [start, end] (inclusive).
func (s *SignalStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.CandidateSignal, error) {
	query := `SELECT ` + signalColumns + `
		FROM candidate_signals
		WHERE as_of_ms >= $1 AND as_of_ms <= $2
		ORDER BY as_of_ms ASC, signal_id ASC`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get signals by time range: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// GetAll retrieves all signals, ordered by (as_of_ms, signal_id) ASC.
func (s *SignalStore) GetAll(ctx context.Context) ([]*domain.CandidateSignal, error) {
	query := `SELECT ` + signalColumns + `
		FROM candidate_signals
		ORDER BY as_of_ms ASC, signal_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

func marshalTags(tags map[string]string) ([]byte, error) {
	if len(tags) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal signal tags: %w", err)
	}
	return raw, nil
}

// scanSignal scans a single row into a CandidateSignal.
func scanSignal(row pgx.Row) (*domain.CandidateSignal, error) {
	var sig domain.CandidateSignal
	var side string
	var tags []byte

	err := row.Scan(
		&sig.SignalID, &sig.Instrument, &side, &sig.AsOfMs,
		&sig.Entry, &sig.Target, &sig.Stop, &sig.Score,
		&sig.TimeLimitBars, &sig.TimeLimitMs, &tags,
	)
	if err != nil {
		return nil, err
	}

	sig.Side = domain.Side(side)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &sig.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal signal tags: %w", err)
		}
	}
	if len(sig.Tags) == 0 {
		sig.Tags = nil
	}

	return &sig, nil
}

// scanSignals scans multiple rows into a slice of CandidateSignal.
func scanSignals(rows pgx.Rows) ([]*domain.CandidateSignal, error) {
	var signals []*domain.CandidateSignal

	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal row: %w", err)
		}
		signals = append(signals, sig)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signal rows: %w", err)
	}

	return signals, nil
}
