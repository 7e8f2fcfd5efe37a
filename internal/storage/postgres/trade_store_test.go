package postgres_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
	"equity-signal-lab/internal/storage/postgres"
)

func testTrade(tradeID, runID string, exitMs int64) *domain.ClosedTrade {
	return &domain.ClosedTrade{
		TradeID:      tradeID,
		RunID:        runID,
		SignalID:     "sig-" + tradeID,
		Instrument:   "AAPL",
		Side:         domain.SideLong,
		SignalTimeMs: 1000,
		EntryTimeMs:  2000,
		EntryPrice:   100,
		Quantity:     100,
		Target:       110,
		Stop:         95,
		ExitTimeMs:   exitMs,
		ExitPrice:    110,
		ExitReason:   domain.ExitReasonTarget,
		PnL:          1000,
		RMultiple:    2.0,
	}
}

func TestTradeStore_Roundtrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool)
	ctx := context.Background()

	trade := testTrade("t1", "run1", 5000)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, trade.RunID, got.RunID)
	require.Equal(t, trade.Side, got.Side)
	require.Equal(t, trade.EntryPrice, got.EntryPrice)
	require.Equal(t, trade.ExitReason, got.ExitReason)
	require.Equal(t, trade.PnL, got.PnL)
	require.Equal(t, trade.RMultiple, got.RMultiple)
	require.False(t, got.Degenerate)
}

func TestTradeStore_Duplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTrade("t1", "run1", 5000)))
	require.ErrorIs(t, store.Insert(ctx, testTrade("t1", "run1", 6000)), storage.ErrDuplicateKey)
}

func TestTradeStore_GetByRunIDOrdering(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.InsertBulk(ctx, []*domain.ClosedTrade{
		testTrade("b", "run1", 2000),
		testTrade("c", "run1", 1000),
		testTrade("a", "run1", 2000),
		testTrade("d", "run2", 500),
	}))

	ledger, err := store.GetByRunID(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, ledger, 3)
	require.Equal(t, "c", ledger[0].TradeID)
	require.Equal(t, "a", ledger[1].TradeID)
	require.Equal(t, "b", ledger[2].TradeID)
}

func TestTradeStore_BulkAtomicity(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewTradeStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, testTrade("t1", "run1", 1000)))

	err := store.InsertBulk(ctx, []*domain.ClosedTrade{
		testTrade("t2", "run1", 2000),
		testTrade("t1", "run1", 3000), // duplicate
	})
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	ledger, err := store.GetByRunID(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, ledger, 1, "failed batch must not leave partial rows")
}
