package memory

import (
	"context"
	"errors"
	"testing"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

func TestTradeStore_InsertAndGet(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.ClosedTrade{
		TradeID:    "trade1",
		RunID:      "run1",
		SignalID:   "sig1",
		Instrument: "AAPL",
		Side:       domain.SideLong,
		ExitTimeMs: 5000,
		PnL:        1000,
		RMultiple:  2.0,
		ExitReason: domain.ExitReasonTarget,
	}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "trade1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.PnL != 1000 {
		t.Errorf("PnL mismatch: got %f, want %f", got.PnL, 1000.0)
	}
}

func TestTradeStore_DuplicateKey(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trade := &domain.ClosedTrade{TradeID: "trade1", RunID: "run1"}

	if err := store.Insert(ctx, trade); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, trade)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestTradeStore_NotFound(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTradeStore_GetByRunIDOrdering(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	trades := []*domain.ClosedTrade{
		{TradeID: "b", RunID: "run1", ExitTimeMs: 2000},
		{TradeID: "c", RunID: "run1", ExitTimeMs: 1000},
		{TradeID: "a", RunID: "run1", ExitTimeMs: 2000},
		{TradeID: "d", RunID: "run2", ExitTimeMs: 500},
	}

	if err := store.InsertBulk(ctx, trades); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "run1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 trades for run1, got %d", len(result))
	}

	// Ordered by (exit_time_ms, trade_id)
	if result[0].TradeID != "c" || result[1].TradeID != "a" || result[2].TradeID != "b" {
		t.Errorf("Unexpected order: %s, %s, %s", result[0].TradeID, result[1].TradeID, result[2].TradeID)
	}
}

func TestTradeStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.ClosedTrade{TradeID: "t1", RunID: "run1"}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	trades := []*domain.ClosedTrade{
		{TradeID: "t2", RunID: "run1"},
		{TradeID: "t1", RunID: "run1"}, // duplicate
	}

	err := store.InsertBulk(ctx, trades)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Verify all-or-nothing
	all, _ := store.GetByRunID(ctx, "run1")
	if len(all) != 1 {
		t.Errorf("Expected 1 trade (no partial insert), got %d", len(all))
	}
}

func TestTradeStore_InvalidInput(t *testing.T) {
	store := NewTradeStore()
	ctx := context.Background()

	err := store.Insert(ctx, nil)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	err = store.Insert(ctx, &domain.ClosedTrade{TradeID: ""})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty ID, got %v", err)
	}
}
