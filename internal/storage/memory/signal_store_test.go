package memory

import (
	"context"
	"errors"
	"testing"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

func TestSignalStore_InsertAndGet(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	sig := &domain.CandidateSignal{
		SignalID:   "sig1",
		Instrument: "AAPL",
		Side:       domain.SideLong,
		AsOfMs:     1000,
		Entry:      100,
		Target:     110,
		Stop:       95,
		Score:      0.8,
	}

	if err := store.Insert(ctx, sig); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "sig1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Target != 110 {
		t.Errorf("Target mismatch: got %f, want %f", got.Target, 110.0)
	}
}

func TestSignalStore_CopyOnRead(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	sig := &domain.CandidateSignal{SignalID: "sig1", Instrument: "AAPL", AsOfMs: 1000}
	if err := store.Insert(ctx, sig); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "sig1")
	got.Instrument = "MUTATED"

	again, _ := store.GetByID(ctx, "sig1")
	if again.Instrument != "AAPL" {
		t.Error("Mutation through returned pointer leaked into the store")
	}
}

func TestSignalStore_DuplicateKey(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	sig := &domain.CandidateSignal{SignalID: "sig1", Instrument: "AAPL"}

	if err := store.Insert(ctx, sig); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	err := store.Insert(ctx, sig)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSignalStore_NotFound(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	_, err := store.GetByID(ctx, "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSignalStore_GetByTimeRange(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	signals := []*domain.CandidateSignal{
		{SignalID: "s1", Instrument: "AAPL", AsOfMs: 1000},
		{SignalID: "s2", Instrument: "AAPL", AsOfMs: 2000},
		{SignalID: "s3", Instrument: "AAPL", AsOfMs: 3000},
	}
	if err := store.InsertBulk(ctx, signals); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	result, err := store.GetByTimeRange(ctx, 1500, 3000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("Expected 2 signals in [1500, 3000], got %d", len(result))
	}
}

func TestSignalStore_GetAllOrdering(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	signals := []*domain.CandidateSignal{
		{SignalID: "z", Instrument: "AAPL", AsOfMs: 1000},
		{SignalID: "a", Instrument: "AAPL", AsOfMs: 1000},
		{SignalID: "m", Instrument: "AAPL", AsOfMs: 500},
	}
	if err := store.InsertBulk(ctx, signals); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}

	// Ordered by (as_of_ms, signal_id)
	if all[0].SignalID != "m" || all[1].SignalID != "a" || all[2].SignalID != "z" {
		t.Errorf("Unexpected order: %s, %s, %s", all[0].SignalID, all[1].SignalID, all[2].SignalID)
	}
}

func TestSignalStore_InsertBulkPartialDuplicate(t *testing.T) {
	store := NewSignalStore()
	ctx := context.Background()

	if err := store.Insert(ctx, &domain.CandidateSignal{SignalID: "s1", Instrument: "AAPL"}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	signals := []*domain.CandidateSignal{
		{SignalID: "s2", Instrument: "AAPL"},
		{SignalID: "s1", Instrument: "AAPL"}, // duplicate
	}

	err := store.InsertBulk(ctx, signals)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	all, _ := store.GetAll(ctx)
	if len(all) != 1 {
		t.Errorf("Expected 1 signal (no partial insert), got %d", len(all))
	}
}
