package memory

import (
	"context"
	"sort"
	"sync"

	"equity-signal-lab/internal/domain"
	"equity-signal-lab/internal/storage"
)

// SignalStore is an in-memory implementation of storage.SignalStore.
type SignalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CandidateSignal // keyed by signal_id
}

// NewSignalStore creates a new in-memory signal store.
func NewSignalStore() *SignalStore {
	return &SignalStore{
		data: make(map[string]*domain.CandidateSignal),
	}
}

// Insert adds a new signal. Returns ErrDuplicateKey if signal_id exists.
func (s *SignalStore) Insert(_ context.Context, sig *domain.CandidateSignal) error {
	if sig == nil || sig.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[sig.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	sigCopy := *sig
	s.data[sig.SignalID] = &sigCopy
	return nil
}

// InsertBulk adds multiple signals atomically. Fails entire batch on any duplicate.
func (s *SignalStore) InsertBulk(_ context.Context, signals []*domain.CandidateSignal) error {
	if len(signals) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(signals))

	// First pass: check for duplicates (existing + intra-batch)
	for _, sig := range signals {
		if sig == nil || sig.SignalID == "" {
			return storage.ErrInvalidInput
		}

		if _, exists := s.data[sig.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[sig.SignalID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[sig.SignalID] = struct{}{}
	}

	// Second pass: insert all
	for _, sig := range signals {
		sigCopy := *sig
		s.data[sig.SignalID] = &sigCopy
	}

	return nil
}

// GetByID retrieves a signal by its ID. Returns ErrNotFound if not exists.
func (s *SignalStore) GetByID(_ context.Context, signalID string) (*domain.CandidateSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sig, exists := s.data[signalID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	sigCopy := *sig
	return &sigCopy, nil
}

// GetByTimeRange retrieves signals with as-of within [start, end] (inclusive),
// ordered by (as_of_ms, signal_id) ASC.
func (s *SignalStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.CandidateSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.CandidateSignal
	for _, sig := range s.data {
		if sig.AsOfMs >= start && sig.AsOfMs <= end {
			sigCopy := *sig
			result = append(result, &sigCopy)
		}
	}

	sortSignals(result)
	return result, nil
}

// GetAll retrieves all signals, ordered by (as_of_ms, signal_id) ASC.
func (s *SignalStore) GetAll(_ context.Context) ([]*domain.CandidateSignal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CandidateSignal, 0, len(s.data))
	for _, sig := range s.data {
		sigCopy := *sig
		result = append(result, &sigCopy)
	}

	sortSignals(result)
	return result, nil
}

func sortSignals(signals []*domain.CandidateSignal) {
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].AsOfMs != signals[j].AsOfMs {
			return signals[i].AsOfMs < signals[j].AsOfMs
		}
		return signals[i].SignalID < signals[j].SignalID
	})
}

var _ storage.SignalStore = (*SignalStore)(nil)
