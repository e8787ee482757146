package memory

import (
	"context"
	"sync"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

// RawAllocationStore is an in-memory implementation of storage.RawAllocationStore.
type RawAllocationStore struct {
	mu      sync.RWMutex
	ids     map[string]struct{}
	byToken map[string][]domain.RawAllocation
}

// NewRawAllocationStore creates a new in-memory raw allocation store.
func NewRawAllocationStore() *RawAllocationStore {
	return &RawAllocationStore{
		ids:     make(map[string]struct{}),
		byToken: make(map[string][]domain.RawAllocation),
	}
}

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *RawAllocationStore) InsertBulk(_ context.Context, tokenKey string, rows []domain.RawAllocation) error {
	if tokenKey == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	keys := storage.AllocationKeys(tokenKey, rows)

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range keys {
		if _, exists := s.ids[k.ID]; exists {
			return storage.ErrDuplicateKey
		}
	}

	for i, k := range keys {
		s.ids[k.ID] = struct{}{}
		s.byToken[tokenKey] = append(s.byToken[tokenKey], rows[i])
	}
	return nil
}

// GetByToken retrieves rows for a token in insertion order.
func (s *RawAllocationStore) GetByToken(_ context.Context, tokenKey string) ([]domain.RawAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byToken[tokenKey]
	out := make([]domain.RawAllocation, len(rows))
	copy(out, rows)
	return out, nil
}

var _ storage.RawAllocationStore = (*RawAllocationStore)(nil)
