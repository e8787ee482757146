package memory

import (
	"context"
	"sort"
	"sync"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/provider"
	"token-listing-lab/internal/storage"
)

// AnalysisStore is an in-memory implementation of storage.AnalysisStore.
type AnalysisStore struct {
	mu      sync.RWMutex
	byID    map[string]*domain.ListingResult
	byToken map[string][]string // token key -> analysis IDs
}

// NewAnalysisStore creates a new in-memory analysis store.
func NewAnalysisStore() *AnalysisStore {
	return &AnalysisStore{
		byID:    make(map[string]*domain.ListingResult),
		byToken: make(map[string][]string),
	}
}

// Insert adds a result. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(_ context.Context, r *domain.ListingResult) error {
	if r == nil || r.AnalysisID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.AnalysisID]; exists {
		return storage.ErrDuplicateKey
	}

	resultCopy := *r
	s.byID[r.AnalysisID] = &resultCopy
	key := provider.TokenKey(r.Token)
	s.byToken[key] = append(s.byToken[key], r.AnalysisID)
	return nil
}

// GetByID retrieves a result by analysis ID. Returns ErrNotFound if not exists.
func (s *AnalysisStore) GetByID(_ context.Context, analysisID string) (*domain.ListingResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.byID[analysisID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	resultCopy := *r
	return &resultCopy, nil
}

// GetByToken retrieves all results for a token key, newest first.
func (s *AnalysisStore) GetByToken(_ context.Context, tokenKey string) ([]*domain.ListingResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byToken[tokenKey]
	out := make([]*domain.ListingResult, 0, len(ids))
	for _, id := range ids {
		resultCopy := *s.byID[id]
		out = append(out, &resultCopy)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AnalyzedAt.After(out[j].AnalyzedAt)
	})
	return out, nil
}

var _ storage.AnalysisStore = (*AnalysisStore)(nil)
