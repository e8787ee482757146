package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

type hourlyKey struct {
	token string
	hour  int64
	venue string
}

// HourlyPriceStore is an in-memory implementation of storage.HourlyPriceStore.
type HourlyPriceStore struct {
	mu      sync.RWMutex
	keys    map[hourlyKey]struct{}
	byToken map[string][]domain.VenueHourlyPrice
}

// NewHourlyPriceStore creates a new in-memory hourly price store.
func NewHourlyPriceStore() *HourlyPriceStore {
	return &HourlyPriceStore{
		keys:    make(map[hourlyKey]struct{}),
		byToken: make(map[string][]domain.VenueHourlyPrice),
	}
}

// InsertBulk adds rows. Fails entire batch on duplicate (token, hour, venue).
func (s *HourlyPriceStore) InsertBulk(_ context.Context, tokenKey string, rows []domain.VenueHourlyPrice) error {
	if tokenKey == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[hourlyKey]struct{}, len(rows))
	for _, r := range rows {
		if r.Venue == "" {
			return storage.ErrInvalidInput
		}
		k := hourlyKey{tokenKey, r.Hour.UTC().Truncate(time.Hour).Unix(), r.Venue}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.keys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for k := range batch {
		s.keys[k] = struct{}{}
	}
	for _, r := range rows {
		r.Hour = r.Hour.UTC().Truncate(time.Hour)
		s.byToken[tokenKey] = append(s.byToken[tokenKey], r)
	}
	sortHourly(s.byToken[tokenKey])
	return nil
}

// GetByToken retrieves rows for a token ordered by hour, then venue.
func (s *HourlyPriceStore) GetByToken(_ context.Context, tokenKey string) ([]domain.VenueHourlyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := s.byToken[tokenKey]
	out := make([]domain.VenueHourlyPrice, len(rows))
	copy(out, rows)
	return out, nil
}

// GetByTimeRange retrieves rows with hour within [start, end] (inclusive).
func (s *HourlyPriceStore) GetByTimeRange(_ context.Context, tokenKey string, start, end time.Time) ([]domain.VenueHourlyPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.VenueHourlyPrice
	for _, r := range s.byToken[tokenKey] {
		if !r.Hour.Before(start) && !r.Hour.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func sortHourly(rows []domain.VenueHourlyPrice) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Hour.Equal(rows[j].Hour) {
			return rows[i].Hour.Before(rows[j].Hour)
		}
		return rows[i].Venue < rows[j].Venue
	})
}

var _ storage.HourlyPriceStore = (*HourlyPriceStore)(nil)
