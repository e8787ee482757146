package storage

import (
	"context"
	"errors"
	"fmt"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/idhash"
	"token-listing-lab/internal/provider"
)

// Stores groups the backends a run persists into. Nil members are skipped.
type Stores struct {
	Analyses     AnalysisStore
	Allocations  RawAllocationStore
	HourlyPrices HourlyPriceStore
}

// Run is what one analysis persists.
type Run struct {
	Result       *domain.ListingResult
	Allocations  []domain.RawAllocation
	HourlyPrices []domain.VenueHourlyPrice
}

// Save writes a run. Analysis IDs are deterministic, so rows already
// stored by an identical earlier run are left as they are.
func (s Stores) Save(ctx context.Context, run Run) error {
	if run.Result == nil || run.Result.AnalysisID == "" {
		return fmt.Errorf("%w: result without analysis id", ErrInvalidInput)
	}
	key := provider.TokenKey(run.Result.Token)

	if s.Analyses != nil {
		if err := ignoreDuplicate(s.Analyses.Insert(ctx, run.Result)); err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
	}
	if s.Allocations != nil && len(run.Allocations) > 0 {
		if err := ignoreDuplicate(s.Allocations.InsertBulk(ctx, key, run.Allocations)); err != nil {
			return fmt.Errorf("save allocations: %w", err)
		}
	}
	if s.HourlyPrices != nil && len(run.HourlyPrices) > 0 {
		if err := ignoreDuplicate(s.HourlyPrices.InsertBulk(ctx, key, run.HourlyPrices)); err != nil {
			return fmt.Errorf("save hourly prices: %w", err)
		}
	}
	return nil
}

func ignoreDuplicate(err error) error {
	if errors.Is(err, ErrDuplicateKey) {
		return nil
	}
	return err
}

var (
	_ provider.HourlyPriceSource = (*HourlyPriceSource)(nil)
	_ provider.AllocationSource  = (*AllocationSource)(nil)
)

// HourlyPriceSource serves stored hourly aggregates to the analyzer.
type HourlyPriceSource struct {
	store  HourlyPriceStore
	source domain.DataSource
}

// NewHourlyPriceSource adapts store, reporting rows as coming from source.
func NewHourlyPriceSource(store HourlyPriceStore, source domain.DataSource) *HourlyPriceSource {
	return &HourlyPriceSource{store: store, source: source}
}

// Source implements provider.Named.
func (s *HourlyPriceSource) Source() domain.DataSource { return s.source }

// HourlyPrices implements provider.HourlyPriceSource.
func (s *HourlyPriceSource) HourlyPrices(ctx context.Context, token domain.TokenInfo) ([]domain.VenueHourlyPrice, error) {
	rows, err := s.store.GetByToken(ctx, provider.TokenKey(token))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, provider.ErrNoData
	}
	return rows, nil
}

// AllocationSource serves stored raw allocations of one source.
type AllocationSource struct {
	store  RawAllocationStore
	source domain.DataSource
}

// NewAllocationSource adapts store, returning only rows from source.
func NewAllocationSource(store RawAllocationStore, source domain.DataSource) *AllocationSource {
	return &AllocationSource{store: store, source: source}
}

// Source implements provider.Named.
func (s *AllocationSource) Source() domain.DataSource { return s.source }

// Allocations implements provider.AllocationSource.
func (s *AllocationSource) Allocations(ctx context.Context, token domain.TokenInfo) ([]domain.RawAllocation, error) {
	rows, err := s.store.GetByToken(ctx, provider.TokenKey(token))
	if err != nil {
		return nil, err
	}
	var out []domain.RawAllocation
	for _, r := range rows {
		if r.Source == s.source {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return nil, provider.ErrNoData
	}
	return out, nil
}

// AllocationKey is the identity of one stored raw allocation row.
type AllocationKey struct {
	ID       string
	Position int // index among rows of the same source
}

// AllocationKeys assigns identities to rows in batch order.
func AllocationKeys(tokenKey string, rows []domain.RawAllocation) []AllocationKey {
	positions := make(map[domain.DataSource]int)
	keys := make([]AllocationKey, len(rows))
	for i, r := range rows {
		pos := positions[r.Source]
		positions[r.Source] = pos + 1
		keys[i] = AllocationKey{
			ID:       idhash.ComputeAllocationID(tokenKey, string(r.Source), r.Label, pos),
			Position: pos,
		}
	}
	return keys
}
