package storage

import (
	"context"
	"time"

	"token-listing-lab/internal/domain"
)

// AnalysisStore persists analysis results keyed by their deterministic ID.
type AnalysisStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if analysis_id exists.
	Insert(ctx context.Context, r *domain.ListingResult) error

	// GetByID retrieves a result by analysis ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, analysisID string) (*domain.ListingResult, error)

	// GetByToken retrieves all results for a token key, newest first.
	GetByToken(ctx context.Context, tokenKey string) ([]*domain.ListingResult, error)
}

// RawAllocationStore persists raw allocation rows as collected per source.
type RawAllocationStore interface {
	// InsertBulk adds rows for a token atomically. Row identity is
	// (token, source, label, position); fails the batch on any duplicate.
	InsertBulk(ctx context.Context, tokenKey string, rows []domain.RawAllocation) error

	// GetByToken retrieves rows for a token in insertion order per source.
	GetByToken(ctx context.Context, tokenKey string) ([]domain.RawAllocation, error)
}

// HourlyPriceStore persists per-venue hourly DEX aggregates.
type HourlyPriceStore interface {
	// InsertBulk adds rows. Fails entire batch on duplicate (token, hour, venue).
	InsertBulk(ctx context.Context, tokenKey string, rows []domain.VenueHourlyPrice) error

	// GetByToken retrieves rows for a token ordered by hour, then venue.
	GetByToken(ctx context.Context, tokenKey string) ([]domain.VenueHourlyPrice, error)

	// GetByTimeRange retrieves rows with hour within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, tokenKey string, start, end time.Time) ([]domain.VenueHourlyPrice, error)
}
