package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

var h0 = time.Date(2023, 12, 7, 16, 0, 0, 0, time.UTC)

func hourly(offset int, venue string, price float64) domain.VenueHourlyPrice {
	p := price
	return domain.VenueHourlyPrice{
		Hour:      h0.Add(time.Duration(offset) * time.Hour),
		Venue:     venue,
		AvgPrice:  &p,
		SwapCount: 100,
	}
}

func TestHourlyPriceStore_OrderedByHourThenVenue(t *testing.T) {
	store := NewHourlyPriceStore()
	ctx := context.Background()

	rows := []domain.VenueHourlyPrice{
		hourly(2, "phoenix", 2.03),
		hourly(2, "orca_whirlpool", 2.04),
		hourly(0, "raydium_clmm", 2.5),
	}
	if err := store.InsertBulk(ctx, "jto", rows); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByToken(ctx, "jto")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	want := []string{"raydium_clmm", "orca_whirlpool", "phoenix"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(got))
	}
	for i, v := range want {
		if got[i].Venue != v {
			t.Errorf("position %d: got %s, want %s", i, got[i].Venue, v)
		}
	}

	ranged, err := store.GetByTimeRange(ctx, "jto", h0.Add(time.Hour), h0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(ranged) != 2 {
		t.Errorf("expected 2 rows in range, got %d", len(ranged))
	}
}

func TestHourlyPriceStore_Duplicates(t *testing.T) {
	store := NewHourlyPriceStore()
	ctx := context.Background()

	intra := []domain.VenueHourlyPrice{hourly(0, "orca_whirlpool", 2), hourly(0, "orca_whirlpool", 2.1)}
	if err := store.InsertBulk(ctx, "jto", intra); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	if err := store.InsertBulk(ctx, "jto", []domain.VenueHourlyPrice{hourly(0, "orca_whirlpool", 2)}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	// same hour expressed off the hour boundary
	late := hourly(0, "orca_whirlpool", 2)
	late.Hour = late.Hour.Add(15 * time.Minute)
	if err := store.InsertBulk(ctx, "jto", []domain.VenueHourlyPrice{late}); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	if err := store.InsertBulk(ctx, "pyth", []domain.VenueHourlyPrice{hourly(0, "orca_whirlpool", 0.4)}); err != nil {
		t.Errorf("other token must not collide: %v", err)
	}
	if err := store.InsertBulk(ctx, "jto", []domain.VenueHourlyPrice{{Hour: h0}}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty venue, got %v", err)
	}
}
