package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

var h18 = time.Date(2023, 12, 7, 18, 0, 0, 0, time.UTC)

func TestHourlyPriceStore_InsertAndQuery(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHourlyPriceStore(conn)
	ctx := context.Background()

	rows := []domain.VenueHourlyPrice{
		{Hour: h18, Venue: "phoenix", AvgPrice: ptr(2.03565), SwapCount: 2791},
		{Hour: h18, Venue: "orca_whirlpool", AvgPrice: ptr(2.0356), SwapCount: 12154, Volume: ptr(2.4e7)},
		{Hour: h18.Add(-2 * time.Hour), Venue: "orca_whirlpool", SwapCount: 27791},
	}
	require.NoError(t, store.InsertBulk(ctx, "jto", rows))

	got, err := store.GetByToken(ctx, "jto")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.True(t, got[0].Hour.Equal(h18.Add(-2*time.Hour)))
	assert.Nil(t, got[0].AvgPrice)
	assert.Equal(t, 27791, got[0].SwapCount)
	assert.Equal(t, "orca_whirlpool", got[1].Venue)
	assert.Equal(t, 2.4e7, *got[1].Volume)
	assert.Equal(t, "phoenix", got[2].Venue)
	assert.Nil(t, got[2].Volume)

	ranged, err := store.GetByTimeRange(ctx, "jto", h18, h18.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, ranged, 2)
}

func TestHourlyPriceStore_Duplicates(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewHourlyPriceStore(conn)
	ctx := context.Background()

	row := domain.VenueHourlyPrice{Hour: h18, Venue: "phoenix", AvgPrice: ptr(2.03), SwapCount: 10}
	require.NoError(t, store.InsertBulk(ctx, "jto", []domain.VenueHourlyPrice{row}))

	assert.ErrorIs(t, store.InsertBulk(ctx, "jto", []domain.VenueHourlyPrice{row}), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.InsertBulk(ctx, "pyth", []domain.VenueHourlyPrice{row, row}), storage.ErrDuplicateKey)
	assert.NoError(t, store.InsertBulk(ctx, "pyth", []domain.VenueHourlyPrice{row}))
	assert.ErrorIs(t, store.InsertBulk(ctx, "", []domain.VenueHourlyPrice{row}), storage.ErrInvalidInput)
}
