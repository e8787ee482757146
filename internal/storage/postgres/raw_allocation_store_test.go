package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

func TestRawAllocationStore_RoundTrip(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRawAllocationStore(pool)
	ctx := context.Background()

	rows := []domain.RawAllocation{
		{
			Source:     domain.SourceCryptoRank,
			Label:      "Community Growth",
			Percentage: ptr(34.3),
			Vesting: &domain.VestingTerms{
				TGEUnlockPct:   ptr(0.0),
				CliffMonths:    ptr(12),
				VestingMonths:  ptr(36),
				Schedule:       domain.ScheduleLinear,
				RawDescription: "12 month cliff, 36 months linear",
			},
		},
		{Source: domain.SourceCoinGecko, Label: "Airdrop", Percentage: ptr(10.0)},
		{Source: domain.SourceCryptoRank, Label: "Investors", Percentage: ptr(16.2), Amount: ptr(162e6)},
	}
	require.NoError(t, store.InsertBulk(ctx, "jito-governance-token", rows))

	got, err := store.GetByToken(ctx, "jito-governance-token")
	require.NoError(t, err)
	require.Len(t, got, 3)

	// ordered by source, then position
	assert.Equal(t, domain.SourceCoinGecko, got[0].Source)
	assert.Equal(t, "Community Growth", got[1].Label)
	assert.Equal(t, "Investors", got[2].Label)

	require.NotNil(t, got[1].Vesting)
	assert.Equal(t, rows[0].Vesting, got[1].Vesting)
	assert.Nil(t, got[0].Vesting)
	assert.Equal(t, 162e6, *got[2].Amount)
	assert.Nil(t, got[0].Amount)
}

func TestRawAllocationStore_DuplicateRollsBack(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewRawAllocationStore(pool)
	ctx := context.Background()

	first := []domain.RawAllocation{{Source: domain.SourceManual, Label: "Team", Percentage: ptr(20.0)}}
	require.NoError(t, store.InsertBulk(ctx, "tok", first))

	second := []domain.RawAllocation{
		{Source: domain.SourceCoinGecko, Label: "Team", Percentage: ptr(20.0)},
		{Source: domain.SourceManual, Label: "Team", Percentage: ptr(20.0)},
	}
	assert.ErrorIs(t, store.InsertBulk(ctx, "tok", second), storage.ErrDuplicateKey)

	got, err := store.GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch must roll back")

	assert.ErrorIs(t, store.InsertBulk(ctx, "", first), storage.ErrInvalidInput)
}
