package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-listing-lab/internal/domain"
)

func TestFirstSupply_FallsThroughNoData(t *testing.T) {
	empty := &countingSupply{err: ErrNoData}
	backup := &countingSupply{}

	src := FirstSupply(nil, empty, backup)
	v, err := src.Supply(context.Background(), domain.TokenInfo{ID: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *v.TotalSupply)
	assert.Equal(t, 1, empty.calls)
	assert.Equal(t, 1, backup.calls)
	assert.Equal(t, domain.SourceSolanaRPC, src.Source())
}

func TestFirstSupply_StopsOnHardError(t *testing.T) {
	boom := errors.New("boom")
	failing := &countingSupply{err: boom}
	backup := &countingSupply{}

	_, err := FirstSupply(failing, backup).Supply(context.Background(), domain.TokenInfo{ID: "x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, backup.calls)
}

func TestFirstSupply_AllEmpty(t *testing.T) {
	a := &countingSupply{err: ErrNoData}
	b := &countingSupply{err: ErrTokenNotFound}

	_, err := FirstSupply(a, b).Supply(context.Background(), domain.TokenInfo{ID: "x"})
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFirstSupply_Collapses(t *testing.T) {
	assert.Nil(t, FirstSupply())
	assert.Nil(t, FirstSupply(nil))

	only := &countingSupply{}
	assert.Same(t, only, FirstSupply(nil, only))
}

func TestFirstResolver(t *testing.T) {
	demo := DemoBundle()
	r := FirstResolver(NewBundle("empty"), demo)

	tok, err := r.Token(context.Background(), "JTO")
	require.NoError(t, err)
	assert.Equal(t, "jito-governance-token", tok.ID)

	_, err = r.Token(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	assert.Nil(t, FirstResolver(nil))
}
