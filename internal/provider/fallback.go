package provider

import (
	"context"
	"errors"

	"token-listing-lab/internal/domain"
)

// FirstSupply asks each source in order and returns the first answer.
// A source reporting ErrNoData or ErrTokenNotFound passes the token on;
// any other error stops the chain. Nil sources are skipped.
func FirstSupply(sources ...SupplySource) SupplySource {
	var chain []SupplySource
	for _, s := range sources {
		if s != nil {
			chain = append(chain, s)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return &firstSupply{chain: chain}
}

type firstSupply struct {
	chain []SupplySource
}

// Source reports the primary source.
func (f *firstSupply) Source() domain.DataSource { return f.chain[0].Source() }

func (f *firstSupply) Supply(ctx context.Context, token domain.TokenInfo) (*domain.SupplyData, error) {
	var err error
	for _, s := range f.chain {
		var v *domain.SupplyData
		v, err = s.Supply(ctx, token)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNoData) && !errors.Is(err, ErrTokenNotFound) {
			return nil, err
		}
	}
	return nil, err
}

// FirstResolver resolves through each resolver in order, moving on when a
// resolver does not know the token.
func FirstResolver(resolvers ...TokenResolver) TokenResolver {
	var chain []TokenResolver
	for _, r := range resolvers {
		if r != nil {
			chain = append(chain, r)
		}
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	}
	return firstResolver(chain)
}

type firstResolver []TokenResolver

func (f firstResolver) Token(ctx context.Context, id string) (domain.TokenInfo, error) {
	var err error
	for _, r := range f {
		var t domain.TokenInfo
		t, err = r.Token(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTokenNotFound) && !errors.Is(err, ErrNoData) {
			return domain.TokenInfo{}, err
		}
	}
	return domain.TokenInfo{}, err
}
