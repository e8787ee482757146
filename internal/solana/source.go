package solana

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
	"token-listing-lab/internal/provider"
)

// ChainName is the chain label attached to tokens resolved on Solana.
const ChainName = "solana"

var (
	_ provider.SupplySource  = (*ChainSource)(nil)
	_ provider.TokenResolver = (*ChainSource)(nil)
)

// ChainSource reads supply and metadata straight from mint accounts.
type ChainSource struct {
	rpc RPCClient
	log logrus.FieldLogger
}

// NewChainSource creates a source over rpc.
func NewChainSource(rpc RPCClient, log logrus.FieldLogger) *ChainSource {
	return &ChainSource{rpc: rpc, log: logger.Component(log, "solana")}
}

// Source implements provider.Named.
func (s *ChainSource) Source() domain.DataSource { return domain.SourceSolanaRPC }

// Supply returns the current on-chain supply. A mint whose authority is
// revoked has a fixed supply, reported as max supply too. Circulating
// figures are not derivable from the mint and stay unset.
func (s *ChainSource) Supply(ctx context.Context, token domain.TokenInfo) (*domain.SupplyData, error) {
	if !onSolana(token) {
		return nil, provider.ErrNoData
	}

	mint, err := s.fetchMint(ctx, token.Mint)
	if err != nil {
		return nil, err
	}

	amt, err := s.rpc.GetTokenSupply(ctx, token.Mint)
	if err != nil {
		return nil, fmt.Errorf("get token supply: %w", err)
	}
	ui, err := amt.Value()
	if err != nil {
		return nil, err
	}

	total, _ := ui.Float64()
	out := &domain.SupplyData{
		TotalSupply: &total,
		Source:      domain.SourceSolanaRPC,
	}
	if mint.FixedSupply() {
		maxSupply := total
		out.MaxSupply = &maxSupply
	}

	s.log.WithFields(logrus.Fields{
		"mint":     token.Mint,
		"supply":   ui.String(),
		"decimals": mint.Decimals,
		"fixed":    mint.FixedSupply(),
	}).Debug("on-chain supply")

	return out, nil
}

// Token resolves a mint address to token info using Metaplex metadata.
// Identifiers that are not addresses are reported as not found.
func (s *ChainSource) Token(ctx context.Context, id string) (domain.TokenInfo, error) {
	if !IsAddress(id) {
		return domain.TokenInfo{}, fmt.Errorf("%w: %s", provider.ErrTokenNotFound, id)
	}
	if _, err := s.fetchMint(ctx, id); err != nil {
		return domain.TokenInfo{}, err
	}

	info := domain.TokenInfo{ID: id, Mint: id, Chain: ChainName}

	pda, err := MetadataPDA(id)
	if err != nil {
		return info, nil
	}
	acct, err := s.rpc.GetAccountInfo(ctx, pda)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("get metadata account: %w", err)
	}
	if acct == nil {
		return info, nil
	}
	meta, err := ParseMetadata(acct.Data)
	if err != nil {
		s.log.WithError(err).WithField("mint", id).Warn("unreadable token metadata")
		return info, nil
	}
	info.Name = meta.Name
	info.Symbol = meta.Symbol
	return info, nil
}

func (s *ChainSource) fetchMint(ctx context.Context, addr string) (*Mint, error) {
	acct, err := s.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get mint account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("%w: mint %s", provider.ErrTokenNotFound, addr)
	}
	if acct.Owner != TokenProgramID && acct.Owner != Token2022ProgramID {
		return nil, fmt.Errorf("%w: %s is owned by %s, not a token program", ErrInvalidAddress, addr, acct.Owner)
	}
	return ParseMint(acct.Data)
}

func onSolana(t domain.TokenInfo) bool {
	if t.Mint == "" {
		return false
	}
	return t.Chain == "" || strings.EqualFold(t.Chain, ChainName)
}
