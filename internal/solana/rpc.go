package solana

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// RPCClient defines the Solana RPC calls the supply source needs.
type RPCClient interface {
	// GetAccountInfo retrieves an account by public key. Returns nil if the
	// account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenSupply retrieves the current supply of an SPL token mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenAmount, error)
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAmount is an SPL token quantity as returned by the RPC.
type TokenAmount struct {
	Amount         string `json:"amount"` // raw integer, no decimals applied
	Decimals       int    `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

// Value returns the amount with decimals applied.
func (t TokenAmount) Value() (decimal.Decimal, error) {
	raw, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse token amount %q: %w", t.Amount, err)
	}
	return raw.Shift(-int32(t.Decimals)), nil
}
