// Package stub provides an in-memory solana.RPCClient for tests.
package stub

import (
	"context"
	"errors"
	"sync"

	"token-listing-lab/internal/solana"
)

// ErrUnavailable simulates a transport failure.
var ErrUnavailable = errors.New("rpc unavailable")

// RPCClient implements solana.RPCClient from maps.
type RPCClient struct {
	mu       sync.Mutex
	Accounts map[string]*solana.AccountInfo
	Supplies map[string]*solana.TokenAmount
	Fail     bool
	Calls    int
}

// NewRPCClient creates an empty stub.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[string]*solana.AccountInfo),
		Supplies: make(map[string]*solana.TokenAmount),
	}
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Fail {
		return nil, ErrUnavailable
	}
	return c.Accounts[pubkey], nil
}

// GetTokenSupply returns the stored supply.
func (c *RPCClient) GetTokenSupply(_ context.Context, mint string) (*solana.TokenAmount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls++
	if c.Fail {
		return nil, ErrUnavailable
	}
	amt, ok := c.Supplies[mint]
	if !ok {
		return nil, errors.New("mint not found")
	}
	return amt, nil
}
