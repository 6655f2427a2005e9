package stub

import (
	"context"
	"errors"

	"trenches-buddy/internal/solana"
)

// ErrUnavailable simulates an unreachable RPC endpoint.
var ErrUnavailable = errors.New("rpc unavailable")

// RPCClient implements solana.RPCClient for testing.
type RPCClient struct {
	Balances map[string]uint64
	Accounts map[string]*solana.AccountInfo
	Slot     int64

	// Fail makes every call return ErrUnavailable.
	Fail bool
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Balances: make(map[string]uint64),
		Accounts: make(map[string]*solana.AccountInfo),
	}
}

var _ solana.RPCClient = (*RPCClient)(nil)

// GetBalance retrieves a lamport balance from the stub store.
// Unknown accounts have balance 0, matching the live RPC.
func (c *RPCClient) GetBalance(_ context.Context, pubkey string) (uint64, error) {
	if c.Fail {
		return 0, ErrUnavailable
	}
	return c.Balances[pubkey], nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (int64, error) {
	if c.Fail {
		return 0, ErrUnavailable
	}
	return c.Slot, nil
}

// GetAccountInfo retrieves account info from the stub store.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
	if c.Fail {
		return nil, ErrUnavailable
	}
	return c.Accounts[pubkey], nil
}
