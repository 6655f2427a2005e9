package solana

import "context"

// WSClient defines the Solana WebSocket subscription surface.
type WSClient interface {
	// SubscribeAccount subscribes to lamport changes of an account.
	SubscribeAccount(ctx context.Context, pubkey string) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// AccountNotification is one accountNotification message for a watched
// account. Lamports is the post-change balance.
type AccountNotification struct {
	Pubkey   string
	Lamports uint64
	Slot     int64
}
