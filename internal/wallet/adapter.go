// Package wallet manages the lifecycle of a wallet session: adapter
// discovery, connect/disconnect, balance, change subscriptions and
// buddy deployments tied to the connected wallet.
package wallet

import (
	"context"
	"errors"
)

// Event identifies an out-of-band notification emitted by an adapter.
type Event string

const (
	// EventDisconnect fires when the adapter drops the session on its own.
	EventDisconnect Event = "disconnect"
	// EventAccountChanged fires when the user switches accounts inside
	// the wallet. The payload carries the new public key, empty when the
	// wallet revoked access entirely.
	EventAccountChanged Event = "accountChanged"
)

// Adapter is the narrow surface of an injected wallet adapter.
// Implementations bridge to a browser extension, a remote signer or a
// test stub.
type Adapter interface {
	// Name returns the adapter's identifier, e.g. "phantom".
	Name() string

	// Connected reports whether the adapter already holds an approved session.
	Connected() bool

	// PublicKey returns the base58 public key of the approved session,
	// empty when not connected.
	PublicKey() string

	// Connect requests user approval and returns the approved public key.
	// Returns an error wrapping ErrUserRejected or ErrRequestPending when
	// the request is declined or already in flight.
	Connect(ctx context.Context) (string, error)

	// Disconnect revokes the session. Best effort.
	Disconnect(ctx context.Context) error

	// On registers a handler for an out-of-band event and returns a
	// function that unregisters it.
	On(event Event, fn func(publicKey string)) func()
}

// Locator resolves an adapter by name. Lookup returns false while the
// adapter has not been injected yet; callers poll for late injection.
type Locator interface {
	Lookup(name string) (Adapter, bool)
}

// Adapter-level failure causes. Adapters return errors wrapping these so
// the session manager can map them to user-displayable failures.
var (
	ErrUserRejected   = errors.New("user rejected the request")
	ErrRequestPending = errors.New("a request is already pending")
)
