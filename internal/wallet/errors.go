package wallet

import "errors"

// Session-level failures. Messages are user-displayable as-is.
var (
	// ErrAdapterNotFound means the adapter never showed up within the
	// presence-polling window.
	ErrAdapterNotFound = errors.New("wallet not found. Please install Phantom from https://phantom.app/ and reload")

	// ErrNotSupportedWallet means the requested wallet name is not one
	// this session manager knows how to drive.
	ErrNotSupportedWallet = errors.New("this wallet is not supported")

	// ErrConnectionRejected means the user declined the connection request.
	ErrConnectionRejected = errors.New("connection request was rejected. Please approve the request in your wallet")

	// ErrConnectionPending means a connection request is already awaiting
	// approval in the wallet.
	ErrConnectionPending = errors.New("a connection request is already pending. Please check your wallet extension")

	// ErrNotConnected means the operation needs an established session.
	ErrNotConnected = errors.New("wallet not connected")
)
