package domain

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// WalletInfo is the ephemeral view of the current wallet session.
// It is rebuilt from the live adapter on every connect and never persisted.
type WalletInfo struct {
	PublicKey   string  `json:"publicKey"`
	Balance     float64 `json:"balance"` // SOL
	IsConnected bool    `json:"isConnected"`
}
