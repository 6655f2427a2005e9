package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeDeploymentID computes a deterministic deployment id using SHA256.
// Formula: SHA256(wallet_address|buddy_name|deployed_at_ms)
// Returns hex-encoded hash (64 characters).
func ComputeDeploymentID(walletAddress, buddyName string, deployedAt int64) string {
	data := fmt.Sprintf("%s|%s|%d", walletAddress, buddyName, deployedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic id for a simulated trade.
// Formula: SHA256(mint|side|amount_sol|executed_at_ms)
func ComputeTradeID(mint, side string, amountSOL float64, executedAt int64) string {
	data := fmt.Sprintf("%s|%s|%g|%d", mint, side, amountSOL, executedAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
