package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ValidateAddress checks that addr is a plausible Solana account address:
// base58, exactly 32 bytes, and a valid ed25519 curve point. Program
// derived addresses are off-curve by construction and are rejected here,
// which is what we want for user wallets and token mints.
func ValidateAddress(addr string) error {
	decoded, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("decode base58: %w", err)
	}
	if len(decoded) != 32 {
		return fmt.Errorf("address must decode to 32 bytes, got %d", len(decoded))
	}
	if !isOnCurve(decoded) {
		return fmt.Errorf("address is not an ed25519 point")
	}
	return nil
}

// IsValidAddress reports whether addr passes ValidateAddress.
func IsValidAddress(addr string) bool {
	return ValidateAddress(addr) == nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
