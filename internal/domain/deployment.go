package domain

import "fmt"

// Strategy identifies a buddy trading strategy preset.
type Strategy string

// Supported strategies.
const (
	StrategyMomentum     Strategy = "momentum"
	StrategyConservative Strategy = "conservative"
	StrategyAggressive   Strategy = "aggressive"
	StrategyScalping     Strategy = "scalping"
)

// Valid reports whether the strategy is one of the supported presets.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyMomentum, StrategyConservative, StrategyAggressive, StrategyScalping:
		return true
	}
	return false
}

// TradingMode selects demo or live execution.
type TradingMode string

// Supported trading modes.
const (
	ModeDemo TradingMode = "demo"
	ModeLive TradingMode = "live"
)

// Valid reports whether the mode is demo or live.
func (m TradingMode) Valid() bool {
	return m == ModeDemo || m == ModeLive
}

// BuddyConfiguration holds the tunable parameters of a deployed buddy.
type BuddyConfiguration struct {
	RiskLevel    int         `json:"riskLevel"` // 0-100
	Strategy     Strategy    `json:"strategy"`
	MaxTradeSize float64     `json:"maxTradeSize"` // SOL
	Mode         TradingMode `json:"mode"`
}

// Validate checks configuration bounds and enum membership.
func (c BuddyConfiguration) Validate() error {
	if c.RiskLevel < 0 || c.RiskLevel > 100 {
		return fmt.Errorf("risk level %d out of range [0,100]", c.RiskLevel)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	if c.MaxTradeSize <= 0 {
		return fmt.Errorf("max trade size must be positive, got %v", c.MaxTradeSize)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("unknown trading mode %q", c.Mode)
	}
	return nil
}

// BuddyDeployment is the durable record of a configured trading buddy
// bound to a wallet address. Records are appended and deactivated, never
// deleted; at most one record per wallet is active at a time.
type BuddyDeployment struct {
	ID            string             `json:"id"`
	WalletAddress string             `json:"walletAddress"`
	DeployedAt    int64              `json:"deployedAt"` // unix ms
	BuddyName     string             `json:"buddyName"`
	Configuration BuddyConfiguration `json:"configuration"`
	IsActive      bool               `json:"isActive"`
}
