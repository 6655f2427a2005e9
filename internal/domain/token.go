package domain

// TokenMetadata is the provider-supplied identity of a token.
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
	Logo     string `json:"logo,omitempty"`
}

// DiscoveredToken is one entry of a discovery batch. Refreshed on every
// poll and held only in bounded in-memory windows, never persisted.
type DiscoveredToken struct {
	Mint             string  `json:"mint"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	Description      string  `json:"description"`
	Image            string  `json:"image"`
	Price            float64 `json:"price"` // USD
	MarketCap        float64 `json:"marketCap"`
	Volume24h        float64 `json:"volume24h"`
	Holders          int     `json:"holders"`
	CreatedTimestamp int64   `json:"createdTimestamp"` // unix ms

	// BondingCurveProgress is a 0-100 percentage toward liquidity
	// graduation; 100 together with IsGraduated means the token left
	// the launchpad curve.
	BondingCurveProgress float64 `json:"bondingCurveProgress"`
	IsGraduated          bool    `json:"isGraduated"`

	Twitter  string `json:"twitter,omitempty"`
	Telegram string `json:"telegram,omitempty"`
	Website  string `json:"website,omitempty"`
}
