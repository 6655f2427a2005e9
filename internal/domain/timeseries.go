package domain

// PricePoint is one observed USD price for a mint. The discovery monitor
// emits a point for every successful price fetch.
type PricePoint struct {
	Mint        string  `json:"mint"`
	TimestampMs int64   `json:"timestampMs"`
	PriceUSD    float64 `json:"priceUsd"`
}
