package domain

// Trade sides.
const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"
)

// SimulatedTrade is the outcome of a demo-mode execution. No real order
// is routed; fills are synthesized around the quoted price.
type SimulatedTrade struct {
	TradeID    string  `json:"tradeId"`
	Mint       string  `json:"mint"`
	Side       string  `json:"side"`
	AmountSOL  float64 `json:"amountSol"`
	QuotePrice float64 `json:"quotePrice"` // USD price at submission
	FillPrice  float64 `json:"fillPrice"`  // after simulated slippage
	FeeSOL     float64 `json:"feeSol"`
	ProfitUSD  float64 `json:"profitUsd"` // synthesized outcome
	ExecutedAt int64   `json:"executedAt"` // unix ms
}

// Slippage returns the signed fill deviation as a fraction of the quote.
func (t *SimulatedTrade) Slippage() float64 {
	if t.QuotePrice == 0 {
		return 0
	}
	return (t.FillPrice - t.QuotePrice) / t.QuotePrice
}
