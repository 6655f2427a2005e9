package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/idhash"
	"trenches-buddy/internal/observability"
)

// Trader errors
var (
	ErrLiveModeUnsupported = errors.New("live trading is not supported, only demo mode")
	ErrNoQuote             = errors.New("no price quote available for mint")
)

const (
	// Base network fee of a single Solana transaction, 5000 lamports.
	defaultFeeSOL = 0.000005

	// Fills land within 2% of the quote in either direction's worst case.
	defaultMaxSlippage = 0.02

	// Synthesized per-trade outcome range in USD, uniform over
	// [-profitSpreadUSD/2, +profitSpreadUSD/2].
	profitSpreadUSD = 100.0
)

// Quoter supplies a USD quote for a mint. The bool is false when the
// provider has no price for the token.
type Quoter interface {
	TokenPriceUSD(ctx context.Context, mint string) (float64, bool, error)
}

// Order describes a demo trade to execute.
type Order struct {
	Mint      string             `json:"mint"`
	Side      string             `json:"side"` // BUY or SELL
	AmountSOL float64            `json:"amountSol"`
	Mode      domain.TradingMode `json:"mode"`
}

// Validate checks order fields at the package boundary.
func (o Order) Validate() error {
	if o.Mint == "" {
		return errors.New("order mint is required")
	}
	if o.Side != domain.TradeSideBuy && o.Side != domain.TradeSideSell {
		return fmt.Errorf("unknown trade side %q", o.Side)
	}
	if o.AmountSOL <= 0 {
		return fmt.Errorf("order amount must be positive, got %v", o.AmountSOL)
	}
	return nil
}

// Trader fills demo orders against quoted prices. Fills are synthesized
// with bounded slippage; nothing is routed to a real venue.
type Trader struct {
	quotes      Quoter
	logger      *zap.Logger
	now         func() time.Time
	feeSOL      float64
	maxSlippage float64

	randMu sync.Mutex
	rand   *rand.Rand
}

// TraderOptions contains configuration for creating a Trader.
type TraderOptions struct {
	Quotes      Quoter
	Logger      *zap.Logger
	Now         func() time.Time
	FeeSOL      float64
	MaxSlippage float64
	Seed        int64 // 0 means time-seeded
}

// NewTrader creates a demo trader.
func NewTrader(opts TraderOptions) *Trader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	feeSOL := opts.FeeSOL
	if feeSOL == 0 {
		feeSOL = defaultFeeSOL
	}
	maxSlippage := opts.MaxSlippage
	if maxSlippage == 0 {
		maxSlippage = defaultMaxSlippage
	}
	seed := opts.Seed
	if seed == 0 {
		seed = now().UnixNano()
	}

	return &Trader{
		quotes:      opts.Quotes,
		logger:      logger.Named("trader"),
		now:         now,
		feeSOL:      feeSOL,
		maxSlippage: maxSlippage,
		rand:        rand.New(rand.NewSource(seed)),
	}
}

// Execute fills a demo order. Buys fill at or above the quote, sells at
// or below it. Live orders are rejected.
func (t *Trader) Execute(ctx context.Context, order Order) (*domain.SimulatedTrade, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.Mode == domain.ModeLive {
		return nil, ErrLiveModeUnsupported
	}

	quote, ok, err := t.quotes.TokenPriceUSD(ctx, order.Mint)
	if err != nil {
		return nil, fmt.Errorf("fetch quote for %s: %w", order.Mint, err)
	}
	if !ok || quote <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoQuote, order.Mint)
	}

	t.randMu.Lock()
	slip := t.rand.Float64() * t.maxSlippage
	profit := (t.rand.Float64() - 0.5) * profitSpreadUSD
	t.randMu.Unlock()

	fill := quote * (1 + slip)
	if order.Side == domain.TradeSideSell {
		fill = quote * (1 - slip)
	}

	executedAt := t.now().UnixMilli()
	trade := &domain.SimulatedTrade{
		TradeID:    idhash.ComputeTradeID(order.Mint, order.Side, order.AmountSOL, executedAt),
		Mint:       order.Mint,
		Side:       order.Side,
		AmountSOL:  order.AmountSOL,
		QuotePrice: quote,
		FillPrice:  fill,
		FeeSOL:     t.feeSOL,
		ProfitUSD:  profit,
		ExecutedAt: executedAt,
	}

	observability.RecordTradeSimulated(order.Side)
	t.logger.Info("demo trade filled",
		zap.String("mint", order.Mint),
		zap.String("side", order.Side),
		zap.Float64("amount_sol", order.AmountSOL),
		zap.Float64("quote", quote),
		zap.Float64("fill", fill),
	)

	return trade, nil
}
