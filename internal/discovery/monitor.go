package discovery

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/observability"
	"trenches-buddy/internal/storage"
)

// TokenLister fetches a bounded batch of newly discovered tokens.
type TokenLister interface {
	NewTokens(ctx context.Context, limit int) ([]*domain.DiscoveredToken, error)
}

// PriceFetcher fetches the current USD price of one mint. The second
// return is false when the provider has no price.
type PriceFetcher interface {
	TokenPriceUSD(ctx context.Context, mint string) (float64, bool, error)
}

// Config bounds the monitor's polling behavior. The defaults keep a free
// provider tier under its rate limits.
type Config struct {
	// Interval between polling ticks. Default 60s.
	Interval time.Duration

	// BatchLimit caps the new-token batch per tick. Default 5.
	BatchLimit int

	// PricesPerTick caps how many subscribed mints get a price fetch per
	// tick; the subset rotates across ticks. Default 3.
	PricesPerTick int

	// PriceSpacing is the minimum gap between consecutive price fetches.
	// Default 300ms.
	PriceSpacing time.Duration

	// FetchTimeout bounds each provider call so a hung request cannot
	// stall the tick loop. Default 10s.
	FetchTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 5
	}
	if c.PricesPerTick <= 0 {
		c.PricesPerTick = 3
	}
	if c.PriceSpacing <= 0 {
		c.PriceSpacing = 300 * time.Millisecond
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Monitor polls for new tokens and subscribed-mint prices on a fixed
// interval. Tick errors are logged and absorbed; the next tick retries at
// the same cadence, which is the only backoff policy.
type Monitor struct {
	source TokenLister
	prices PriceFetcher
	sink   storage.PriceTimeseriesStore
	clock  Clock
	logger *zap.Logger
	cfg    Config

	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	tokenSubs map[int]func([]*domain.DiscoveredToken)
	nextSub   int
	priceSubs map[string]func(float64)
	rotation  []string
	cursor    int
}

// MonitorOptions contains configuration for creating a Monitor.
type MonitorOptions struct {
	Source TokenLister
	Prices PriceFetcher

	// Sink, when set, receives a price point for every successful fetch.
	Sink storage.PriceTimeseriesStore

	// Clock overrides the real clock for tests.
	Clock Clock

	Logger *zap.Logger
	Config Config
}

// NewMonitor creates a monitor. Start must be called to begin polling.
func NewMonitor(opts MonitorOptions) *Monitor {
	clock := opts.Clock
	if clock == nil {
		clock = NewRealClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Monitor{
		source:    opts.Source,
		prices:    opts.Prices,
		sink:      opts.Sink,
		clock:     clock,
		logger:    logger.Named("token-monitor"),
		cfg:       opts.Config.withDefaults(),
		tokenSubs: map[int]func([]*domain.DiscoveredToken){},
		priceSubs: map[string]func(float64){},
	}
}

// Start launches the polling loop. Calling Start on a running monitor is
// a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	// The ticker is created before the goroutine starts so that a tick
	// arriving as soon as Start returns cannot be lost.
	ticker := m.clock.NewTicker(m.cfg.Interval)
	go m.run(ticker, stopCh, doneCh)
	m.logger.Info("monitor started", zap.Duration("interval", m.cfg.Interval))
}

// Stop halts polling and waits for the loop to exit. No subscriber is
// notified after Stop returns. Idempotent.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stopCh)
	<-doneCh
	m.logger.Info("monitor stopped")
}

// OnNewTokens registers fn for new-token batches and returns its
// unsubscribe function.
func (m *Monitor) OnNewTokens(fn func([]*domain.DiscoveredToken)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.tokenSubs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.tokenSubs, id)
		m.mu.Unlock()
	}
}

// Subscribe registers a price callback for a mint. A mint has exactly
// one callback; subscribing again replaces it without losing the mint's
// place in the rotation.
func (m *Monitor) Subscribe(mint string, fn func(price float64)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, known := m.priceSubs[mint]; !known {
		m.rotation = append(m.rotation, mint)
	}
	m.priceSubs[mint] = fn
	observability.UpdatePriceSubscriptions(len(m.priceSubs))
}

// Unsubscribe removes a mint's price callback.
func (m *Monitor) Unsubscribe(mint string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, known := m.priceSubs[mint]; !known {
		return
	}
	delete(m.priceSubs, mint)
	for i, r := range m.rotation {
		if r == mint {
			m.rotation = append(m.rotation[:i], m.rotation[i+1:]...)
			if m.cursor > i {
				m.cursor--
			}
			break
		}
	}
	if len(m.rotation) == 0 {
		m.cursor = 0
	} else {
		m.cursor %= len(m.rotation)
	}
	observability.UpdatePriceSubscriptions(len(m.priceSubs))
}

func (m *Monitor) run(ticker Ticker, stopCh chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C():
			m.tick(stopCh)
		}
	}
}

func (m *Monitor) tick(stopCh chan struct{}) {
	observability.RecordMonitorTick()

	m.pollNewTokens(stopCh)
	m.pollPrices(stopCh)

	observability.DefaultMetrics.LastSuccessfulTick.Set(float64(m.clock.Now().Unix()))
}

func (m *Monitor) pollNewTokens(stopCh chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	tokens, err := m.source.NewTokens(ctx, m.cfg.BatchLimit)
	if err != nil {
		m.logger.Warn("new-token fetch failed", zap.Error(err))
		return
	}
	if len(tokens) == 0 {
		return
	}

	select {
	case <-stopCh:
		return
	default:
	}

	m.mu.Lock()
	subs := make([]func([]*domain.DiscoveredToken), 0, len(m.tokenSubs))
	for _, fn := range m.tokenSubs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(tokens)
	}
	observability.RecordNewTokens(len(tokens))
}

// pollPrices fetches a rotating, capped subset of subscribed mints so
// every subscription gets refreshed eventually without blowing the
// provider's rate limit in one tick.
func (m *Monitor) pollPrices(stopCh chan struct{}) {
	m.mu.Lock()
	count := len(m.rotation)
	if count > m.cfg.PricesPerTick {
		count = m.cfg.PricesPerTick
	}
	selected := make([]string, 0, count)
	for i := 0; i < count; i++ {
		selected = append(selected, m.rotation[(m.cursor+i)%len(m.rotation)])
	}
	if len(m.rotation) > 0 {
		m.cursor = (m.cursor + count) % len(m.rotation)
	}
	m.mu.Unlock()

	if len(selected) == 0 {
		return
	}

	limiter := rate.NewLimiter(rate.Every(m.cfg.PriceSpacing), 1)
	for _, mint := range selected {
		select {
		case <-stopCh:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
		if err := limiter.Wait(ctx); err != nil {
			cancel()
			return
		}
		price, ok, err := m.prices.TokenPriceUSD(ctx, mint)
		cancel()
		if err != nil {
			m.logger.Warn("price fetch failed",
				zap.String("mint", mint),
				zap.Error(err),
			)
			observability.RecordPriceFetch("error")
			continue
		}
		if !ok {
			observability.RecordPriceFetch("missing")
			continue
		}

		m.mu.Lock()
		fn := m.priceSubs[mint]
		m.mu.Unlock()

		select {
		case <-stopCh:
			return
		default:
		}
		if fn != nil {
			fn(price)
		}
		observability.RecordPriceFetch("ok")
		m.recordPoint(mint, price)
	}
}

func (m *Monitor) recordPoint(mint string, price float64) {
	if m.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.FetchTimeout)
	defer cancel()

	point := &domain.PricePoint{
		Mint:        mint,
		TimestampMs: m.clock.Now().UnixMilli(),
		PriceUSD:    price,
	}
	if err := m.sink.InsertPoints(ctx, []*domain.PricePoint{point}); err != nil {
		m.logger.Warn("price point sink failed", zap.String("mint", mint), zap.Error(err))
	}
}
