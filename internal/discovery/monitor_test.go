package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage/memory"
)

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
	now     time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tick fires every ticker once, without blocking if nobody listens.
func (c *fakeClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.tickers {
		select {
		case t.ch <- c.now:
		default:
		}
	}
}

type fakeSource struct {
	mu    sync.Mutex
	batch []*domain.DiscoveredToken
	err   error
	calls int
}

func (s *fakeSource) NewTokens(_ context.Context, limit int) ([]*domain.DiscoveredToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batch) > limit {
		return s.batch[:limit], nil
	}
	return s.batch, nil
}

func (s *fakeSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakePrices struct {
	mu      sync.Mutex
	prices  map[string]float64
	failing map[string]bool
	fetched []string
}

func (p *fakePrices) TokenPriceUSD(_ context.Context, mint string) (float64, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetched = append(p.fetched, mint)
	if p.failing[mint] {
		return 0, false, errors.New("provider down")
	}
	price, ok := p.prices[mint]
	return price, ok, nil
}

func (p *fakePrices) fetchedMints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.fetched))
	copy(out, p.fetched)
	return out
}

func testConfig() Config {
	return Config{
		Interval:      time.Hour, // ticks are driven by the fake clock
		BatchLimit:    5,
		PricesPerTick: 3,
		PriceSpacing:  time.Microsecond,
		FetchTimeout:  time.Second,
	}
}

func sampleBatch(n int) []*domain.DiscoveredToken {
	batch := make([]*domain.DiscoveredToken, n)
	for i := range batch {
		batch[i] = &domain.DiscoveredToken{Mint: "mint", Symbol: "TKN", Price: 0.01}
	}
	return batch
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		panic("unreachable")
	}
}

func TestMonitor_DeliversNewTokenBatches(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{batch: sampleBatch(3)}
	m := NewMonitor(MonitorOptions{
		Source: source,
		Prices: &fakePrices{},
		Clock:  clock,
		Config: testConfig(),
	})

	got := make(chan []*domain.DiscoveredToken, 1)
	m.OnNewTokens(func(tokens []*domain.DiscoveredToken) { got <- tokens })

	m.Start()
	defer m.Stop()

	clock.Tick()
	batch := recv(t, got)
	if len(batch) != 3 {
		t.Errorf("batch size = %d, want 3", len(batch))
	}
}

func TestMonitor_StartIsIdempotent(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{batch: sampleBatch(1)}
	m := NewMonitor(MonitorOptions{
		Source: source,
		Prices: &fakePrices{},
		Clock:  clock,
		Config: testConfig(),
	})

	got := make(chan []*domain.DiscoveredToken, 4)
	m.OnNewTokens(func(tokens []*domain.DiscoveredToken) { got <- tokens })

	m.Start()
	m.Start()
	defer m.Stop()

	clock.Tick()
	recv(t, got)

	// A second polling loop would double both deliveries and fetches.
	select {
	case <-got:
		t.Fatal("second delivery for a single tick")
	case <-time.After(50 * time.Millisecond):
	}
	if source.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", source.callCount())
	}
}

func TestMonitor_StopHaltsNotifications(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{batch: sampleBatch(1)}
	m := NewMonitor(MonitorOptions{
		Source: source,
		Prices: &fakePrices{},
		Clock:  clock,
		Config: testConfig(),
	})

	got := make(chan []*domain.DiscoveredToken, 4)
	m.OnNewTokens(func(tokens []*domain.DiscoveredToken) { got <- tokens })

	m.Start()
	clock.Tick()
	recv(t, got)

	m.Stop()
	m.Stop() // idempotent

	clock.Tick()
	select {
	case <-got:
		t.Fatal("notification delivered after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMonitor_BatchLimit(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{batch: sampleBatch(10)}
	cfg := testConfig()
	cfg.BatchLimit = 5
	m := NewMonitor(MonitorOptions{
		Source: source,
		Prices: &fakePrices{},
		Clock:  clock,
		Config: cfg,
	})

	got := make(chan []*domain.DiscoveredToken, 1)
	m.OnNewTokens(func(tokens []*domain.DiscoveredToken) { got <- tokens })

	m.Start()
	defer m.Stop()

	clock.Tick()
	batch := recv(t, got)
	if len(batch) != 5 {
		t.Errorf("batch size = %d, want capped at 5", len(batch))
	}
}

func TestMonitor_PriceRotation(t *testing.T) {
	clock := newFakeClock()
	prices := &fakePrices{prices: map[string]float64{
		"m1": 1, "m2": 2, "m3": 3, "m4": 4, "m5": 5,
	}}
	m := NewMonitor(MonitorOptions{
		Source: &fakeSource{},
		Prices: prices,
		Clock:  clock,
		Config: testConfig(),
	})

	updates := make(chan string, 16)
	for _, mint := range []string{"m1", "m2", "m3", "m4", "m5"} {
		mint := mint
		m.Subscribe(mint, func(float64) { updates <- mint })
	}

	m.Start()
	defer m.Stop()

	clock.Tick()
	first := []string{recv(t, updates), recv(t, updates), recv(t, updates)}
	clock.Tick()
	second := []string{recv(t, updates), recv(t, updates), recv(t, updates)}

	wantFirst := []string{"m1", "m2", "m3"}
	wantSecond := []string{"m4", "m5", "m1"}
	for i := range wantFirst {
		if first[i] != wantFirst[i] {
			t.Errorf("first tick fetched %v, want %v", first, wantFirst)
			break
		}
	}
	for i := range wantSecond {
		if second[i] != wantSecond[i] {
			t.Errorf("second tick fetched %v, want %v", second, wantSecond)
			break
		}
	}
}

func TestMonitor_PriceFailureIsIsolated(t *testing.T) {
	clock := newFakeClock()
	prices := &fakePrices{
		prices:  map[string]float64{"good-1": 1, "good-2": 2},
		failing: map[string]bool{"bad": true},
	}
	m := NewMonitor(MonitorOptions{
		Source: &fakeSource{},
		Prices: prices,
		Clock:  clock,
		Config: testConfig(),
	})

	updates := make(chan string, 8)
	m.Subscribe("good-1", func(float64) { updates <- "good-1" })
	m.Subscribe("bad", func(float64) { updates <- "bad" })
	m.Subscribe("good-2", func(float64) { updates <- "good-2" })

	m.Start()
	defer m.Stop()

	clock.Tick()
	got := map[string]bool{recv(t, updates): true, recv(t, updates): true}
	if !got["good-1"] || !got["good-2"] {
		t.Errorf("updates = %v, want both healthy mints", got)
	}

	fetched := prices.fetchedMints()
	if len(fetched) != 3 {
		t.Errorf("fetched = %v, want all three attempted", fetched)
	}
}

func TestMonitor_Unsubscribe(t *testing.T) {
	clock := newFakeClock()
	prices := &fakePrices{prices: map[string]float64{"m1": 1, "m2": 2}}
	m := NewMonitor(MonitorOptions{
		Source: &fakeSource{},
		Prices: prices,
		Clock:  clock,
		Config: testConfig(),
	})

	updates := make(chan string, 8)
	m.Subscribe("m1", func(float64) { updates <- "m1" })
	m.Subscribe("m2", func(float64) { updates <- "m2" })
	m.Unsubscribe("m1")

	m.Start()
	defer m.Stop()

	clock.Tick()
	if got := recv(t, updates); got != "m2" {
		t.Errorf("update = %s, want m2", got)
	}
	for _, mint := range prices.fetchedMints() {
		if mint == "m1" {
			t.Error("unsubscribed mint was fetched")
		}
	}
}

func TestMonitor_SubscribeReplacesCallback(t *testing.T) {
	clock := newFakeClock()
	prices := &fakePrices{prices: map[string]float64{"m1": 1}}
	m := NewMonitor(MonitorOptions{
		Source: &fakeSource{},
		Prices: prices,
		Clock:  clock,
		Config: testConfig(),
	})

	updates := make(chan string, 8)
	m.Subscribe("m1", func(float64) { updates <- "old" })
	m.Subscribe("m1", func(float64) { updates <- "new" })

	m.Start()
	defer m.Stop()

	clock.Tick()
	if got := recv(t, updates); got != "new" {
		t.Errorf("update from %s callback, want the replacement", got)
	}
}

func TestMonitor_SinkReceivesPricePoints(t *testing.T) {
	clock := newFakeClock()
	prices := &fakePrices{prices: map[string]float64{"m1": 0.5}}
	sink := memory.NewPriceTimeseriesStore()
	m := NewMonitor(MonitorOptions{
		Source: &fakeSource{},
		Prices: prices,
		Sink:   sink,
		Clock:  clock,
		Config: testConfig(),
	})

	updates := make(chan float64, 1)
	m.Subscribe("m1", func(p float64) { updates <- p })

	m.Start()
	defer m.Stop()

	clock.Tick()
	recv(t, updates)

	points, err := sink.GetByMint(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].PriceUSD != 0.5 {
		t.Errorf("sink points = %+v", points)
	}
}

func TestMonitor_SourceErrorDoesNotStopLoop(t *testing.T) {
	clock := newFakeClock()
	source := &fakeSource{err: errors.New("provider down")}
	m := NewMonitor(MonitorOptions{
		Source: source,
		Prices: &fakePrices{},
		Clock:  clock,
		Config: testConfig(),
	})

	got := make(chan []*domain.DiscoveredToken, 4)
	m.OnNewTokens(func(tokens []*domain.DiscoveredToken) { got <- tokens })

	m.Start()
	defer m.Stop()

	clock.Tick()
	select {
	case <-got:
		t.Fatal("delivery despite source error")
	case <-time.After(50 * time.Millisecond):
	}

	// Provider recovers; the fixed cadence keeps polling.
	source.mu.Lock()
	source.err = nil
	source.batch = sampleBatch(2)
	source.mu.Unlock()

	clock.Tick()
	batch := recv(t, got)
	if len(batch) != 2 {
		t.Errorf("batch size = %d, want 2 after recovery", len(batch))
	}
}
