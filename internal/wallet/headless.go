package wallet

import (
	"context"
	"sync"
)

// HeadlessAdapter is a server-side Adapter for running the session
// without a browser extension. It approves every connection request for
// a fixed public key, which makes demo deployments usable from the REST
// surface.
type HeadlessAdapter struct {
	name   string
	pubkey string

	mu        sync.Mutex
	connected bool
	handlers  map[Event]map[int]func(string)
	nextID    int
}

var _ Adapter = (*HeadlessAdapter)(nil)

// NewHeadlessAdapter creates a headless adapter identifying as name.
func NewHeadlessAdapter(name, pubkey string) *HeadlessAdapter {
	return &HeadlessAdapter{
		name:     name,
		pubkey:   pubkey,
		handlers: make(map[Event]map[int]func(string)),
	}
}

// Name implements Adapter.
func (a *HeadlessAdapter) Name() string { return a.name }

// Connected implements Adapter.
func (a *HeadlessAdapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// PublicKey implements Adapter.
func (a *HeadlessAdapter) PublicKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return ""
	}
	return a.pubkey
}

// Connect implements Adapter. There is no user to prompt, so it always
// approves.
func (a *HeadlessAdapter) Connect(_ context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return a.pubkey, nil
}

// Disconnect implements Adapter.
func (a *HeadlessAdapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

// On implements Adapter.
func (a *HeadlessAdapter) On(event Event, fn func(publicKey string)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.handlers[event] == nil {
		a.handlers[event] = make(map[int]func(string))
	}
	id := a.nextID
	a.nextID++
	a.handlers[event][id] = fn

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.handlers[event], id)
	}
}

// StaticLocator resolves adapters from a fixed set, keyed by name.
type StaticLocator map[string]Adapter

var _ Locator = (StaticLocator)(nil)

// NewStaticLocator builds a locator over the given adapters.
func NewStaticLocator(adapters ...Adapter) StaticLocator {
	l := make(StaticLocator, len(adapters))
	for _, a := range adapters {
		l[a.Name()] = a
	}
	return l
}

// Lookup implements Locator.
func (l StaticLocator) Lookup(name string) (Adapter, bool) {
	a, ok := l[name]
	return a, ok
}
