// Package stub provides in-memory wallet adapters for testing.
package stub

import (
	"context"
	"sync"

	"trenches-buddy/internal/wallet"
)

// Adapter is a scriptable in-memory wallet adapter.
// Implements wallet.Adapter.
type Adapter struct {
	// AdapterName is returned by Name. Defaults to "phantom" when empty.
	AdapterName string

	// Pubkey is the key handed out on a successful Connect.
	Pubkey string

	// ConnectErr, when set, fails Connect with this error.
	ConnectErr error

	// DisconnectErr, when set, is returned by Disconnect.
	DisconnectErr error

	// PreConnected marks the adapter as already holding an approved
	// session, the reused-session case.
	PreConnected bool

	mu        sync.Mutex
	connected bool
	handlers  map[wallet.Event]map[int]func(string)
	nextID    int

	ConnectCalls    int
	DisconnectCalls int
}

var _ wallet.Adapter = (*Adapter)(nil)

func (a *Adapter) Name() string {
	if a.AdapterName == "" {
		return "phantom"
	}
	return a.AdapterName
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected || a.PreConnected
}

func (a *Adapter) PublicKey() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.connected || a.PreConnected {
		return a.Pubkey
	}
	return ""
}

func (a *Adapter) Connect(_ context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ConnectCalls++
	if a.ConnectErr != nil {
		return "", a.ConnectErr
	}
	a.connected = true
	return a.Pubkey, nil
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.DisconnectCalls++
	a.connected = false
	a.PreConnected = false
	return a.DisconnectErr
}

func (a *Adapter) On(event wallet.Event, fn func(string)) func() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.handlers == nil {
		a.handlers = map[wallet.Event]map[int]func(string){}
	}
	if a.handlers[event] == nil {
		a.handlers[event] = map[int]func(string){}
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

// Emit fires all registered handlers for an event, simulating an
// out-of-band adapter notification.
func (a *Adapter) Emit(event wallet.Event, payload string) {
	a.mu.Lock()
	var fns []func(string)
	for _, fn := range a.handlers[event] {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// Locator is a fixed adapter registry, optionally delayed.
// Implements wallet.Locator.
type Locator struct {
	mu       sync.Mutex
	adapters map[string]wallet.Adapter

	// LookupsUntilFound makes the first N lookups miss, simulating late
	// extension injection.
	LookupsUntilFound int

	Lookups int
}

var _ wallet.Locator = (*Locator)(nil)

// NewLocator creates a locator holding the given adapters.
func NewLocator(adapters ...wallet.Adapter) *Locator {
	m := make(map[string]wallet.Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Locator{adapters: m}
}

func (l *Locator) Lookup(name string) (wallet.Adapter, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Lookups++
	if l.Lookups <= l.LookupsUntilFound {
		return nil, false
	}
	a, ok := l.adapters[name]
	return a, ok
}
