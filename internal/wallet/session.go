package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/idhash"
	"trenches-buddy/internal/observability"
	"trenches-buddy/internal/solana"
	"trenches-buddy/internal/storage"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

const (
	defaultWalletName      = "phantom"
	defaultPresenceAttempt = 10
	defaultPresenceDelay   = 100 * time.Millisecond

	maxBuddyNameLength = 64
)

// SessionManager owns the wallet session state machine and the buddy
// deployments of the connected wallet. The in-memory deployment list is
// authoritative; the store is a best-effort durable mirror.
type SessionManager struct {
	locator Locator
	rpc     solana.RPCClient
	store   storage.DeploymentStore
	logger  *zap.Logger

	walletName       string
	supported        map[string]bool
	presenceAttempts int
	presenceDelay    time.Duration
	now              func() time.Time

	mu           sync.Mutex
	state        State
	adapter      Adapter
	info         domain.WalletInfo
	deployments  []*domain.BuddyDeployment
	listeners    map[int]func(domain.WalletInfo)
	nextListener int
	offAdapter   []func()
}

// SessionManagerOptions contains configuration for creating a SessionManager.
type SessionManagerOptions struct {
	Locator Locator

	// RPC is used for best-effort balance fetches. Optional; balance
	// stays 0 without it.
	RPC solana.RPCClient

	// Store durably mirrors the deployment list. Optional.
	Store storage.DeploymentStore

	Logger *zap.Logger

	// WalletName selects the adapter to drive. Defaults to "phantom".
	WalletName string

	// SupportedWallets limits which adapter names Connect accepts.
	// Defaults to just "phantom".
	SupportedWallets []string

	// PresenceAttempts and PresenceDelay bound the adapter-injection
	// polling window. Defaults: 10 attempts, 100ms apart.
	PresenceAttempts int
	PresenceDelay    time.Duration

	// Now overrides the clock for deterministic tests.
	Now func() time.Time
}

// NewSessionManager creates a session manager and loads any previously
// persisted deployments. A failed load is logged and the list starts empty.
func NewSessionManager(ctx context.Context, opts SessionManagerOptions) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	walletName := opts.WalletName
	if walletName == "" {
		walletName = defaultWalletName
	}
	supportedNames := opts.SupportedWallets
	if len(supportedNames) == 0 {
		supportedNames = []string{defaultWalletName}
	}
	supported := make(map[string]bool, len(supportedNames))
	for _, name := range supportedNames {
		supported[name] = true
	}

	attempts := opts.PresenceAttempts
	if attempts <= 0 {
		attempts = defaultPresenceAttempt
	}
	delay := opts.PresenceDelay
	if delay <= 0 {
		delay = defaultPresenceDelay
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := &SessionManager{
		locator:          opts.Locator,
		rpc:              opts.RPC,
		store:            opts.Store,
		logger:           logger.Named("wallet-session"),
		walletName:       walletName,
		supported:        supported,
		presenceAttempts: attempts,
		presenceDelay:    delay,
		now:              now,
		state:            StateDisconnected,
		deployments:      []*domain.BuddyDeployment{},
		listeners:        map[int]func(domain.WalletInfo){},
	}

	if m.store != nil {
		loaded, err := m.store.Load(ctx)
		if err != nil {
			m.logger.Warn("failed to load deployments, starting empty", zap.Error(err))
		} else {
			m.deployments = loaded
		}
	}

	return m
}

// Connect establishes a wallet session. Polls for late adapter injection,
// reuses an already-approved adapter session, fetches the balance best
// effort and notifies subscribers. Idempotent while connected.
func (m *SessionManager) Connect(ctx context.Context) (domain.WalletInfo, error) {
	m.mu.Lock()
	if m.state == StateConnected {
		info := m.info
		m.mu.Unlock()
		return info, nil
	}
	m.state = StateConnecting
	m.mu.Unlock()

	if !m.supported[m.walletName] {
		m.failConnect("unsupported_wallet")
		return domain.WalletInfo{}, ErrNotSupportedWallet
	}

	adapter, err := m.waitForAdapter(ctx)
	if err != nil {
		m.failConnect("adapter_not_found")
		return domain.WalletInfo{}, err
	}

	pubkey := adapter.PublicKey()
	if !adapter.Connected() || pubkey == "" {
		pubkey, err = adapter.Connect(ctx)
		if err != nil {
			switch {
			case errors.Is(err, ErrUserRejected):
				m.failConnect("rejected")
				return domain.WalletInfo{}, ErrConnectionRejected
			case errors.Is(err, ErrRequestPending):
				m.failConnect("pending")
				return domain.WalletInfo{}, ErrConnectionPending
			default:
				m.failConnect("adapter_error")
				return domain.WalletInfo{}, fmt.Errorf("connect wallet: %w", err)
			}
		}
	}

	info := domain.WalletInfo{
		PublicKey:   pubkey,
		Balance:     m.fetchBalance(ctx, pubkey),
		IsConnected: true,
	}
	m.establish(adapter, info)
	observability.RecordWalletConnect()
	m.logger.Info("wallet connected",
		zap.String("wallet", adapter.Name()),
		zap.String("public_key", pubkey),
	)
	return info, nil
}

// ResumeExisting reuses an adapter session that was approved before this
// process attached, the page-reload case. Waits one presence delay for
// injection to settle, then checks once. Returns false when there is
// nothing to resume.
func (m *SessionManager) ResumeExisting(ctx context.Context) (domain.WalletInfo, bool) {
	m.mu.Lock()
	if m.state == StateConnected {
		info := m.info
		m.mu.Unlock()
		return info, true
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return domain.WalletInfo{}, false
	case <-time.After(m.presenceDelay):
	}

	adapter, ok := m.locator.Lookup(m.walletName)
	if !ok || !adapter.Connected() || adapter.PublicKey() == "" {
		return domain.WalletInfo{}, false
	}

	pubkey := adapter.PublicKey()
	info := domain.WalletInfo{
		PublicKey:   pubkey,
		Balance:     m.fetchBalance(ctx, pubkey),
		IsConnected: true,
	}
	m.establish(adapter, info)
	observability.RecordWalletConnect()
	m.logger.Info("resumed existing wallet session", zap.String("public_key", pubkey))
	return info, true
}

// Disconnect tears the session down. The adapter disconnect is best
// effort; local state is always cleared and subscribers always notified.
func (m *SessionManager) Disconnect(ctx context.Context) {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	adapter := m.adapter
	listeners, info := m.clearLocked()
	m.mu.Unlock()

	if adapter != nil {
		if err := adapter.Disconnect(ctx); err != nil {
			m.logger.Warn("adapter disconnect failed", zap.Error(err))
		}
	}
	m.notify(listeners, info)
	observability.RecordWalletDisconnect()
	m.logger.Info("wallet disconnected")
}

// WalletInfo returns the current session info. Zero-value with
// IsConnected false when no session is established.
func (m *SessionManager) WalletInfo() domain.WalletInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// State returns the current lifecycle state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsAdapterInstalled reports whether the adapter is present right now,
// without polling.
func (m *SessionManager) IsAdapterInstalled() bool {
	_, ok := m.locator.Lookup(m.walletName)
	return ok
}

// OnWalletChange registers fn for session changes and returns its
// unsubscribe function. No callback fires at registration time;
// subscribers only see transitions.
func (m *SessionManager) OnWalletChange(fn func(domain.WalletInfo)) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// DeployBuddy creates a deployment for the connected wallet. Any prior
// active deployment of this wallet is deactivated first so exactly one
// stays active. The updated list is persisted best effort.
func (m *SessionManager) DeployBuddy(ctx context.Context, buddyName string, cfg domain.BuddyConfiguration) (*domain.BuddyDeployment, error) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	walletAddress := m.info.PublicKey
	m.mu.Unlock()

	name := strings.TrimSpace(buddyName)
	if name == "" {
		return nil, fmt.Errorf("buddy name must not be empty")
	}
	if utf8.RuneCountInString(name) > maxBuddyNameLength {
		return nil, fmt.Errorf("buddy name must be at most %d characters", maxBuddyNameLength)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	deployedAt := m.now().UnixMilli()
	dep := &domain.BuddyDeployment{
		ID:            idhash.ComputeDeploymentID(walletAddress, name, deployedAt),
		WalletAddress: walletAddress,
		DeployedAt:    deployedAt,
		BuddyName:     name,
		Configuration: cfg,
		IsActive:      true,
	}

	m.mu.Lock()
	for _, d := range m.deployments {
		if d.WalletAddress == walletAddress && d.IsActive {
			d.IsActive = false
		}
	}
	m.deployments = append(m.deployments, dep)
	snapshot := copyDeployments(m.deployments)
	m.mu.Unlock()

	m.persist(ctx, snapshot)
	observability.RecordBuddyDeployed()
	m.logger.Info("buddy deployed",
		zap.String("id", dep.ID),
		zap.String("buddy_name", name),
		zap.String("strategy", string(cfg.Strategy)),
	)

	out := *dep
	return &out, nil
}

// BuddyDeployment returns the first active deployment for the wallet in
// stored order, or nil. An empty address means the current session's wallet.
func (m *SessionManager) BuddyDeployment(walletAddress string) *domain.BuddyDeployment {
	m.mu.Lock()
	defer m.mu.Unlock()

	if walletAddress == "" {
		walletAddress = m.info.PublicKey
	}
	if walletAddress == "" {
		return nil
	}
	for _, d := range m.deployments {
		if d.WalletAddress == walletAddress && d.IsActive {
			out := *d
			return &out
		}
	}
	return nil
}

// Deployments returns a copy of the full deployment list in stored order.
func (m *SessionManager) Deployments() []*domain.BuddyDeployment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyDeployments(m.deployments)
}

// UpdateBuddyDeployment replaces the first active deployment of a wallet
// in place and persists. A wallet with no active deployment is a silent
// no-op. An empty address means the current session's wallet.
func (m *SessionManager) UpdateBuddyDeployment(ctx context.Context, walletAddress string, rec *domain.BuddyDeployment) error {
	if rec == nil {
		return fmt.Errorf("deployment must not be nil")
	}
	if err := rec.Configuration.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if walletAddress == "" {
		walletAddress = m.info.PublicKey
	}
	var snapshot []*domain.BuddyDeployment
	for i, d := range m.deployments {
		if d.WalletAddress == walletAddress && d.IsActive {
			replaced := *rec
			replaced.WalletAddress = walletAddress
			m.deployments[i] = &replaced
			snapshot = copyDeployments(m.deployments)
			break
		}
	}
	m.mu.Unlock()

	if snapshot != nil {
		m.persist(ctx, snapshot)
	}
	return nil
}

// waitForAdapter polls the locator until the adapter shows up or the
// polling window closes.
func (m *SessionManager) waitForAdapter(ctx context.Context) (Adapter, error) {
	for attempt := 0; attempt < m.presenceAttempts; attempt++ {
		if adapter, ok := m.locator.Lookup(m.walletName); ok {
			return adapter, nil
		}
		if attempt == m.presenceAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.presenceDelay):
		}
	}
	return nil, ErrAdapterNotFound
}

// fetchBalance returns the wallet's SOL balance, 0 on any failure. A
// balance problem never blocks a connection.
func (m *SessionManager) fetchBalance(ctx context.Context, pubkey string) float64 {
	if m.rpc == nil {
		return 0
	}
	lamports, err := m.rpc.GetBalance(ctx, pubkey)
	if err != nil {
		m.logger.Warn("balance fetch failed", zap.String("public_key", pubkey), zap.Error(err))
		return 0
	}
	return float64(lamports) / domain.LamportsPerSOL
}

// establish transitions to Connected, wires adapter events and notifies
// subscribers with the new info.
func (m *SessionManager) establish(adapter Adapter, info domain.WalletInfo) {
	offDisconnect := adapter.On(EventDisconnect, func(string) {
		m.handleAdapterDrop("disconnect")
	})
	offAccount := adapter.On(EventAccountChanged, func(string) {
		m.handleAdapterDrop("account_changed")
	})

	m.mu.Lock()
	m.adapter = adapter
	m.state = StateConnected
	m.info = info
	m.offAdapter = []func(){offDisconnect, offAccount}
	listeners := m.snapshotListenersLocked()
	m.mu.Unlock()

	m.notify(listeners, info)
}

// handleAdapterDrop forces the session down when the adapter drops it or
// the account changes under us.
func (m *SessionManager) handleAdapterDrop(cause string) {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	listeners, info := m.clearLocked()
	m.mu.Unlock()

	m.notify(listeners, info)
	observability.RecordWalletDisconnect()
	m.logger.Info("session dropped by adapter", zap.String("cause", cause))
}

// failConnect resets a failed connection attempt back to Disconnected.
func (m *SessionManager) failConnect(reason string) {
	m.mu.Lock()
	m.state = StateDisconnected
	m.mu.Unlock()
	observability.RecordConnectFailure(reason)
}

// clearLocked resets session state and returns the subscribers to notify
// plus the disconnected info to send them. Caller holds the mutex.
func (m *SessionManager) clearLocked() ([]func(domain.WalletInfo), domain.WalletInfo) {
	for _, off := range m.offAdapter {
		off()
	}
	m.offAdapter = nil
	m.adapter = nil
	m.state = StateDisconnected
	m.info = domain.WalletInfo{}
	return m.snapshotListenersLocked(), m.info
}

func (m *SessionManager) snapshotListenersLocked() []func(domain.WalletInfo) {
	out := make([]func(domain.WalletInfo), 0, len(m.listeners))
	for _, fn := range m.listeners {
		out = append(out, fn)
	}
	return out
}

// notify calls subscribers synchronously, in registration-map order.
func (m *SessionManager) notify(listeners []func(domain.WalletInfo), info domain.WalletInfo) {
	for _, fn := range listeners {
		fn(info)
	}
}

// persist mirrors the deployment list to the store. Failures are logged
// and swallowed; memory stays authoritative.
func (m *SessionManager) persist(ctx context.Context, deployments []*domain.BuddyDeployment) {
	if m.store == nil {
		return
	}
	if err := m.store.Save(ctx, deployments); err != nil {
		m.logger.Warn("failed to persist deployments", zap.Error(err))
	}
}

func copyDeployments(in []*domain.BuddyDeployment) []*domain.BuddyDeployment {
	out := make([]*domain.BuddyDeployment, len(in))
	for i, d := range in {
		c := *d
		out[i] = &c
	}
	return out
}
