package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/simulation"
	"trenches-buddy/internal/wallet"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSession struct {
	state       wallet.State
	info        domain.WalletInfo
	connectErr  error
	deployments []*domain.BuddyDeployment
	active      *domain.BuddyDeployment
	updateErr   error

	disconnects int
}

func (s *stubSession) Connect(context.Context) (domain.WalletInfo, error) {
	if s.connectErr != nil {
		return domain.WalletInfo{}, s.connectErr
	}
	return s.info, nil
}

func (s *stubSession) Disconnect(context.Context) { s.disconnects++ }

func (s *stubSession) WalletInfo() domain.WalletInfo { return s.info }

func (s *stubSession) State() wallet.State { return s.state }

func (s *stubSession) IsAdapterInstalled() bool { return true }

func (s *stubSession) Deployments() []*domain.BuddyDeployment { return s.deployments }

func (s *stubSession) DeployBuddy(_ context.Context, buddyName string, cfg domain.BuddyConfiguration) (*domain.BuddyDeployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rec := &domain.BuddyDeployment{
		ID:            "dep1",
		WalletAddress: s.info.PublicKey,
		BuddyName:     buddyName,
		Configuration: cfg,
		IsActive:      true,
	}
	s.deployments = append(s.deployments, rec)
	return rec, nil
}

func (s *stubSession) BuddyDeployment(string) *domain.BuddyDeployment { return s.active }

func (s *stubSession) UpdateBuddyDeployment(context.Context, string, *domain.BuddyDeployment) error {
	return s.updateErr
}

type stubTokens struct {
	trending []*domain.DiscoveredToken
	metrics  *domain.DiscoveredToken
	err      error
}

func (s *stubTokens) Trending(context.Context, int) ([]*domain.DiscoveredToken, error) {
	return s.trending, s.err
}

func (s *stubTokens) TokenMetrics(context.Context, string) (*domain.DiscoveredToken, error) {
	return s.metrics, s.err
}

type stubPrices struct {
	prices map[string]float64
	err    error
	asked  []string
}

func (s *stubPrices) PricesUSD(_ context.Context, mints []string) (map[string]float64, error) {
	s.asked = mints
	return s.prices, s.err
}

type stubChat struct {
	reply string
	err   error
}

func (s *stubChat) SendMessage(context.Context, []domain.ChatMessage, *domain.TradingContext) (string, error) {
	return s.reply, s.err
}

type stubTrader struct {
	trade *domain.SimulatedTrade
	err   error
}

func (s *stubTrader) Execute(context.Context, simulation.Order) (*domain.SimulatedTrade, error) {
	return s.trade, s.err
}

type stubFeed struct {
	fn func([]*domain.DiscoveredToken)
}

func (s *stubFeed) OnNewTokens(fn func([]*domain.DiscoveredToken)) func() {
	s.fn = fn
	return func() { s.fn = nil }
}

func newTestRouter(t *testing.T, opts HandlerOptions) (*gin.Engine, *Handler) {
	t.Helper()
	h := NewHandler(opts)
	t.Cleanup(h.Close)
	return NewRouter(h, nil), h
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWalletStatus(t *testing.T) {
	session := &stubSession{
		state: "connected",
		info:  domain.WalletInfo{PublicKey: "pk1", Balance: 2.5, IsConnected: true},
	}
	router, _ := newTestRouter(t, HandlerOptions{Session: session})

	w := doRequest(router, http.MethodGet, "/api/v1/wallet", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp walletStatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Wallet.PublicKey != "pk1" || !resp.AdapterInstalled {
		t.Errorf("response = %+v", resp)
	}
}

func TestConnectWallet_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{wallet.ErrAdapterNotFound, http.StatusNotFound},
		{wallet.ErrNotSupportedWallet, http.StatusNotFound},
		{wallet.ErrConnectionRejected, http.StatusConflict},
		{wallet.ErrConnectionPending, http.StatusConflict},
		{fmt.Errorf("rpc exploded"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{connectErr: tc.err}})
		w := doRequest(router, http.MethodPost, "/api/v1/wallet/connect", "")
		if w.Code != tc.want {
			t.Errorf("%v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestDisconnectWallet(t *testing.T) {
	session := &stubSession{}
	router, _ := newTestRouter(t, HandlerOptions{Session: session})

	w := doRequest(router, http.MethodPost, "/api/v1/wallet/disconnect", "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if session.disconnects != 1 {
		t.Errorf("disconnects = %d", session.disconnects)
	}
}

func TestDeployBuddy(t *testing.T) {
	session := &stubSession{info: domain.WalletInfo{PublicKey: "pk1"}}
	router, _ := newTestRouter(t, HandlerOptions{Session: session})

	body := `{"buddyName":"Degen Dan","configuration":{"riskLevel":50,"strategy":"momentum","maxTradeSize":0.1,"mode":"demo"}}`
	w := doRequest(router, http.MethodPost, "/api/v1/deployments", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var rec domain.BuddyDeployment
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.BuddyName != "Degen Dan" || !rec.IsActive {
		t.Errorf("deployment = %+v", rec)
	}
}

func TestDeployBuddy_InvalidConfig(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}})

	body := `{"buddyName":"Dan","configuration":{"riskLevel":500,"strategy":"momentum","maxTradeSize":0.1,"mode":"demo"}}`
	w := doRequest(router, http.MethodPost, "/api/v1/deployments", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetActiveDeployment_NotFound(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}})

	w := doRequest(router, http.MethodGet, "/api/v1/deployments/active?wallet=pk1", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestTokenWindow_MergesAndCaps(t *testing.T) {
	feed := &stubFeed{}
	router, _ := newTestRouter(t, HandlerOptions{
		Session:   &stubSession{},
		Feed:      feed,
		WindowCap: 3,
	})

	feed.fn([]*domain.DiscoveredToken{{Mint: "m1"}, {Mint: "m2"}})
	feed.fn([]*domain.DiscoveredToken{{Mint: "m3"}, {Mint: "m4"}})

	w := doRequest(router, http.MethodGet, "/api/v1/tokens", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Tokens []*domain.DiscoveredToken `json:"tokens"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	// Newest batch first, oldest entries trimmed past the cap.
	want := []string{"m3", "m4", "m1"}
	if len(resp.Tokens) != len(want) {
		t.Fatalf("window size = %d, want %d", len(resp.Tokens), len(want))
	}
	for i, mint := range want {
		if resp.Tokens[i].Mint != mint {
			t.Errorf("window[%d] = %s, want %s", i, resp.Tokens[i].Mint, mint)
		}
	}
}

func TestTrendingTokens(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{
		Session: &stubSession{},
		Tokens:  &stubTokens{trending: []*domain.DiscoveredToken{{Mint: "m1", IsGraduated: true}}},
	})

	w := doRequest(router, http.MethodGet, "/api/v1/tokens/trending", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"m1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPrices(t *testing.T) {
	prices := &stubPrices{prices: map[string]float64{"m1": 1.5, "m2": 0.02}}
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}, Prices: prices})

	w := doRequest(router, http.MethodGet, "/api/v1/prices?ids=m1,%20m2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if len(prices.asked) != 2 || prices.asked[0] != "m1" || prices.asked[1] != "m2" {
		t.Errorf("asked mints = %v", prices.asked)
	}
	if !strings.Contains(w.Body.String(), `"m1":1.5`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestPrices_MissingIDs(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}, Prices: &stubPrices{}})

	w := doRequest(router, http.MethodGet, "/api/v1/prices", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChat(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{
		Session: &stubSession{},
		Chat:    &stubChat{reply: "ape in"},
	})

	body := `{"messages":[{"role":"user","content":"thoughts?"}],"context":{"selectedToken":"BONK"}}`
	w := doRequest(router, http.MethodPost, "/api/v1/chat", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "ape in") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestChat_MissingMessages(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}, Chat: &stubChat{}})

	w := doRequest(router, http.MethodPost, "/api/v1/chat", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTrade(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{
		Session: &stubSession{},
		Trader: &stubTrader{trade: &domain.SimulatedTrade{
			TradeID: "t1", Mint: "m1", Side: domain.TradeSideBuy, FillPrice: 1.01,
		}},
	})

	body := `{"mint":"m1","side":"BUY","amountSol":0.5,"mode":"demo"}`
	w := doRequest(router, http.MethodPost, "/api/v1/trades", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"t1"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestTrade_LiveModeRejected(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{
		Session: &stubSession{},
		Trader:  &stubTrader{err: simulation.ErrLiveModeUnsupported},
	})

	body := `{"mint":"m1","side":"BUY","amountSol":0.5,"mode":"live"}`
	w := doRequest(router, http.MethodPost, "/api/v1/trades", body)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, HandlerOptions{Session: &stubSession{}})

	w := doRequest(router, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}
