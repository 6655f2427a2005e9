package restapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trenches-buddy/internal/chat"
	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/simulation"
	"trenches-buddy/internal/wallet"
)

// Tokens newer than the window cap are dropped from the merged feed.
const defaultTokenWindowCap = 100

// Session is the wallet session surface the API needs.
type Session interface {
	Connect(ctx context.Context) (domain.WalletInfo, error)
	Disconnect(ctx context.Context)
	WalletInfo() domain.WalletInfo
	State() wallet.State
	IsAdapterInstalled() bool
	Deployments() []*domain.BuddyDeployment
	DeployBuddy(ctx context.Context, buddyName string, cfg domain.BuddyConfiguration) (*domain.BuddyDeployment, error)
	BuddyDeployment(walletAddress string) *domain.BuddyDeployment
	UpdateBuddyDeployment(ctx context.Context, walletAddress string, rec *domain.BuddyDeployment) error
}

// TokenReader serves on-demand token queries.
type TokenReader interface {
	Trending(ctx context.Context, limit int) ([]*domain.DiscoveredToken, error)
	TokenMetrics(ctx context.Context, mint string) (*domain.DiscoveredToken, error)
}

// PriceReader serves batch USD quotes.
type PriceReader interface {
	PricesUSD(ctx context.Context, mints []string) (map[string]float64, error)
}

// Chatter runs a conversation against the configured LLM providers.
type Chatter interface {
	SendMessage(ctx context.Context, messages []domain.ChatMessage, tradingCtx *domain.TradingContext) (string, error)
}

// TradeExecutor fills demo orders.
type TradeExecutor interface {
	Execute(ctx context.Context, order simulation.Order) (*domain.SimulatedTrade, error)
}

// TokenFeed is the discovery-side subscription the handler consumes.
type TokenFeed interface {
	OnNewTokens(fn func([]*domain.DiscoveredToken)) func()
}

// Handler serves the REST API. It owns the merged discovered-token
// window; the monitor only delivers batches.
type Handler struct {
	session Session
	tokens  TokenReader
	prices  PriceReader
	chatSvc Chatter
	trader  TradeExecutor
	logger  *zap.Logger

	windowCap    int
	windowMu     sync.RWMutex
	tokenWindow  []*domain.DiscoveredToken
	unsubscribeFeed func()
}

// HandlerOptions contains configuration for creating a Handler.
type HandlerOptions struct {
	Session   Session
	Tokens    TokenReader
	Prices    PriceReader
	Chat      Chatter
	Trader    TradeExecutor
	Feed      TokenFeed // nil disables the live window
	Logger    *zap.Logger
	WindowCap int
}

// NewHandler creates the API handler and, when a feed is given,
// subscribes it to new-token batches.
func NewHandler(opts HandlerOptions) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	windowCap := opts.WindowCap
	if windowCap <= 0 {
		windowCap = defaultTokenWindowCap
	}

	h := &Handler{
		session:   opts.Session,
		tokens:    opts.Tokens,
		prices:    opts.Prices,
		chatSvc:   opts.Chat,
		trader:    opts.Trader,
		logger:    logger.Named("restapi"),
		windowCap: windowCap,
	}
	if opts.Feed != nil {
		h.unsubscribeFeed = opts.Feed.OnNewTokens(h.mergeTokens)
	}
	return h
}

// Close detaches the handler from the token feed.
func (h *Handler) Close() {
	if h.unsubscribeFeed != nil {
		h.unsubscribeFeed()
	}
}

// mergeTokens prepends a batch to the window, newest first, and trims
// to the cap.
func (h *Handler) mergeTokens(batch []*domain.DiscoveredToken) {
	h.windowMu.Lock()
	defer h.windowMu.Unlock()

	merged := make([]*domain.DiscoveredToken, 0, len(batch)+len(h.tokenWindow))
	merged = append(merged, batch...)
	merged = append(merged, h.tokenWindow...)
	if len(merged) > h.windowCap {
		merged = merged[:h.windowCap]
	}
	h.tokenWindow = merged
}

type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

// walletStatusResponse is the JSON shape of GET /wallet.
type walletStatusResponse struct {
	State            wallet.State      `json:"state"`
	Wallet           domain.WalletInfo `json:"wallet"`
	AdapterInstalled bool              `json:"adapterInstalled"`
}

func (h *Handler) getWalletStatus(c *gin.Context) {
	c.JSON(http.StatusOK, walletStatusResponse{
		State:            h.session.State(),
		Wallet:           h.session.WalletInfo(),
		AdapterInstalled: h.session.IsAdapterInstalled(),
	})
}

func (h *Handler) connectWallet(c *gin.Context) {
	info, err := h.session.Connect(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, wallet.ErrAdapterNotFound), errors.Is(err, wallet.ErrNotSupportedWallet):
			status = http.StatusNotFound
		case errors.Is(err, wallet.ErrConnectionRejected), errors.Is(err, wallet.ErrConnectionPending):
			status = http.StatusConflict
		}
		abortWithError(c, status, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) disconnectWallet(c *gin.Context) {
	h.session.Disconnect(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *Handler) listDeployments(c *gin.Context) {
	deployments := h.session.Deployments()
	if deployments == nil {
		deployments = []*domain.BuddyDeployment{}
	}
	c.JSON(http.StatusOK, gin.H{"deployments": deployments})
}

// deployRequest is the JSON body of POST /deployments.
type deployRequest struct {
	BuddyName     string                    `json:"buddyName" binding:"required"`
	Configuration domain.BuddyConfiguration `json:"configuration"`
}

func (h *Handler) deployBuddy(c *gin.Context) {
	var req deployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	rec, err := h.session.DeployBuddy(c.Request.Context(), req.BuddyName, req.Configuration)
	if err != nil {
		if errors.Is(err, wallet.ErrNotConnected) {
			abortWithError(c, http.StatusConflict, err)
			return
		}
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (h *Handler) getActiveDeployment(c *gin.Context) {
	rec := h.session.BuddyDeployment(c.Query("wallet"))
	if rec == nil {
		abortWithError(c, http.StatusNotFound, errors.New("no active deployment"))
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) updateActiveDeployment(c *gin.Context) {
	var rec domain.BuddyDeployment
	if err := c.ShouldBindJSON(&rec); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if err := h.session.UpdateBuddyDeployment(c.Request.Context(), c.Query("wallet"), &rec); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listTokens(c *gin.Context) {
	h.windowMu.RLock()
	window := make([]*domain.DiscoveredToken, len(h.tokenWindow))
	copy(window, h.tokenWindow)
	h.windowMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"tokens": window})
}

func (h *Handler) listTrending(c *gin.Context) {
	tokens, err := h.tokens.Trending(c.Request.Context(), defaultTokenWindowCap)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

func (h *Handler) getTokenMetrics(c *gin.Context) {
	token, err := h.tokens.TokenMetrics(c.Request.Context(), c.Param("mint"))
	if err != nil {
		abortWithError(c, http.StatusBadGateway, err)
		return
	}
	if token == nil {
		abortWithError(c, http.StatusNotFound, errors.New("token not found"))
		return
	}
	c.JSON(http.StatusOK, token)
}

func (h *Handler) listPrices(c *gin.Context) {
	var mints []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			mints = append(mints, id)
		}
	}
	if len(mints) == 0 {
		abortWithError(c, http.StatusBadRequest, errors.New("ids query parameter is required"))
		return
	}

	prices, err := h.prices.PricesUSD(c.Request.Context(), mints)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// chatRequest is the JSON body of POST /chat.
type chatRequest struct {
	Messages []domain.ChatMessage   `json:"messages" binding:"required"`
	Context  *domain.TradingContext `json:"context"`
}

func (h *Handler) postChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	reply, err := h.chatSvc.SendMessage(c.Request.Context(), req.Messages, req.Context)
	if err != nil {
		if errors.Is(err, chat.ErrNoProviderConfigured) {
			abortWithError(c, http.StatusServiceUnavailable, err)
			return
		}
		abortWithError(c, http.StatusBadGateway, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}

func (h *Handler) postTrade(c *gin.Context) {
	var order simulation.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	trade, err := h.trader.Execute(c.Request.Context(), order)
	if err != nil {
		switch {
		case errors.Is(err, simulation.ErrLiveModeUnsupported):
			abortWithError(c, http.StatusUnprocessableEntity, err)
		case errors.Is(err, simulation.ErrNoQuote):
			abortWithError(c, http.StatusNotFound, err)
		default:
			abortWithError(c, http.StatusBadRequest, err)
		}
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *Handler) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
