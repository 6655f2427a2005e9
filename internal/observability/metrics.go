// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Session metrics
	WalletConnects    prometheus.Counter
	WalletDisconnects prometheus.Counter
	ConnectFailures   *prometheus.CounterVec
	BuddiesDeployed   prometheus.Counter

	// Discovery metrics
	MonitorTicks        prometheus.Counter
	NewTokensDiscovered prometheus.Counter
	PriceFetches        *prometheus.CounterVec
	PriceSubscriptions  prometheus.Gauge

	// Chat metrics
	ChatCompletions *prometheus.CounterVec
	ChatLatency     *prometheus.HistogramVec

	// Trading metrics
	TradesSimulated *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Health metrics
	LastSuccessfulTick prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trenches_buddy"
	}

	return &Metrics{
		// Session metrics
		WalletConnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "wallet_connects_total",
			Help:      "Total number of successful wallet connections",
		}),
		WalletDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "wallet_disconnects_total",
			Help:      "Total number of wallet disconnections",
		}),
		ConnectFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connect_failures_total",
			Help:      "Total number of failed wallet connections by reason",
		}, []string{"reason"}),
		BuddiesDeployed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "buddies_deployed_total",
			Help:      "Total number of buddy deployments",
		}),

		// Discovery metrics
		MonitorTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "monitor_ticks_total",
			Help:      "Total number of monitor polling ticks",
		}),
		NewTokensDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "new_tokens_discovered_total",
			Help:      "Total number of new tokens delivered to subscribers",
		}),
		PriceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "price_fetches_total",
			Help:      "Total number of per-mint price fetches by status",
		}, []string{"status"}),
		PriceSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "price_subscriptions",
			Help:      "Current number of per-mint price subscriptions",
		}),

		// Chat metrics
		ChatCompletions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "completions_total",
			Help:      "Total number of chat completions by provider and status",
		}, []string{"provider", "status"}),
		ChatLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "completion_latency_seconds",
			Help:      "Chat completion latency in seconds by provider",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),

		// Trading metrics
		TradesSimulated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_simulated_total",
			Help:      "Total number of simulated trades by side",
		}, []string{"side"}),

		// Latency metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		// Health metrics
		LastSuccessfulTick: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_tick_timestamp",
			Help:      "Unix timestamp of the last completed monitor tick",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordWalletConnect increments the wallet connects counter.
func RecordWalletConnect() {
	DefaultMetrics.WalletConnects.Inc()
}

// RecordWalletDisconnect increments the wallet disconnects counter.
func RecordWalletDisconnect() {
	DefaultMetrics.WalletDisconnects.Inc()
}

// RecordConnectFailure records a failed connection attempt.
func RecordConnectFailure(reason string) {
	DefaultMetrics.ConnectFailures.WithLabelValues(reason).Inc()
}

// RecordBuddyDeployed increments the buddy deployments counter.
func RecordBuddyDeployed() {
	DefaultMetrics.BuddiesDeployed.Inc()
}

// RecordMonitorTick increments the monitor tick counter.
func RecordMonitorTick() {
	DefaultMetrics.MonitorTicks.Inc()
}

// RecordNewTokens adds to the discovered tokens counter.
func RecordNewTokens(count int) {
	DefaultMetrics.NewTokensDiscovered.Add(float64(count))
}

// RecordPriceFetch records a per-mint price fetch outcome.
func RecordPriceFetch(status string) {
	DefaultMetrics.PriceFetches.WithLabelValues(status).Inc()
}

// UpdatePriceSubscriptions updates the price subscription gauge.
func UpdatePriceSubscriptions(count int) {
	DefaultMetrics.PriceSubscriptions.Set(float64(count))
}

// RecordChatCompletion records a chat completion outcome.
func RecordChatCompletion(provider, status string, seconds float64) {
	DefaultMetrics.ChatCompletions.WithLabelValues(provider, status).Inc()
	DefaultMetrics.ChatLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordTradeSimulated increments the simulated trades counter.
func RecordTradeSimulated(side string) {
	DefaultMetrics.TradesSimulated.WithLabelValues(side).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
