// Package main runs the trenches-buddy daemon: wallet session, token
// discovery monitor, chat providers and the REST API in one process.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"trenches-buddy/internal/chat"
	"trenches-buddy/internal/config"
	"trenches-buddy/internal/discovery"
	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/logger"
	"trenches-buddy/internal/market"
	"trenches-buddy/internal/restapi"
	"trenches-buddy/internal/simulation"
	"trenches-buddy/internal/solana"
	"trenches-buddy/internal/storage"
	chstore "trenches-buddy/internal/storage/clickhouse"
	filestore "trenches-buddy/internal/storage/file"
	"trenches-buddy/internal/storage/memory"
	"trenches-buddy/internal/storage/migrations"
	pgstore "trenches-buddy/internal/storage/postgres"
	"trenches-buddy/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to the YAML config file")
	walletPubkey := flag.String("wallet-pubkey", os.Getenv("WALLET_PUBKEY"), "Public key served by the headless wallet adapter")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, cancel, cfg, *walletPubkey, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("daemon failed", zap.Error(err))
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, walletPubkey string, log *zap.Logger) error {
	deploymentStore, priceSink, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint)

	locator := wallet.NewStaticLocator()
	if walletPubkey != "" {
		if err := solana.ValidateAddress(walletPubkey); err != nil {
			return fmt.Errorf("wallet pubkey: %w", err)
		}
		locator = wallet.NewStaticLocator(
			wallet.NewHeadlessAdapter(cfg.Solana.WalletName, walletPubkey),
		)
	} else {
		log.Warn("no wallet pubkey configured, connect requests will fail")
	}

	session := wallet.NewSessionManager(ctx, wallet.SessionManagerOptions{
		Locator:          locator,
		RPC:              rpc,
		Store:            deploymentStore,
		Logger:           log,
		WalletName:       cfg.Solana.WalletName,
		SupportedWallets: cfg.Solana.SupportedWallets,
	})

	moralis := market.NewMoralisClient(market.MoralisClientOptions{
		APIKey:  cfg.Market.MoralisAPIKey,
		BaseURL: cfg.Market.MoralisBaseURL,
		Logger:  log,
	})
	source := market.NewTokenSource(market.TokenSourceOptions{
		Moralis: moralis,
		Logger:  log,
	})
	jupiter := market.NewJupiterClient(market.JupiterClientOptions{
		BaseURL: cfg.Market.JupiterBaseURL,
		Logger:  log,
	})

	monitor := discovery.NewMonitor(discovery.MonitorOptions{
		Source: source,
		Prices: moralis,
		Sink:   priceSink,
		Logger: log,
		Config: discovery.Config{
			Interval:      cfg.MonitorInterval(),
			BatchLimit:    cfg.Monitor.BatchLimit,
			PricesPerTick: cfg.Monitor.PricesPerTick,
			PriceSpacing:  cfg.PriceSpacing(),
			FetchTimeout:  cfg.FetchTimeout(),
		},
	})

	chatSvc, err := chat.NewServiceFromEnv(ctx, log)
	if err != nil {
		return fmt.Errorf("build chat providers: %w", err)
	}
	if !chatSvc.HasProviders() {
		log.Warn("no LLM provider keys configured, chat endpoint will return 503")
	} else {
		log.Info("chat providers ready", zap.Strings("providers", chatSvc.Providers()))
	}

	trader := simulation.NewTrader(simulation.TraderOptions{
		Quotes: moralis,
		Logger: log,
	})

	handler := restapi.NewHandler(restapi.HandlerOptions{
		Session: session,
		Tokens:  source,
		Prices:  jupiter,
		Chat:    chatSvc,
		Trader:  trader,
		Feed:    monitor,
		Logger:  log,
	})
	defer handler.Close()

	monitor.Start()
	defer monitor.Stop()

	if cfg.Solana.WSEndpoint != "" && walletPubkey != "" {
		go watchBalance(ctx, cfg.Solana.WSEndpoint, walletPubkey, log)
	}

	srv := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: restapi.NewRouter(handler, cfg.Server.CORSOrigins),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildStores wires the deployment store backend and the optional
// ClickHouse price sink from config.
func buildStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.DeploymentStore, storage.PriceTimeseriesStore, func(), error) {
	cleanups := []func(){}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var deploymentStore storage.DeploymentStore
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		deploymentStore = memory.NewDeploymentStore()
	case config.BackendFile:
		deploymentStore = filestore.NewDeploymentStore(cfg.Storage.FilePath)
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		cleanups = append(cleanups, pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
		}
		deploymentStore = pgstore.NewDeploymentStore(pool)
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	var priceSink storage.PriceTimeseriesStore
	if cfg.Storage.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		cleanups = append(cleanups, func() { conn.Close() })
		priceSink = chstore.NewPriceTimeseriesStore(conn)
		log.Info("price history sink enabled")
	}

	return deploymentStore, priceSink, cleanup, nil
}

// watchBalance streams lamport changes for the configured wallet until
// the context ends.
func watchBalance(ctx context.Context, wsEndpoint, pubkey string, log *zap.Logger) {
	ws, err := solana.NewWSClient(ctx, wsEndpoint, nil, log)
	if err != nil {
		log.Warn("balance watch disabled", zap.Error(err))
		return
	}
	defer ws.Close()

	notifications, err := ws.SubscribeAccount(ctx, pubkey)
	if err != nil {
		log.Warn("account subscription failed", zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			log.Info("wallet balance changed",
				zap.String("pubkey", n.Pubkey),
				zap.Float64("sol", float64(n.Lamports)/domain.LamportsPerSOL),
				zap.Int64("slot", n.Slot),
			)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
