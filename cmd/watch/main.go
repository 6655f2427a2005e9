// Package main runs the token discovery monitor standalone and prints
// new listings and price updates to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"trenches-buddy/internal/discovery"
	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/logger"
	"trenches-buddy/internal/market"
)

func main() {
	_ = godotenv.Load()

	apiKey := flag.String("moralis-key", os.Getenv("MORALIS_API_KEY"), "Moralis API key")
	interval := flag.Duration("interval", 60*time.Second, "Polling interval")
	batchLimit := flag.Int("batch-limit", 5, "Max new tokens per tick")
	watch := flag.String("watch", "", "Comma-separated mints to follow prices for")
	logLevel := flag.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flag.Parse()

	log, err := logger.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	moralis := market.NewMoralisClient(market.MoralisClientOptions{
		APIKey: *apiKey,
		Logger: log,
	})
	source := market.NewTokenSource(market.TokenSourceOptions{
		Moralis: moralis,
		Logger:  log,
	})

	monitor := discovery.NewMonitor(discovery.MonitorOptions{
		Source: source,
		Prices: moralis,
		Logger: log,
		Config: discovery.Config{
			Interval:   *interval,
			BatchLimit: *batchLimit,
		},
	})

	unsubscribe := monitor.OnNewTokens(printBatch)
	defer unsubscribe()

	for _, mint := range strings.Split(*watch, ",") {
		mint = strings.TrimSpace(mint)
		if mint == "" {
			continue
		}
		m := mint
		monitor.Subscribe(m, func(price float64) {
			fmt.Printf("%s  price %-44s $%.8f\n", time.Now().Format(time.TimeOnly), m, price)
		})
	}

	monitor.Start()
	defer monitor.Stop()

	fmt.Printf("watching for new listings every %v (ctrl-c to stop)\n", *interval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info("stopping", zap.String("reason", "signal"))
}

func printBatch(tokens []*domain.DiscoveredToken) {
	for _, t := range tokens {
		graduated := ""
		if t.IsGraduated {
			graduated = "  [graduated]"
		}
		fmt.Printf("%s  new %-8s %-44s $%.8f  mcap $%.0f%s\n",
			time.Now().Format(time.TimeOnly), t.Symbol, t.Mint, t.Price, t.MarketCap, graduated)
	}
}
