// Package config loads service configuration from a YAML file with
// environment variable overrides layered on top.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends for buddy deployments.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds all trenches-buddy configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Solana  SolanaConfig  `yaml:"solana"`
	Monitor MonitorConfig `yaml:"monitor"`
	Market  MarketConfig  `yaml:"market"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the REST surface.
type ServerConfig struct {
	ListenAddr  string   `yaml:"listen_addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// SolanaConfig configures RPC access and the wallet session.
type SolanaConfig struct {
	RPCEndpoint      string   `yaml:"rpc_endpoint"`
	WSEndpoint       string   `yaml:"ws_endpoint"`
	WalletName       string   `yaml:"wallet_name"`
	SupportedWallets []string `yaml:"supported_wallets"`
}

// MonitorConfig configures the token discovery monitor. Durations are
// strings in time.ParseDuration form ("60s", "300ms").
type MonitorConfig struct {
	Interval      string `yaml:"interval"`
	BatchLimit    int    `yaml:"batch_limit"`
	PricesPerTick int    `yaml:"prices_per_tick"`
	PriceSpacing  string `yaml:"price_spacing"`
	FetchTimeout  string `yaml:"fetch_timeout"`
}

// MarketConfig configures upstream market data providers.
type MarketConfig struct {
	MoralisAPIKey  string `yaml:"moralis_api_key"`
	MoralisBaseURL string `yaml:"moralis_base_url"`
	JupiterBaseURL string `yaml:"jupiter_base_url"`
}

// StorageConfig selects the deployment store backend and the optional
// price history sink.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory, file, postgres
	FilePath      string `yaml:"file_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"` // empty disables price history
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:  ":8080",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Solana: SolanaConfig{
			RPCEndpoint: "https://api.mainnet-beta.solana.com",
			WalletName:  "phantom",
		},
		Monitor: MonitorConfig{
			Interval:      "60s",
			BatchLimit:    5,
			PricesPerTick: 3,
			PriceSpacing:  "300ms",
			FetchTimeout:  "10s",
		},
		Storage: StorageConfig{
			Backend:  BackendFile,
			FilePath: "data/deployments.json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides always apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("SOLANA_RPC_ENDPOINT"); v != "" {
		c.Solana.RPCEndpoint = v
	}
	if v := os.Getenv("SOLANA_WS_ENDPOINT"); v != "" {
		c.Solana.WSEndpoint = v
	}
	if v := os.Getenv("MORALIS_API_KEY"); v != "" {
		c.Market.MoralisAPIKey = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("DEPLOYMENTS_FILE"); v != "" {
		c.Storage.FilePath = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickhouseDSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks backend selection and duration syntax.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendFile, BackendPostgres:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage backend %q requires a postgres DSN", BackendPostgres)
	}
	if c.Storage.Backend == BackendFile && c.Storage.FilePath == "" {
		return fmt.Errorf("storage backend %q requires a file path", BackendFile)
	}
	for name, s := range map[string]string{
		"monitor.interval":      c.Monitor.Interval,
		"monitor.price_spacing": c.Monitor.PriceSpacing,
		"monitor.fetch_timeout": c.Monitor.FetchTimeout,
	} {
		if s == "" {
			continue
		}
		if _, err := time.ParseDuration(s); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", name, err)
		}
	}
	return nil
}

// MonitorInterval returns the parsed poll interval.
func (c *Config) MonitorInterval() time.Duration {
	return parseDurationOr(c.Monitor.Interval, 60*time.Second)
}

// PriceSpacing returns the parsed gap between per-tick price fetches.
func (c *Config) PriceSpacing() time.Duration {
	return parseDurationOr(c.Monitor.PriceSpacing, 300*time.Millisecond)
}

// FetchTimeout returns the parsed per-fetch deadline.
func (c *Config) FetchTimeout() time.Duration {
	return parseDurationOr(c.Monitor.FetchTimeout, 10*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
