package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config describes everything the daemon loads at startup.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Chain   ChainConfig   `json:"chain"`
	Advisor AdvisorConfig `json:"advisor"`
	DEX     DEXConfig     `json:"dex"`
	Market  MarketConfig  `json:"market"`
	Trading TradingConfig `json:"trading"`
	Journal JournalConfig `json:"journal"`
	Notify  NotifyConfig  `json:"notify"`
	Auth    AuthConfig    `json:"auth"`
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig controls the REST API listener.
type ServerConfig struct {
	Address string `json:"address"`
}

// ChainConfig points the facade at an Aptos fullnode. The private key is only
// ever read from the environment; without it the daemon runs read-only.
type ChainConfig struct {
	NodeURL        string `json:"node_url"`
	PrivateKeyEnv  string `json:"private_key_env"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Timeout returns the per-request chain client timeout.
func (c ChainConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AdvisorConfig configures the completion service. A missing API key disables
// advice generation rather than failing startup.
type AdvisorConfig struct {
	APIKeyEnv      string `json:"api_key_env"`
	BaseURL        string `json:"base_url"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Knowledge      string `json:"knowledge"`
	MaxKnowledge   int    `json:"max_knowledge"`
}

// Timeout returns the advisor call timeout.
func (c AdvisorConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DEXConfig locates the pool definitions consumed by the swap plugins.
type DEXConfig struct {
	PoolsFile string `json:"pools_file"`
}

// MarketConfig configures the market data sources polled by the trading loop.
type MarketConfig struct {
	PriceURL string   `json:"price_url"`
	TickerWS string   `json:"ticker_ws"`
	Symbols  []string `json:"symbols"`
}

// TradingConfig holds the trading loop parameters.
type TradingConfig struct {
	IntervalSeconds         int    `json:"interval_seconds"`
	MinTradeIntervalSeconds int    `json:"min_trade_interval_seconds"`
	MaxPriceImpactBps       int    `json:"max_price_impact_bps"`
	Address                 string `json:"address"`
}

// Interval returns the wall-clock cycle interval.
func (c TradingConfig) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// MinTradeInterval returns the debounce window between submitted trades.
func (c TradingConfig) MinTradeInterval() time.Duration {
	if c.MinTradeIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.MinTradeIntervalSeconds) * time.Second
}

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// NotifyConfig selects the notification backend in addition to the always-on
// log notifier.
type NotifyConfig struct {
	Driver   string         `json:"driver"`
	Redis    RedisNotify    `json:"redis"`
	RabbitMQ RabbitMQNotify `json:"rabbitmq"`
}

// RedisNotify holds Redis pub/sub connection details.
type RedisNotify struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Channel  string `json:"channel"`
}

// RabbitMQNotify holds RabbitMQ connection details.
type RabbitMQNotify struct {
	URL      string `json:"url"`
	Exchange string `json:"exchange"`
}

// AuthConfig controls API-key protection on the REST API.
type AuthConfig struct {
	Enabled bool     `json:"enabled"`
	Keys    []string `json:"keys"`
	KeysEnv string   `json:"keys_env"`
}

// LoggingConfig mirrors pkg/logger.Config so it can be parsed from JSON.
type LoggingConfig struct {
	Level       string   `json:"level"`
	Format      string   `json:"format"`
	OutputPaths []string `json:"output_paths"`
	AuditPath   string   `json:"audit_path"`
}

// Load parses the JSON configuration at path and applies defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// applyDefaults fills in sensible values for fields the user left empty.
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Chain.NodeURL == "" {
		c.Chain.NodeURL = "https://fullnode.mainnet.aptoslabs.com"
	}
	if c.Chain.PrivateKeyEnv == "" {
		c.Chain.PrivateKeyEnv = "APTOS_PRIVATE_KEY"
	}
	if c.Advisor.APIKeyEnv == "" {
		c.Advisor.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Advisor.Model == "" {
		c.Advisor.Model = "gpt-4o-mini"
	}
	if c.DEX.PoolsFile == "" {
		c.DEX.PoolsFile = filepath.Join(baseDir, "pools.yaml")
	} else if !filepath.IsAbs(c.DEX.PoolsFile) {
		c.DEX.PoolsFile = filepath.Join(baseDir, c.DEX.PoolsFile)
	}
	if c.Advisor.Knowledge != "" && !filepath.IsAbs(c.Advisor.Knowledge) {
		c.Advisor.Knowledge = filepath.Join(baseDir, c.Advisor.Knowledge)
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "memory"
	}
	if c.Notify.Driver == "" {
		c.Notify.Driver = "log"
	}
	if c.Trading.MaxPriceImpactBps <= 0 {
		c.Trading.MaxPriceImpactBps = 100
	}
}

// PrivateKey resolves the signing key from the configured environment
// variable. Empty means read-only mode.
func (c ChainConfig) PrivateKey() string {
	return strings.TrimSpace(os.Getenv(c.PrivateKeyEnv))
}

// APIKey resolves the advisor credential from the environment.
func (c AdvisorConfig) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// APIKeys merges the statically configured keys with a comma separated list
// from the environment.
func (c AuthConfig) APIKeys() []string {
	keys := make([]string, 0, len(c.Keys))
	for _, key := range c.Keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	if c.KeysEnv != "" {
		for _, key := range strings.Split(os.Getenv(c.KeysEnv), ",") {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				keys = append(keys, trimmed)
			}
		}
	}
	return keys
}
