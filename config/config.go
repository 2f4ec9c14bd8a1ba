package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/autotrader/backtest"
	"github.com/rustyeddy/autotrader/risk"
	"github.com/rustyeddy/autotrader/strategies"
)

// Config is the complete trader configuration. It is built once at startup
// and handed to the constructors that need it.
type Config struct {
	Account    AccountConfig       `json:"account" yaml:"account"`
	Risk       RiskConfig          `json:"risk" yaml:"risk"`
	Symbols    []string            `json:"symbols" yaml:"symbols"`
	Strategies []strategies.Config `json:"strategies" yaml:"strategies"`
	Engine     EngineConfig        `json:"engine" yaml:"engine"`
	Backtest   BacktestConfig      `json:"backtest" yaml:"backtest"`
	Journal    JournalConfig       `json:"journal" yaml:"journal"`
	Market     MarketConfig        `json:"market" yaml:"market"`
	Exchange   ExchangeConfig      `json:"exchange" yaml:"exchange"`
	Notify     NotifyConfig        `json:"notify" yaml:"notify"`
	Log        LogConfig           `json:"log" yaml:"log"`
}

type AccountConfig struct {
	InitialBalance float64 `json:"initial_balance" yaml:"initial_balance"`
}

// RiskConfig is the risk limits plus the timezone the daily loss window
// follows.
type RiskConfig struct {
	risk.Limits `yaml:",inline"`
	Timezone    string `json:"timezone" yaml:"timezone"`
}

// Location resolves Timezone. Empty means UTC.
func (r RiskConfig) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("risk.timezone: %w", err)
	}
	return loc, nil
}

// EngineConfig holds the live loop timings as duration strings ("60s", "5m").
type EngineConfig struct {
	CycleInterval   string `json:"cycle_interval" yaml:"cycle_interval"`
	RefreshInterval string `json:"refresh_interval" yaml:"refresh_interval"`
}

func (e EngineConfig) Cycle() (time.Duration, error) {
	return parsePositive("engine.cycle_interval", e.CycleInterval)
}

// Refresh falls back to the cycle interval when unset.
func (e EngineConfig) Refresh() (time.Duration, error) {
	if e.RefreshInterval == "" {
		return e.Cycle()
	}
	return parsePositive("engine.refresh_interval", e.RefreshInterval)
}

type BacktestConfig struct {
	CloseAtEnd     bool    `json:"close_at_end" yaml:"close_at_end"`
	Seed           int64   `json:"seed" yaml:"seed"`
	DefaultUSDSize float64 `json:"default_usd_size" yaml:"default_usd_size"`

	// Indicators computes SMA and RSI for bars that do not carry them.
	Indicators *backtest.IndicatorPeriods `json:"indicators,omitempty" yaml:"indicators,omitempty"`
}

// JournalConfig selects where trades, fills and equity are recorded. DSN is a
// sqlite path or a postgres:// URL; CSVDir additionally writes CSV files.
type JournalConfig struct {
	DSN    string `json:"dsn,omitempty" yaml:"dsn,omitempty"`
	CSVDir string `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty"`
}

// MarketConfig points at the snapshot collector. ws:// and wss:// URLs are
// streamed; http:// and https:// URLs are polled every refresh interval.
type MarketConfig struct {
	FeedURL string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`
}

// Streaming reports whether FeedURL is a websocket endpoint.
func (m MarketConfig) Streaming() bool {
	return strings.HasPrefix(m.FeedURL, "ws://") || strings.HasPrefix(m.FeedURL, "wss://")
}

type ExchangeConfig struct {
	Name           string  `json:"name" yaml:"name"`
	SlippageBps    float64 `json:"slippage_bps" yaml:"slippage_bps"`
	MinNotional    float64 `json:"min_notional" yaml:"min_notional"`
	RateLimitRPS   float64 `json:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `json:"rate_limit_burst" yaml:"rate_limit_burst"`
}

type NotifyConfig struct {
	TelegramToken  string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChatID int64  `json:"telegram_chat_id,omitempty" yaml:"telegram_chat_id,omitempty"`
	Rejections     bool   `json:"rejections,omitempty" yaml:"rejections,omitempty"`
}

// Telegram reports whether notifications are configured.
func (n NotifyConfig) Telegram() bool {
	return n.TelegramToken != ""
}

type LogConfig struct {
	Level       string `json:"level" yaml:"level"`
	Development bool   `json:"development" yaml:"development"`
}

// Default returns a paper-trading configuration for a five dollar account.
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialBalance: 5},
		Risk:    RiskConfig{Limits: risk.DefaultLimits(), Timezone: "UTC"},
		Symbols: []string{"BTC/USDT", "ETH/USDT"},
		Strategies: []strategies.Config{
			{Type: "ma-cross"},
			{Type: "rsi", Oversold: 30, Overbought: 70, MinVolume: 1e6},
		},
		Engine:   EngineConfig{CycleInterval: "60s", RefreshInterval: "30s"},
		Backtest: BacktestConfig{Seed: 1},
		Journal:  JournalConfig{DSN: "trader.db"},
		Exchange: ExchangeConfig{Name: "paper", RateLimitRPS: 5, RateLimitBurst: 1},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads path over Default, then applies .env and TRADER_* environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a file without consulting the
// environment.
func LoadFromFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, c); err != nil {
		if jerr := json.Unmarshal(data, c); jerr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): %w", errors.Join(err, jerr))
		}
	}
	return nil
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from TRADER_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TRADER_INITIAL_BALANCE"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TRADER_INITIAL_BALANCE: %w", err)
		}
		c.Account.InitialBalance = f
	}
	if v, ok := get("TRADER_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := get("TRADER_JOURNAL_DSN"); ok {
		c.Journal.DSN = v
	}
	if v, ok := get("TRADER_MARKET_FEED_URL"); ok {
		c.Market.FeedURL = v
	}
	if v, ok := get("TRADER_TELEGRAM_TOKEN"); ok {
		c.Notify.TelegramToken = v
	}
	if v, ok := get("TRADER_TELEGRAM_CHAT_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TRADER_TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notify.TelegramChatID = id
	}
	if v, ok := get("TRADER_TIMEZONE"); ok {
		c.Risk.Timezone = v
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialBalance <= 0 {
		return fmt.Errorf("account.initial_balance must be positive")
	}
	if err := c.Risk.Limits.Validate(); err != nil {
		return err
	}
	if _, err := c.Risk.Location(); err != nil {
		return err
	}

	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must not be empty")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for i, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("symbols[%d] must not be empty", i)
		}
		if seen[s] {
			return fmt.Errorf("symbols[%d]: duplicate symbol %q", i, s)
		}
		seen[s] = true
	}

	if len(c.Strategies) == 0 {
		return fmt.Errorf("strategies must not be empty")
	}
	if _, err := strategies.NewAll(c.Strategies, c.Risk.Limits); err != nil {
		return err
	}

	if _, err := c.Engine.Cycle(); err != nil {
		return err
	}
	if _, err := c.Engine.Refresh(); err != nil {
		return err
	}

	if u := c.Market.FeedURL; u != "" && !c.Market.Streaming() &&
		!strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("market.feed_url must be a ws, wss, http or https URL")
	}

	if c.Exchange.Name != "paper" {
		return fmt.Errorf("exchange.name must be 'paper'")
	}
	if c.Exchange.SlippageBps < 0 || c.Exchange.MinNotional < 0 {
		return fmt.Errorf("exchange.slippage_bps and exchange.min_notional must not be negative")
	}
	if c.Exchange.RateLimitRPS < 0 || c.Exchange.RateLimitBurst < 0 {
		return fmt.Errorf("exchange rate limits must not be negative")
	}

	if p := c.Backtest.Indicators; p != nil {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("backtest.indicators: %w", err)
		}
	}

	if c.Notify.Telegram() && c.Notify.TelegramChatID == 0 {
		return fmt.Errorf("notify.telegram_chat_id required when telegram_token is set")
	}
	return nil
}

func parsePositive(field, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", field)
	}
	return d, nil
}
