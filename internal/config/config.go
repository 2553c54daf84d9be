// Package config handles configuration loading for OptionPulse.
// It supports YAML config files with .env and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned by Validate for impossible settings.
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "OPTIONPULSE"

// Config represents the complete application configuration.
type Config struct {
	Upstox   UpstoxConfig   `mapstructure:"upstox"   yaml:"upstox"`
	Kite     KiteConfig     `mapstructure:"kite"     yaml:"kite"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Scanner  ScannerConfig  `mapstructure:"scanner"  yaml:"scanner"`
	Reversal ReversalConfig `mapstructure:"reversal" yaml:"reversal"`
	Monitor  MonitorConfig  `mapstructure:"monitor"  yaml:"monitor"`
	Feed     FeedConfig     `mapstructure:"feed"     yaml:"feed"`
	Paper    PaperConfig    `mapstructure:"paper"    yaml:"paper"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// UpstoxConfig holds Upstox API credentials and endpoints.
type UpstoxConfig struct {
	BaseURL     string `mapstructure:"base_url"     yaml:"base_url"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`
	FeedURL     string `mapstructure:"feed_url"     yaml:"feed_url"` // authorized market-data websocket URL
	TimeoutSec  int    `mapstructure:"timeout_sec"  yaml:"timeout_sec"`
	Retries     int    `mapstructure:"retries"      yaml:"retries"`
}

// KiteConfig holds Zerodha Kite credentials, used as an alternative LTP source.
type KiteConfig struct {
	APIKey      string `mapstructure:"api_key"      yaml:"api_key"`
	AccessToken string `mapstructure:"access_token" yaml:"access_token"`
}

// TelegramConfig holds the bot token and destination chats.
type TelegramConfig struct {
	BotToken       string  `mapstructure:"bot_token"        yaml:"bot_token"`
	SignalChatIDs  []int64 `mapstructure:"signal_chat_ids"  yaml:"signal_chat_ids"` // entry and reversal alerts
	ExitChatIDs    []int64 `mapstructure:"exit_chat_ids"    yaml:"exit_chat_ids"`   // progress and exit alerts
	MessagesPerSec float64 `mapstructure:"messages_per_sec" yaml:"messages_per_sec"`
}

// ScannerConfig holds scan cycle settings.
type ScannerConfig struct {
	Symbols      []string `mapstructure:"symbols"       yaml:"symbols"`
	IntervalSec  int      `mapstructure:"interval_sec"  yaml:"interval_sec"`
	Concurrency  int      `mapstructure:"concurrency"   yaml:"concurrency"`
	MinScore     int      `mapstructure:"min_score"     yaml:"min_score"`
	CandleSource string   `mapstructure:"candle_source" yaml:"candle_source"` // "upstox", "yfinance" or "auto"
	Lots         int      `mapstructure:"lots"          yaml:"lots"`
	TargetATR    float64  `mapstructure:"target_atr"    yaml:"target_atr"`
	StopATR      float64  `mapstructure:"stop_atr"      yaml:"stop_atr"`
	TargetPct    float64  `mapstructure:"target_pct"    yaml:"target_pct"` // fallback when ATR is zero
	StopPct      float64  `mapstructure:"stop_pct"      yaml:"stop_pct"`
	OptionChain  bool     `mapstructure:"option_chain"  yaml:"option_chain"`
}

// ReversalConfig holds the reversal state machine windows.
type ReversalConfig struct {
	BlockWindowSec   int    `mapstructure:"block_window_sec"   yaml:"block_window_sec"`
	ConfirmWindowSec int    `mapstructure:"confirm_window_sec" yaml:"confirm_window_sec"`
	StateFile        string `mapstructure:"state_file"         yaml:"state_file"`
}

// MonitorConfig holds virtual position monitor settings.
type MonitorConfig struct {
	CheckIntervalMs int     `mapstructure:"check_interval_ms" yaml:"check_interval_ms"`
	ProgressPct     float64 `mapstructure:"progress_pct"      yaml:"progress_pct"`
	SquareOff       string  `mapstructure:"square_off"        yaml:"square_off"` // "15:20" IST
}

// FeedConfig holds live price feed settings.
type FeedConfig struct {
	Mode            string `mapstructure:"mode"              yaml:"mode"` // "websocket", "upstox_poll", "kite_poll"
	PollIntervalSec int    `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
	StaleAfterSec   int    `mapstructure:"stale_after_sec"   yaml:"stale_after_sec"`
}

// PaperConfig holds paper-trading ledger settings.
type PaperConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
}

// NewsConfig holds RSS headline settings.
type NewsConfig struct {
	Enabled     bool     `mapstructure:"enabled"       yaml:"enabled"`
	Feeds       []string `mapstructure:"feeds"         yaml:"feeds"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	Headlines   int      `mapstructure:"headlines"     yaml:"headlines"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Enabled     bool     `mapstructure:"enabled"      yaml:"enabled"`
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"       yaml:"format"` // "text" or "json"
	File       string `mapstructure:"file"         yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Timeout returns the per-request HTTP timeout for the Upstox REST API.
func (c UpstoxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Interval returns the scan interval.
func (c ScannerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// BlockWindow returns the minimum signal age before an opposing signal may start a watch.
func (c ReversalConfig) BlockWindow() time.Duration {
	return time.Duration(c.BlockWindowSec) * time.Second
}

// ConfirmWindow returns how long an opposing signal must persist to confirm a reversal.
func (c ReversalConfig) ConfirmWindow() time.Duration {
	return time.Duration(c.ConfirmWindowSec) * time.Second
}

// CheckInterval returns the monitor check period.
func (c MonitorConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

// SquareOffClock parses SquareOff into hour and minute.
func (c MonitorConfig) SquareOffClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.SquareOff)
	if err != nil {
		return 0, 0, fmt.Errorf("monitor.square_off %q: %w", c.SquareOff, err)
	}
	return t.Hour(), t.Minute(), nil
}

// PollInterval returns the LTP poll period.
func (c FeedConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// StaleAfter returns the age after which a cached price is ignored.
func (c FeedConfig) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterSec) * time.Second
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.optionpulse/config.yaml (home directory)
//  3. /etc/optionpulse/config.yaml (system)
//
// A .env file in the working directory is loaded first if present.
// Environment variables override config file values.
// Format: OPTIONPULSE_<SECTION>_<KEY>, e.g., OPTIONPULSE_UPSTOX_ACCESS_TOKEN
func Load() (*Config, error) {
	loadDotEnv()

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".optionpulse"))
	v.AddConfigPath("/etc/optionpulse")

	// Environment variable settings
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Validate rejects settings the scanner and monitor cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Reversal.BlockWindowSec <= 0 {
		errs = append(errs, fmt.Errorf("reversal.block_window_sec must be positive, got %d", c.Reversal.BlockWindowSec))
	}
	if c.Reversal.ConfirmWindowSec <= 0 {
		errs = append(errs, fmt.Errorf("reversal.confirm_window_sec must be positive, got %d", c.Reversal.ConfirmWindowSec))
	}
	if c.Scanner.MinScore < 0 || c.Scanner.MinScore > 100 {
		errs = append(errs, fmt.Errorf("scanner.min_score must be within 0..100, got %d", c.Scanner.MinScore))
	}
	if c.Scanner.IntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("scanner.interval_sec must be positive, got %d", c.Scanner.IntervalSec))
	}
	if c.Scanner.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("scanner.concurrency must be positive, got %d", c.Scanner.Concurrency))
	}
	if len(c.Scanner.Symbols) == 0 {
		errs = append(errs, errors.New("scanner.symbols is empty"))
	}
	if c.Monitor.ProgressPct <= 0 || c.Monitor.ProgressPct >= 100 {
		errs = append(errs, fmt.Errorf("monitor.progress_pct must be within (0, 100), got %g", c.Monitor.ProgressPct))
	}
	if c.Monitor.CheckIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("monitor.check_interval_ms must be positive, got %d", c.Monitor.CheckIntervalMs))
	}
	if _, _, err := c.Monitor.SquareOffClock(); err != nil {
		errs = append(errs, err)
	}
	switch c.Feed.Mode {
	case "websocket", "upstox_poll", "kite_poll":
	default:
		errs = append(errs, fmt.Errorf("feed.mode %q is not one of websocket, upstox_poll, kite_poll", c.Feed.Mode))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Upstox defaults
	v.SetDefault("upstox.base_url", "https://api.upstox.com")
	v.SetDefault("upstox.timeout_sec", 10)
	v.SetDefault("upstox.retries", 2)

	// Telegram defaults
	v.SetDefault("telegram.messages_per_sec", 1.0)

	// Scanner defaults
	v.SetDefault("scanner.symbols", []string{"NIFTY", "BANKNIFTY", "SENSEX"})
	v.SetDefault("scanner.interval_sec", 60)
	v.SetDefault("scanner.concurrency", 4)
	v.SetDefault("scanner.min_score", 65)
	v.SetDefault("scanner.candle_source", "auto")
	v.SetDefault("scanner.lots", 1)
	v.SetDefault("scanner.target_atr", 2.0)
	v.SetDefault("scanner.stop_atr", 1.0)
	v.SetDefault("scanner.target_pct", 0.5)
	v.SetDefault("scanner.stop_pct", 0.25)
	v.SetDefault("scanner.option_chain", true)

	// Reversal defaults
	v.SetDefault("reversal.block_window_sec", 300)   // 5 minutes
	v.SetDefault("reversal.confirm_window_sec", 180) // 3 minutes
	v.SetDefault("reversal.state_file", filepath.Join(homeDir(), ".optionpulse", "engine.json"))

	// Monitor defaults
	v.SetDefault("monitor.check_interval_ms", 1000)
	v.SetDefault("monitor.progress_pct", 60.0)
	v.SetDefault("monitor.square_off", "15:20")

	// Feed defaults
	v.SetDefault("feed.mode", "upstox_poll")
	v.SetDefault("feed.poll_interval_sec", 2)
	v.SetDefault("feed.stale_after_sec", 30)

	// Paper defaults
	v.SetDefault("paper.enabled", true)
	v.SetDefault("paper.db_path", filepath.Join(homeDir(), ".optionpulse", "paper.db"))

	// News defaults
	v.SetDefault("news.enabled", true)
	v.SetDefault("news.feeds", []string{
		"https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms",
		"https://www.moneycontrol.com/rss/marketreports.xml",
		"https://www.livemint.com/rss/markets",
	})
	v.SetDefault("news.cache_ttl_sec", 600)
	v.SetDefault("news.headlines", 2)

	// API defaults
	v.SetDefault("api.enabled", true)
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 14)
}

// loadDotEnv loads ./.env into the process environment without overriding set variables.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
