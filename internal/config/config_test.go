package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearSecretEnv() {
	for _, s := range secrets {
		os.Unsetenv(s.envVar)
	}
}

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	clearSecretEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Upstox defaults
	if cfg.Upstox.BaseURL != "https://api.upstox.com" {
		t.Errorf("Upstox.BaseURL: got %q", cfg.Upstox.BaseURL)
	}
	if cfg.Upstox.TimeoutSec != 10 {
		t.Errorf("Upstox.TimeoutSec: got %d, want 10", cfg.Upstox.TimeoutSec)
	}

	// Scanner defaults
	if cfg.Scanner.MinScore != 65 {
		t.Errorf("Scanner.MinScore: got %d, want 65", cfg.Scanner.MinScore)
	}
	if cfg.Scanner.IntervalSec != 60 {
		t.Errorf("Scanner.IntervalSec: got %d, want 60", cfg.Scanner.IntervalSec)
	}
	if len(cfg.Scanner.Symbols) != 3 || cfg.Scanner.Symbols[0] != "NIFTY" {
		t.Errorf("Scanner.Symbols: got %v", cfg.Scanner.Symbols)
	}
	if cfg.Scanner.TargetATR != 2.0 || cfg.Scanner.StopATR != 1.0 {
		t.Errorf("Scanner ATR multiples: got %v/%v, want 2/1", cfg.Scanner.TargetATR, cfg.Scanner.StopATR)
	}

	// Reversal defaults
	if cfg.Reversal.BlockWindow() != 5*time.Minute {
		t.Errorf("Reversal.BlockWindow: got %v, want 5m", cfg.Reversal.BlockWindow())
	}
	if cfg.Reversal.ConfirmWindow() != 3*time.Minute {
		t.Errorf("Reversal.ConfirmWindow: got %v, want 3m", cfg.Reversal.ConfirmWindow())
	}

	// Monitor defaults
	if cfg.Monitor.ProgressPct != 60 {
		t.Errorf("Monitor.ProgressPct: got %f, want 60", cfg.Monitor.ProgressPct)
	}
	if cfg.Monitor.CheckInterval() != time.Second {
		t.Errorf("Monitor.CheckInterval: got %v, want 1s", cfg.Monitor.CheckInterval())
	}
	h, m, err := cfg.Monitor.SquareOffClock()
	if err != nil || h != 15 || m != 20 {
		t.Errorf("Monitor.SquareOffClock: got %d:%d (%v), want 15:20", h, m, err)
	}

	// Feed defaults
	if cfg.Feed.Mode != "upstox_poll" {
		t.Errorf("Feed.Mode: got %q, want upstox_poll", cfg.Feed.Mode)
	}
	if cfg.Feed.StaleAfter() != 30*time.Second {
		t.Errorf("Feed.StaleAfter: got %v, want 30s", cfg.Feed.StaleAfter())
	}

	// API defaults
	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host: got %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "text")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "test_config.yaml")
	content := []byte(`
upstox:
  access_token: "upstox_token_1234567890"
telegram:
  bot_token: "123456:telegram-token"
  signal_chat_ids: [-1001, -1002]
  exit_chat_ids: [-1003]
scanner:
  symbols: ["NIFTY", "RELIANCE"]
  min_score: 75
reversal:
  block_window_sec: 600
monitor:
  square_off: "15:15"
api:
  port: 9090
logging:
  level: "debug"
  format: "json"
`)
	if err := os.WriteFile(cfgPath, content, 0644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	clearSecretEnv()

	cfg, err := LoadFromFile(cfgPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.Upstox.AccessToken != "upstox_token_1234567890" {
		t.Errorf("Upstox.AccessToken: got %q", cfg.Upstox.AccessToken)
	}
	if len(cfg.Telegram.SignalChatIDs) != 2 || cfg.Telegram.SignalChatIDs[1] != -1002 {
		t.Errorf("Telegram.SignalChatIDs: got %v", cfg.Telegram.SignalChatIDs)
	}
	if len(cfg.Telegram.ExitChatIDs) != 1 || cfg.Telegram.ExitChatIDs[0] != -1003 {
		t.Errorf("Telegram.ExitChatIDs: got %v", cfg.Telegram.ExitChatIDs)
	}
	if len(cfg.Scanner.Symbols) != 2 || cfg.Scanner.Symbols[1] != "RELIANCE" {
		t.Errorf("Scanner.Symbols: got %v", cfg.Scanner.Symbols)
	}
	if cfg.Scanner.MinScore != 75 {
		t.Errorf("Scanner.MinScore: got %d, want 75", cfg.Scanner.MinScore)
	}
	if cfg.Reversal.BlockWindow() != 10*time.Minute {
		t.Errorf("Reversal.BlockWindow: got %v, want 10m", cfg.Reversal.BlockWindow())
	}
	// untouched keys keep their defaults
	if cfg.Reversal.ConfirmWindowSec != 180 {
		t.Errorf("Reversal.ConfirmWindowSec: got %d, want 180", cfg.Reversal.ConfirmWindowSec)
	}
	if cfg.Monitor.SquareOff != "15:15" {
		t.Errorf("Monitor.SquareOff: got %q, want 15:15", cfg.Monitor.SquareOff)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format: got %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadFromFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("LoadFromFile() with nonexistent path should return error")
	}
}

// ── Validate ──

func TestValidateRejectsImpossibleSettings(t *testing.T) {
	clearSecretEnv()
	base, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero block window", func(c *Config) { c.Reversal.BlockWindowSec = 0 }},
		{"negative confirm window", func(c *Config) { c.Reversal.ConfirmWindowSec = -1 }},
		{"score above 100", func(c *Config) { c.Scanner.MinScore = 101 }},
		{"no symbols", func(c *Config) { c.Scanner.Symbols = nil }},
		{"zero concurrency", func(c *Config) { c.Scanner.Concurrency = 0 }},
		{"progress 100", func(c *Config) { c.Monitor.ProgressPct = 100 }},
		{"bad square-off", func(c *Config) { c.Monitor.SquareOff = "3pm" }},
		{"unknown feed mode", func(c *Config) { c.Feed.Mode = "carrier-pigeon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate() should fail")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error should wrap ErrInvalidConfig, got %v", err)
			}
		})
	}
}

// ── overrideFromEnv ──

func TestOverrideFromEnv(t *testing.T) {
	cfg := &Config{}

	t.Setenv("OPTIONPULSE_UPSTOX_ACCESS_TOKEN", "upstox-env-token")
	t.Setenv("OPTIONPULSE_TELEGRAM_BOT_TOKEN", "123:tg-env")
	t.Setenv("OPTIONPULSE_KITE_API_KEY", "kite-key")
	t.Setenv("OPTIONPULSE_KITE_ACCESS_TOKEN", "kite-token")

	overrideFromEnv(cfg)

	if cfg.Upstox.AccessToken != "upstox-env-token" {
		t.Errorf("Upstox.AccessToken: got %q", cfg.Upstox.AccessToken)
	}
	if cfg.Telegram.BotToken != "123:tg-env" {
		t.Errorf("Telegram.BotToken: got %q", cfg.Telegram.BotToken)
	}
	if cfg.Kite.APIKey != "kite-key" {
		t.Errorf("Kite.APIKey: got %q", cfg.Kite.APIKey)
	}
	if cfg.Kite.AccessToken != "kite-token" {
		t.Errorf("Kite.AccessToken: got %q", cfg.Kite.AccessToken)
	}
}

func TestOverrideFromEnvNoEnvSet(t *testing.T) {
	clearSecretEnv()

	cfg := &Config{
		Upstox: UpstoxConfig{AccessToken: "from-config"},
	}
	overrideFromEnv(cfg)

	// Should retain the original value when env is not set
	if cfg.Upstox.AccessToken != "from-config" {
		t.Errorf("AccessToken should stay as 'from-config' when env is unset, got %q", cfg.Upstox.AccessToken)
	}
}

// ── maskKey ──

func TestMaskKeyShort(t *testing.T) {
	// Keys with 8 or fewer characters should be fully masked
	tests := []struct {
		input string
		want  string
	}{
		{"", "***"},
		{"a", "***"},
		{"abcd", "***"},
		{"12345678", "***"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestMaskKeyLong(t *testing.T) {
	// Keys with more than 8 characters show first 3 + ... + last 3
	tests := []struct {
		input string
		want  string
	}{
		{"123456789", "123...789"},
		{"eyJabcdef1234567890xyz", "eyJ...xyz"},
		{"ABCDEFGHIJKLMNOP", "ABC...NOP"},
	}
	for _, tc := range tests {
		got := maskKey(tc.input)
		if got != tc.want {
			t.Errorf("maskKey(%q): got %q, want %q", tc.input, got, tc.want)
		}
	}
}

// ── CheckAPIKeys / checkKey ──

func TestCheckAPIKeysAllEmpty(t *testing.T) {
	clearSecretEnv()

	cfg := &Config{}
	statuses := CheckAPIKeys(cfg)

	if len(statuses) != len(secrets) {
		t.Fatalf("CheckAPIKeys: got %d statuses, want %d", len(statuses), len(secrets))
	}
	for _, s := range statuses {
		if s.IsSet {
			t.Errorf("Key %q should not be set", s.Name)
		}
		if s.Source != KeySourceNone {
			t.Errorf("Key %q source: got %q, want %q", s.Name, s.Source, KeySourceNone)
		}
	}
}

func TestCheckAPIKeysFromConfig(t *testing.T) {
	clearSecretEnv()

	cfg := &Config{
		Upstox: UpstoxConfig{AccessToken: "eyJ-test-very-long-token-value"},
	}
	statuses := CheckAPIKeys(cfg)

	found := false
	for _, s := range statuses {
		if s.Name == "Upstox Access Token" {
			found = true
			if !s.IsSet {
				t.Error("Upstox token should be set")
			}
			if s.Source != KeySourceConfig {
				t.Errorf("Source: got %q, want %q", s.Source, KeySourceConfig)
			}
			if s.Masked != "eyJ...lue" {
				t.Errorf("Masked: got %q, want %q", s.Masked, "eyJ...lue")
			}
		}
	}
	if !found {
		t.Error("Upstox Access Token status not found")
	}
}

func TestCheckAPIKeysFromEnv(t *testing.T) {
	t.Setenv("OPTIONPULSE_TELEGRAM_BOT_TOKEN", "123456:env-token-for-testing")

	cfg := &Config{
		Telegram: TelegramConfig{BotToken: "123456:env-token-for-testing"},
	}
	statuses := CheckAPIKeys(cfg)

	for _, s := range statuses {
		if s.Name == "Telegram Bot Token" {
			if s.Source != KeySourceEnv {
				t.Errorf("Source: got %q, want %q", s.Source, KeySourceEnv)
			}
		}
	}
}

func TestCheckKeySourceDetection(t *testing.T) {
	// No env, no value
	os.Unsetenv("TEST_VAR")
	s := checkKey("Test", "", "TEST_VAR")
	if s.Source != KeySourceNone {
		t.Errorf("empty value: got source %q, want %q", s.Source, KeySourceNone)
	}
	if s.IsSet {
		t.Error("empty value should not be set")
	}

	// Value from config (no env)
	s = checkKey("Test", "config-value-long-enough", "TEST_VAR")
	if s.Source != KeySourceConfig {
		t.Errorf("config value: got source %q, want %q", s.Source, KeySourceConfig)
	}
	if !s.IsSet {
		t.Error("config value should be set")
	}

	// Value from env
	t.Setenv("TEST_VAR", "env-value-long-enough")
	s = checkKey("Test", "env-value-long-enough", "TEST_VAR")
	if s.Source != KeySourceEnv {
		t.Errorf("env value: got source %q, want %q", s.Source, KeySourceEnv)
	}
}

// ── Redacted ──

func TestRedactedMasksSetSecrets(t *testing.T) {
	cfg := Config{
		Upstox:   UpstoxConfig{BaseURL: "https://api.upstox.com", AccessToken: "eyJ-secret"},
		Telegram: TelegramConfig{BotToken: "123:abc", SignalChatIDs: []int64{-100}},
	}
	r := cfg.Redacted()

	if r.Upstox.AccessToken != "***" || r.Telegram.BotToken != "***" {
		t.Errorf("secrets not masked: %q %q", r.Upstox.AccessToken, r.Telegram.BotToken)
	}
	if r.Kite.AccessToken != "" || r.Upstox.FeedURL != "" {
		t.Error("unset secrets should stay empty")
	}
	if r.Upstox.BaseURL != "https://api.upstox.com" || len(r.Telegram.SignalChatIDs) != 1 {
		t.Error("non-secret fields should be kept")
	}
	if cfg.Upstox.AccessToken != "eyJ-secret" {
		t.Error("Redacted must not modify the receiver")
	}
}

func TestOverrideFromEnvKeepsUnsetFields(t *testing.T) {
	clearSecretEnv()
	t.Setenv("OPTIONPULSE_KITE_API_KEY", "kite-key-from-env")

	cfg := &Config{Kite: KiteConfig{APIKey: "from-file", AccessToken: "kept"}}
	overrideFromEnv(cfg)

	if cfg.Kite.APIKey != "kite-key-from-env" {
		t.Errorf("Kite.APIKey: got %q", cfg.Kite.APIKey)
	}
	if cfg.Kite.AccessToken != "kept" {
		t.Errorf("Kite.AccessToken: got %q", cfg.Kite.AccessToken)
	}
}

// ── homeDir ──

func TestHomeDirReturnsNonEmpty(t *testing.T) {
	h := homeDir()
	if h == "" {
		t.Error("homeDir() should not return empty string")
	}
}
