package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "eyJ...abc"
}

// secret binds a credential field to the environment variable that overrides it.
type secret struct {
	name   string
	envVar string
	field  func(*Config) *string
}

var secrets = []secret{
	{"Upstox Access Token", "OPTIONPULSE_UPSTOX_ACCESS_TOKEN", func(c *Config) *string { return &c.Upstox.AccessToken }},
	{"Upstox Feed URL", "OPTIONPULSE_UPSTOX_FEED_URL", func(c *Config) *string { return &c.Upstox.FeedURL }},
	{"Telegram Bot Token", "OPTIONPULSE_TELEGRAM_BOT_TOKEN", func(c *Config) *string { return &c.Telegram.BotToken }},
	{"Kite API Key", "OPTIONPULSE_KITE_API_KEY", func(c *Config) *string { return &c.Kite.APIKey }},
	{"Kite Access Token", "OPTIONPULSE_KITE_ACCESS_TOKEN", func(c *Config) *string { return &c.Kite.AccessToken }},
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	for _, s := range secrets {
		if v := os.Getenv(s.envVar); v != "" {
			*s.field(cfg) = v
		}
	}
}

// CheckAPIKeys returns the status of all credentials OptionPulse can use.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	out := make([]KeyStatus, 0, len(secrets))
	for _, s := range secrets {
		out = append(out, checkKey(s.name, *s.field(cfg), s.envVar))
	}
	return out
}

// Redacted returns a copy of cfg with every credential replaced by "***".
// Unset credentials stay empty.
func (c Config) Redacted() Config {
	for _, s := range secrets {
		if p := s.field(&c); *p != "" {
			*p = "***"
		}
	}
	return c
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string) KeyStatus {
	if value == "" {
		return KeyStatus{Name: name, Source: KeySourceNone}
	}
	source := KeySourceConfig
	if os.Getenv(envVar) != "" {
		source = KeySourceEnv
	}
	return KeyStatus{Name: name, Source: source, IsSet: true, Masked: maskKey(value)}
}

// maskKey shows only the first and last 3 characters of keys longer than 8.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
