// ABOUTME: Configuration loading and parsing for sms-gateway
// ABOUTME: YAML with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete sms-gateway configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Twilio  TwilioConfig  `yaml:"twilio"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Chat    ChatConfig    `yaml:"chat"`
	Limits  LimitsConfig  `yaml:"limits"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`

	// PublicURL is the externally visible webhook URL, used for signature
	// validation behind proxies, e.g. https://sms.example.com/webhook/sms
	PublicURL string `yaml:"public_url"`
}

// StorageConfig selects and configures the conversation store.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	Path   string `yaml:"path"`
}

// TwilioConfig holds the messaging provider credentials.
type TwilioConfig struct {
	AccountSID        string `yaml:"account_sid"`
	AuthToken         string `yaml:"auth_token"`
	FromNumber        string `yaml:"from_number"`
	BaseURL           string `yaml:"base_url"`
	ValidateSignature bool   `yaml:"validate_signature"`
}

// OpenAIConfig holds the chat backend configuration.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	BaseURL    string `yaml:"base_url"`
	MaxRetries int    `yaml:"max_retries"`

	Timeout    time.Duration `yaml:"-"`
	TimeoutRaw string        `yaml:"timeout"`
}

// ChatConfig tunes conversation behavior.
type ChatConfig struct {
	MaxHistoryTurns int    `yaml:"max_history_turns"`
	SystemPrompt    string `yaml:"system_prompt"`
}

// LimitsConfig holds quota and segmentation limits.
type LimitsConfig struct {
	DailyMessages    int `yaml:"daily_messages"`
	MaxSegmentLength int `yaml:"max_segment_length"`
	DedupeMaxEntries int `yaml:"dedupe_max_entries"`

	DedupeTTL    time.Duration `yaml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl"`
}

// AuthConfig holds admin API authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// envVarPattern matches ${VAR} references.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads config from path, expanding environment variables and
// applying defaults and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with the environment value. Unset
// variables expand to the empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func (c *Config) parseDurations() error {
	var err error
	if c.OpenAI.TimeoutRaw != "" {
		if c.OpenAI.Timeout, err = time.ParseDuration(c.OpenAI.TimeoutRaw); err != nil {
			return fmt.Errorf("parsing openai.timeout: %w", err)
		}
	}
	if c.Limits.DedupeTTLRaw != "" {
		if c.Limits.DedupeTTL, err = time.ParseDuration(c.Limits.DedupeTTLRaw); err != nil {
			return fmt.Errorf("parsing limits.dedupe_ttl: %w", err)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "data/conversations.db"
	}
	if c.OpenAI.Timeout <= 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.OpenAI.MaxRetries < 0 {
		c.OpenAI.MaxRetries = 0
	}
	if c.Chat.MaxHistoryTurns <= 0 {
		c.Chat.MaxHistoryTurns = 40
	}
	if c.Limits.DailyMessages == 0 {
		c.Limits.DailyMessages = 10
	}
	if c.Limits.MaxSegmentLength <= 0 {
		c.Limits.MaxSegmentLength = 1600
	}
	if c.Limits.DedupeTTL <= 0 {
		c.Limits.DedupeTTL = 10 * time.Minute
	}
	if c.Limits.DedupeMaxEntries <= 0 {
		c.Limits.DedupeMaxEntries = 4096
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks for configuration this process cannot run without.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite or memory, got %q", c.Storage.Driver)
	}
	if c.Twilio.AccountSID == "" {
		return fmt.Errorf("twilio.account_sid is required")
	}
	if c.Twilio.AuthToken == "" {
		return fmt.Errorf("twilio.auth_token is required")
	}
	if c.Twilio.FromNumber == "" {
		return fmt.Errorf("twilio.from_number is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Twilio.ValidateSignature && c.Server.PublicURL == "" {
		return fmt.Errorf("server.public_url is required when twilio.validate_signature is enabled")
	}
	return nil
}
