package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "1h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the application configuration
type Config struct {
	// Telegram transport
	Telegram TelegramConfig `yaml:"telegram"`

	// LLM provider
	Provider ProviderConfig `yaml:"provider"`

	// Bot behavior
	Bot BotConfig `yaml:"bot"`

	// Voice transcription and spoken replies
	Audio AudioConfig `yaml:"audio"`

	// Per-conversation limits
	Limits LimitsConfig `yaml:"limits"`

	// Observability endpoints and logging
	Observability ObservabilityConfig `yaml:"observability"`
}

// TelegramConfig holds the Telegram transport settings
type TelegramConfig struct {
	Token       string   `yaml:"token"`
	BaseURL     string   `yaml:"base_url"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

// ProviderConfig holds the reply-generation provider settings
type ProviderConfig struct {
	Name           string   `yaml:"name"` // openai
	APIKey         string   `yaml:"api_key"`
	BaseURL        string   `yaml:"base_url"`
	Model          string   `yaml:"model"`
	Temperature    float32  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// BotConfig holds the conversation behavior settings
type BotConfig struct {
	Instructions string `yaml:"instructions"`

	// Canned replies for outcomes without model text.
	RateLimitedMessage string `yaml:"rate_limited_message"`
	FailedMessage      string `yaml:"failed_message"`
	HandedOffMessage   string `yaml:"handed_off_message"`
	UnknownMessage     string `yaml:"unknown_message"`
}

// AudioConfig holds the voice-note settings. Transcription and speech
// ride on the provider's audio endpoints.
type AudioConfig struct {
	TranscribeInput bool    `yaml:"transcribe_input"`
	SpeakReplies    bool    `yaml:"speak_replies"`
	Voice           string  `yaml:"voice"`
	VoiceSpeed      float64 `yaml:"voice_speed"`
}

// LimitsConfig holds the per-conversation limits
type LimitsConfig struct {
	HistoryLimit      int      `yaml:"history_limit"`
	MaxRequests       int      `yaml:"max_requests"`
	Window            Duration `yaml:"window"`
	IdleTTL           Duration `yaml:"idle_ttl"`
	MaxInputChars     int      `yaml:"max_input_chars"`
	MaxFunctionRounds int      `yaml:"max_function_rounds"`
}

// ObservabilityConfig holds metrics, health, and logging settings
type ObservabilityConfig struct {
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // text, json
}

// DefaultConfig returns a configuration with all defaults applied
func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			BaseURL:     "https://api.telegram.org",
			PollTimeout: Duration(30 * time.Second),
		},
		Provider: ProviderConfig{
			Name:           "openai",
			Model:          "gpt-4o-mini",
			Temperature:    0.7,
			MaxTokens:      1000,
			RequestTimeout: Duration(2 * time.Minute),
		},
		Bot: BotConfig{
			Instructions:       "You are a helpful assistant answering customer questions.",
			RateLimitedMessage: "You have sent too many messages. Please wait a bit and try again.",
			FailedMessage:      "Sorry, I could not process that right now. Please try again.",
			HandedOffMessage:   "Got it, a person will take over this conversation shortly.",
			UnknownMessage:     "Sorry, I did not understand that. Could you rephrase?",
		},
		Audio: AudioConfig{
			TranscribeInput: true,
			SpeakReplies:    true,
			Voice:           "echo",
			VoiceSpeed:      1.0,
		},
		Limits: LimitsConfig{
			HistoryLimit:      20,
			MaxRequests:       30,
			Window:            Duration(time.Hour),
			IdleTTL:           Duration(30 * time.Minute),
			MaxInputChars:     1000,
			MaxFunctionRounds: 5,
		},
		Observability: ObservabilityConfig{
			Port:      9090,
			LogLevel:  "info",
			LogFormat: "text",
		},
	}
}

// LoadConfig loads configuration from a YAML file. Fields absent from
// the file keep their defaults; credentials fall back to the
// environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.Telegram.Token == "" {
		c.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if v := os.Getenv("CHATRELAY_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("CHATRELAY_LOG_LEVEL"); v != "" {
		c.Observability.LogLevel = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (telegram.token or TELEGRAM_BOT_TOKEN)")
	}
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider api key is required (provider.api_key or OPENAI_API_KEY)")
	}
	if c.Limits.HistoryLimit <= 0 {
		return fmt.Errorf("limits.history_limit must be positive")
	}
	if c.Limits.MaxRequests <= 0 {
		return fmt.Errorf("limits.max_requests must be positive")
	}
	if c.Limits.Window <= 0 {
		return fmt.Errorf("limits.window must be positive")
	}
	if c.Limits.IdleTTL <= 0 {
		return fmt.Errorf("limits.idle_ttl must be positive")
	}
	if c.Audio.SpeakReplies && (c.Audio.VoiceSpeed < 0.25 || c.Audio.VoiceSpeed > 4.0) {
		return fmt.Errorf("audio.voice_speed must be between 0.25 and 4.0")
	}
	if c.Observability.Port <= 0 || c.Observability.Port > 65535 {
		return fmt.Errorf("observability.port must be a valid port")
	}
	switch c.Observability.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("observability.log_format must be text or json")
	}
	return nil
}

// ValidateForChat relaxes the transport requirements for the local
// REPL, which needs only a provider.
func (c *Config) ValidateForChat() error {
	if c.Provider.Name == "" {
		return fmt.Errorf("provider name is required")
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("provider api key is required (provider.api_key or OPENAI_API_KEY)")
	}
	return nil
}
