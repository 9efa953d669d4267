package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()

	validConfig := `
telegram:
  token: "123:abc"
provider:
  api_key: test-key
  model: gpt-4
  max_tokens: 100
  temperature: 0.5
limits:
  max_requests: 10
  window: 5m
`

	validFile := filepath.Join(tmpDir, "valid.yaml")
	err := os.WriteFile(validFile, []byte(validConfig), 0600)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := LoadConfig(validFile)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Model != "gpt-4" {
		t.Errorf("expected model 'gpt-4', got %s", cfg.Provider.Model)
	}
	if cfg.Limits.MaxRequests != 10 {
		t.Errorf("expected max_requests 10, got %d", cfg.Limits.MaxRequests)
	}
	if cfg.Limits.Window.Std() != 5*time.Minute {
		t.Errorf("expected window 5m, got %v", cfg.Limits.Window)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Limits.HistoryLimit != 20 {
		t.Errorf("expected default history_limit 20, got %d", cfg.Limits.HistoryLimit)
	}
	if !cfg.Audio.TranscribeInput || cfg.Audio.Voice != "echo" {
		t.Errorf("expected default audio settings, got %+v", cfg.Audio)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

func TestLoadConfig_EnvFallback(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("OPENAI_API_KEY", "env-key")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("expected token from env, got %q", cfg.Telegram.Token)
	}
	if cfg.Provider.APIKey != "env-key" {
		t.Errorf("expected api key from env, got %q", cfg.Provider.APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}
}

func TestLoadConfig_NonexistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()

	invalidYAML := `
provider:
invalid yaml here: [[[
`

	invalidFile := filepath.Join(tmpDir, "invalid.yaml")
	err := os.WriteFile(invalidFile, []byte(invalidYAML), 0600)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	_, err = LoadConfig(invalidFile)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Telegram.Token = "" },
			wantErr: "telegram token",
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.Provider.APIKey = "" },
			wantErr: "api key",
		},
		{
			name:    "zero history limit",
			mutate:  func(c *Config) { c.Limits.HistoryLimit = 0 },
			wantErr: "history_limit",
		},
		{
			name:    "negative window",
			mutate:  func(c *Config) { c.Limits.Window = Duration(-time.Minute) },
			wantErr: "window",
		},
		{
			name:    "voice speed out of range",
			mutate:  func(c *Config) { c.Audio.VoiceSpeed = 5.0 },
			wantErr: "voice_speed",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Observability.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Observability.LogFormat = "xml" },
			wantErr: "log_format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Telegram.Token = "123:abc"
			cfg.Provider.APIKey = "key"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateForChat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Provider.APIKey = "key"
	// No telegram token needed for the REPL.
	if err := cfg.ValidateForChat(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Provider.APIKey = ""
	if err := cfg.ValidateForChat(); err == nil {
		t.Error("expected error for missing api key")
	}
}
