package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chatrelay-dev/chatrelay/internal/llm/provider"
	"github.com/chatrelay-dev/chatrelay/pkg/config"
	"github.com/chatrelay-dev/chatrelay/pkg/funcs"
	"github.com/chatrelay-dev/chatrelay/pkg/funcs/builtin"
)

func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "Message relay bot between chat transports and an LLM",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().String("config", "", "Config file path (optional).")
	cmd.PersistentFlags().String("log-level", "", "Logging level: debug|info|warn|error.")
	cmd.PersistentFlags().String("log-format", "", "Logging format: text|json.")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newFunctionsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// loadConfig reads the config file named by --config, applying flag
// overrides for logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Observability.LogFormat = v
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Observability.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// newProvider builds the configured reply provider wrapped with the
// outbound rate limiter and circuit breaker.
func newProvider(cfg *config.Config) (provider.Provider, error) {
	inner, err := provider.New(cfg.Provider.Name, provider.Config{
		APIKey:         cfg.Provider.APIKey,
		BaseURL:        cfg.Provider.BaseURL,
		Model:          cfg.Provider.Model,
		RequestTimeout: cfg.Provider.RequestTimeout.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", cfg.Provider.Name, err)
	}
	return provider.NewResilientProvider(inner, provider.DefaultResilienceConfig()), nil
}

// newRegistry builds the frozen function registry with the built-in
// handlers installed.
func newRegistry() (*funcs.Registry, error) {
	reg := funcs.NewRegistry()
	if err := builtin.Register(reg, time.Now); err != nil {
		return nil, err
	}
	reg.Freeze()
	return reg, nil
}
