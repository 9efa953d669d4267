package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/chatrelay-dev/chatrelay/internal/bot"
	"github.com/chatrelay-dev/chatrelay/internal/llm/provider"
	"github.com/chatrelay-dev/chatrelay/internal/observability"
	"github.com/chatrelay-dev/chatrelay/internal/transport/telegram"
	metrics "github.com/chatrelay-dev/chatrelay/pkg/observability"
	"github.com/chatrelay-dev/chatrelay/pkg/session"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram relay bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			if err := observability.Init(observability.ConfigFromEnv()); err != nil {
				logger.Warn("tracing_init_failed", "error", err.Error())
			}

			metrics.InitMetrics()
			checker := metrics.NewHealthChecker()
			checker.RegisterCheck(metrics.PingCheck())

			prov, err := newProvider(cfg)
			if err != nil {
				return err
			}
			reg, err := newRegistry()
			if err != nil {
				return err
			}

			store := session.New(session.Config{
				HistoryLimit: cfg.Limits.HistoryLimit,
				MaxRequests:  cfg.Limits.MaxRequests,
				Window:       cfg.Limits.Window.Std(),
				IdleTTL:      cfg.Limits.IdleTTL.Std(),
			})

			dispatcher := bot.NewDispatcher(store, reg, prov, bot.Config{
				Instructions:      cfg.Bot.Instructions,
				MaxInputChars:     cfg.Limits.MaxInputChars,
				MaxFunctionRounds: cfg.Limits.MaxFunctionRounds,
				Temperature:       cfg.Provider.Temperature,
				MaxTokens:         cfg.Provider.MaxTokens,
				Model:             cfg.Provider.Model,
				RequestTimeout:    cfg.Provider.RequestTimeout.Std(),
			}, logger)

			pollerCfg := telegram.PollerConfig{
				PollTimeout: cfg.Telegram.PollTimeout.Std(),
				Messages: telegram.Messages{
					RateLimited: cfg.Bot.RateLimitedMessage,
					Failed:      cfg.Bot.FailedMessage,
					HandedOff:   cfg.Bot.HandedOffMessage,
					Unknown:     cfg.Bot.UnknownMessage,
				},
			}
			if cfg.Audio.TranscribeInput || cfg.Audio.SpeakReplies {
				audio, err := provider.NewOpenAIAudio(provider.AudioConfig{
					APIKey:         cfg.Provider.APIKey,
					BaseURL:        cfg.Provider.BaseURL,
					Voice:          cfg.Audio.Voice,
					Speed:          cfg.Audio.VoiceSpeed,
					RequestTimeout: cfg.Provider.RequestTimeout.Std(),
				})
				if err != nil {
					return err
				}
				if cfg.Audio.TranscribeInput {
					pollerCfg.Transcriber = audio
				}
				if cfg.Audio.SpeakReplies {
					pollerCfg.Speech = audio
				}
			}

			api := telegram.NewAPI(nil, cfg.Telegram.BaseURL, cfg.Telegram.Token)
			poller := telegram.NewPoller(api, dispatcher, pollerCfg, logger)

			obsServer := metrics.NewServer(cfg.Observability.Port, checker)

			// Periodic idle-session sweep; creation-time eviction
			// covers quiet periods but a busy bot needs the timer.
			sweeper := cron.New()
			if _, err := sweeper.AddFunc("@every 5m", func() {
				evicted := store.EvictIdle(time.Now())
				if evicted > 0 {
					metrics.RecordEvictions(evicted)
					metrics.SetActiveSessions(store.Len())
					logger.Info("sessions_evicted", "count", evicted)
				}
			}); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("observability_listen", "port", cfg.Observability.Port)
				if err := obsServer.Start(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return poller.Run(ctx)
			})
			g.Go(func() error {
				sweeper.Start()
				<-ctx.Done()
				sweepCtx := sweeper.Stop()
				<-sweepCtx.Done()
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := obsServer.Shutdown(shutdownCtx); err != nil {
					logger.Warn("observability_shutdown_error", "error", err.Error())
				}
				_ = observability.Shutdown(shutdownCtx)
				return nil
			})

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			logger.Info("chatrelay_stopped")
			return err
		},
	}
}
