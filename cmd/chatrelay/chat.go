package main

import (
	"errors"
	"fmt"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/chatrelay-dev/chatrelay/internal/bot"
	"github.com/chatrelay-dev/chatrelay/pkg/session"
)

// newChatCmd is a local REPL over the same dispatch path the Telegram
// transport uses, for trying the bot without a token.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.ValidateForChat(); err != nil {
				return err
			}
			logger := newLogger(cfg)

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

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "chatrelay local chat. Ctrl-C or Ctrl-D to quit, /reset to clear the session.")

			const key = "local"
			for {
				input, err := line.Prompt("you> ")
				if err != nil {
					if errors.Is(err, liner.ErrPromptAborted) {
						return nil
					}
					// io.EOF on Ctrl-D.
					return nil
				}
				if input == "" {
					continue
				}
				line.AppendHistory(input)

				if input == "/reset" {
					store.Reset(key)
					fmt.Fprintln(out, "session cleared")
					continue
				}

				outcome := dispatcher.HandleInbound(cmd.Context(), bot.Inbound{
					Key:     key,
					Content: input,
					Kind:    bot.KindText,
				})
				switch outcome.Kind {
				case bot.OutcomeReplied:
					fmt.Fprintf(out, "bot> %s\n", outcome.Reply)
				case bot.OutcomeRateLimited:
					fmt.Fprintln(out, "bot> (rate limited)")
				case bot.OutcomeHandedOff:
					fmt.Fprintln(out, "bot> (handed off to a human; /reset to start over)")
				case bot.OutcomeIgnored:
					// Awaiting handoff or empty input.
				default:
					fmt.Fprintf(out, "bot> (error: %v)\n", outcome.Err)
				}
			}
		},
	}
}
