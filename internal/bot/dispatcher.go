package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/chatrelay-dev/chatrelay/internal/llm/provider"
	"github.com/chatrelay-dev/chatrelay/internal/observability"
	"github.com/chatrelay-dev/chatrelay/pkg/funcs"
	metrics "github.com/chatrelay-dev/chatrelay/pkg/observability"
	"github.com/chatrelay-dev/chatrelay/pkg/session"
)

// maxInputCharsCap is the hard ceiling on inbound content length.
const maxInputCharsCap = 10000

// handoffPattern matches messages that ask for a human.
var handoffPattern = regexp.MustCompile(`(?i)^(human|person|help|stop)$`)

// Dispatcher routes decoded inbound messages through the session
// store, the provider, and the function resolver.
type Dispatcher struct {
	store    *session.Store
	registry *funcs.Registry
	resolver *funcs.Resolver
	provider provider.Provider
	cfg      Config
	logger   *slog.Logger

	decls []provider.FunctionDecl
}

// NewDispatcher wires a dispatcher. The registry should be frozen;
// its declarations are snapshotted here.
func NewDispatcher(store *session.Store, registry *funcs.Registry, prov provider.Provider, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFunctionRounds <= 0 {
		cfg.MaxFunctionRounds = DefaultConfig().MaxFunctionRounds
	}
	if cfg.MaxInputChars <= 0 || cfg.MaxInputChars > maxInputCharsCap {
		cfg.MaxInputChars = maxInputCharsCap
	}

	decls := make([]provider.FunctionDecl, 0, registry.Len())
	for _, fn := range registry.Declarations() {
		decls = append(decls, provider.FunctionDecl{
			Name:        fn.Name,
			Description: fn.Description,
			Parameters:  fn.Schema.MarshalJSONSchema(),
		})
	}

	return &Dispatcher{
		store:    store,
		registry: registry,
		resolver: funcs.NewResolver(registry, logger),
		provider: prov,
		cfg:      cfg,
		logger:   logger,
		decls:    decls,
	}
}

// Store exposes the session store for transports and sweepers.
func (d *Dispatcher) Store() *session.Store {
	return d.store
}

// HandleInbound processes one decoded inbound message and returns the
// outcome. The quota is checked before any provider contact; on
// generation failure the user turn stays recorded so a resend
// continues the conversation. The dispatcher never retries; idempotent
// resend is the transport's responsibility.
func (d *Dispatcher) HandleInbound(ctx context.Context, in Inbound) Outcome {
	ctx, span := observability.StartSpan(ctx, "bot.handle_inbound",
		attribute.String("kind", string(in.Kind)),
	)
	defer span.End()

	outcome := d.handle(ctx, in)
	metrics.RecordInbound(string(in.Kind), string(outcome.Kind))
	metrics.SetActiveSessions(d.store.Len())
	return outcome
}

func (d *Dispatcher) handle(ctx context.Context, in Inbound) Outcome {
	sess, err := d.store.GetOrCreate(in.Key)
	if err != nil {
		return Outcome{Kind: OutcomeInvalidKey, Err: err}
	}
	if sess.AwaitingHandoff() {
		d.logger.Debug("inbound_ignored_handoff", "key", in.Key)
		return Outcome{Kind: OutcomeIgnored}
	}

	content := strings.TrimSpace(in.Content)
	if runes := []rune(content); len(runes) > d.cfg.MaxInputChars {
		content = strings.TrimSpace(string(runes[:d.cfg.MaxInputChars]))
	}
	if content == "" {
		return Outcome{Kind: OutcomeIgnored}
	}

	allowed, err := d.store.CheckAndIncrementQuota(in.Key)
	if err != nil {
		return Outcome{Kind: OutcomeInvalidKey, Err: err}
	}
	if !allowed {
		metrics.RecordRateLimited()
		d.logger.Info("inbound_rate_limited", "key", in.Key)
		return Outcome{Kind: OutcomeRateLimited}
	}

	if (in.Kind == KindText || in.Kind == KindAudioTranscript) && handoffPattern.MatchString(content) {
		if err := d.store.MarkHandoff(in.Key); err != nil {
			return Outcome{Kind: OutcomeInvalidKey, Err: err}
		}
		d.logger.Info("inbound_handoff", "key", in.Key)
		return Outcome{Kind: OutcomeHandedOff}
	}

	if err := d.store.AppendTurn(in.Key, session.RoleUser, content); err != nil {
		return Outcome{Kind: OutcomeInvalidKey, Err: err}
	}

	history, err := d.store.History(in.Key)
	if err != nil {
		return Outcome{Kind: OutcomeInvalidKey, Err: err}
	}

	reply, outcome := d.generate(ctx, in.Key, d.buildContext(history))
	if outcome != nil {
		return *outcome
	}

	if err := d.store.AppendTurn(in.Key, session.RoleAssistant, reply); err != nil {
		return Outcome{Kind: OutcomeInvalidKey, Err: err}
	}
	d.logger.Info("inbound_replied", "key", in.Key, "reply_length", len(reply))
	return Outcome{Kind: OutcomeReplied, Reply: reply}
}

// buildContext maps retained turns onto provider messages, prepending
// the system instructions. Function-result turns are kept for operator
// inspection only; replaying them outside their call pair would be
// rejected by the upstream API.
func (d *Dispatcher) buildContext(history []session.Turn) []provider.Message {
	messages := make([]provider.Message, 0, len(history)+1)
	if d.cfg.Instructions != "" {
		messages = append(messages, provider.Message{Role: "system", Content: d.cfg.Instructions})
	}
	for _, turn := range history {
		switch turn.Role {
		case session.RoleUser:
			messages = append(messages, provider.Message{Role: "user", Content: turn.Content})
		case session.RoleAssistant:
			messages = append(messages, provider.Message{Role: "assistant", Content: turn.Content})
		}
	}
	return messages
}

// generate runs the provider loop. A nil outcome means reply holds the
// final assistant text; otherwise the returned outcome is terminal.
func (d *Dispatcher) generate(ctx context.Context, key string, messages []provider.Message) (string, *Outcome) {
	for round := 0; ; round++ {
		reply, err := d.createReply(ctx, messages)
		if err != nil {
			d.logger.Error("generation_failed", "key", key, "error", err.Error())
			return "", &Outcome{Kind: OutcomeGenerationFailed, Err: err}
		}

		if reply.FunctionCall == nil {
			return strings.TrimSpace(reply.Content), nil
		}

		if round+1 > d.cfg.MaxFunctionRounds {
			d.logger.Warn("function_rounds_exhausted", "key", key, "rounds", d.cfg.MaxFunctionRounds)
			return "", &Outcome{
				Kind: OutcomeTooManyFunctionCalls,
				Err:  fmt.Errorf("function call rounds exhausted after %d", d.cfg.MaxFunctionRounds),
			}
		}

		call := reply.FunctionCall
		result := d.invoke(ctx, call)

		messages = append(messages,
			provider.Message{Role: "assistant", FunctionCall: call},
			provider.Message{Role: "function", Name: call.Name, CallID: call.ID, Content: result},
		)
		if err := d.store.AppendTurn(key, session.RoleFunction, fmt.Sprintf("%s: %s", call.Name, result)); err != nil {
			return "", &Outcome{Kind: OutcomeInvalidKey, Err: err}
		}
	}
}

func (d *Dispatcher) createReply(ctx context.Context, messages []provider.Message) (*provider.Reply, error) {
	if d.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RequestTimeout)
		defer cancel()
	}
	ctx, span := observability.StartSpan(ctx, "bot.generate",
		attribute.String("provider", d.provider.Name()),
	)
	defer span.End()

	start := time.Now()
	reply, err := d.provider.CreateReply(ctx, provider.Request{
		Messages:    messages,
		Functions:   d.decls,
		Model:       d.cfg.Model,
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
	metrics.ObserveGeneration(d.provider.Name(), time.Since(start))
	return reply, err
}

// invoke resolves one function call. Resolver failures are reported
// back to the model as the function result so it can recover in the
// next round instead of aborting the conversation.
func (d *Dispatcher) invoke(ctx context.Context, call *provider.FunctionCall) string {
	ctx, span := observability.StartSpan(ctx, "bot.function_call",
		attribute.String("function", call.Name),
	)
	defer span.End()

	result, err := d.resolver.Resolve(ctx, call.Name, call.Arguments)
	if err == nil {
		metrics.RecordFunctionCall(call.Name, "ok")
		return result
	}

	var fe *funcs.FuncError
	if errors.As(err, &fe) {
		metrics.RecordFunctionCall(call.Name, string(fe.Kind))
		switch fe.Kind {
		case funcs.ErrNotFound:
			return fmt.Sprintf("Function '%s' not found.", call.Name)
		case funcs.ErrInvalidArguments:
			return fmt.Sprintf("Invalid arguments for function '%s': %v", call.Name, fe.Err)
		}
	} else {
		metrics.RecordFunctionCall(call.Name, "error")
	}
	return fmt.Sprintf("Error executing function '%s': %v", call.Name, err)
}
