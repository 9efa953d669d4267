package telegram

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chatrelay-dev/chatrelay/internal/bot"
	"github.com/chatrelay-dev/chatrelay/internal/llm/provider"
	metrics "github.com/chatrelay-dev/chatrelay/pkg/observability"
)

// Messages are the canned replies for outcomes that carry no model
// text.
type Messages struct {
	RateLimited string
	Failed      string
	HandedOff   string
	Unknown     string
}

// DefaultMessages returns the stock reply templates.
func DefaultMessages() Messages {
	return Messages{
		RateLimited: "You have sent too many messages. Please wait a bit and try again.",
		Failed:      "Sorry, I could not process that right now. Please try again.",
		HandedOff:   "Got it, a person will take over this conversation shortly.",
		Unknown:     "Sorry, I did not understand that. Could you rephrase?",
	}
}

// PollerConfig tunes the long-poll loop. Transcriber and Speech are
// optional; nil leaves voice notes untranscribed and replies as text.
type PollerConfig struct {
	PollTimeout time.Duration
	QueueSize   int
	Messages    Messages
	Transcriber provider.Transcriber
	Speech      provider.Synthesizer
}

// DefaultPollerConfig returns the stock poller settings.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollTimeout: 30 * time.Second,
		QueueSize:   16,
		Messages:    DefaultMessages(),
	}
}

// Poller long-polls the Telegram API, decodes updates into inbound
// messages, and serializes dispatch per chat so replies keep order.
type Poller struct {
	api        *API
	dispatcher *bot.Dispatcher
	cfg        PollerConfig
	logger     *slog.Logger

	mu      sync.Mutex
	workers map[int64]chan Message
	wg      sync.WaitGroup
}

// NewPoller wires a poller over an API client and a dispatcher.
func NewPoller(api *API, dispatcher *bot.Dispatcher, cfg PollerConfig, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollerConfig().PollTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultPollerConfig().QueueSize
	}
	defaults := DefaultMessages()
	if cfg.Messages.RateLimited == "" {
		cfg.Messages.RateLimited = defaults.RateLimited
	}
	if cfg.Messages.Failed == "" {
		cfg.Messages.Failed = defaults.Failed
	}
	if cfg.Messages.HandedOff == "" {
		cfg.Messages.HandedOff = defaults.HandedOff
	}
	if cfg.Messages.Unknown == "" {
		cfg.Messages.Unknown = defaults.Unknown
	}
	return &Poller{
		api:        api,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		workers:    make(map[int64]chan Message),
	}
}

// Run polls until ctx is canceled. It verifies the token with getMe
// before entering the loop.
func (p *Poller) Run(ctx context.Context) error {
	me, err := p.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	p.logger.Info("telegram_start", "bot_id", me.ID, "bot_username", me.Username)

	var offset int64
	for {
		if ctx.Err() != nil {
			break
		}
		updates, next, err := p.api.GetUpdates(ctx, offset, p.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if !isPollTimeout(err) {
				p.logger.Warn("telegram_poll_error", "error", err.Error())
				time.Sleep(2 * time.Second)
			}
			continue
		}
		offset = next

		for _, u := range updates {
			if u.Message == nil || u.Message.Chat == nil {
				continue
			}
			if u.Message.From != nil && u.Message.From.IsBot {
				continue
			}
			p.enqueue(*u.Message)
		}
	}

	p.mu.Lock()
	for _, jobs := range p.workers {
		close(jobs)
	}
	p.workers = nil
	p.mu.Unlock()
	p.wg.Wait()
	return ctx.Err()
}

// enqueue hands a message to the chat's worker, starting one on first
// contact. A full queue drops the message; losing a message under
// backlog beats blocking the poll loop.
func (p *Poller) enqueue(msg Message) {
	chatID := msg.Chat.ID

	p.mu.Lock()
	if p.workers == nil {
		p.mu.Unlock()
		return
	}
	jobs, ok := p.workers[chatID]
	if !ok {
		jobs = make(chan Message, p.cfg.QueueSize)
		p.workers[chatID] = jobs
		p.wg.Add(1)
		go p.chatWorker(jobs)
	}
	p.mu.Unlock()

	select {
	case jobs <- msg:
	default:
		p.logger.Warn("telegram_queue_full", "chat_id", chatID)
	}
}

func (p *Poller) chatWorker(jobs <-chan Message) {
	defer p.wg.Done()
	for msg := range jobs {
		p.handleMessage(context.Background(), msg)
	}
}

// handleMessage decodes one Telegram message into inbound turns and
// delivers the outcome replies. A photo with a caption becomes an
// image-description turn followed by a text turn, so the caption is
// answered in the context of the image.
func (p *Poller) handleMessage(ctx context.Context, msg Message) {
	chatID := msg.Chat.ID
	key := strconv.FormatInt(chatID, 10)
	asVoice := msg.Voice != nil && p.cfg.Speech != nil

	for _, in := range p.decode(ctx, key, msg) {
		stop := p.startTyping(ctx, chatID)
		outcome := p.dispatcher.HandleInbound(ctx, in)
		stop()
		p.deliver(ctx, chatID, outcome, asVoice)
	}
}

// decode maps a message onto inbound turns, transcribing voice notes
// when a transcriber is wired.
func (p *Poller) decode(ctx context.Context, key string, msg Message) []bot.Inbound {
	if msg.Voice != nil && p.cfg.Transcriber != nil {
		text, err := p.transcribeVoice(ctx, msg.Voice)
		if err != nil {
			p.logger.Error("telegram_transcribe_failed", "file_id", msg.Voice.FileID, "error", err.Error())
		} else if text != "" {
			return []bot.Inbound{{Key: key, Content: text, Kind: bot.KindAudioTranscript}}
		}
	}
	return decodeInbound(key, msg)
}

func (p *Poller) transcribeVoice(ctx context.Context, v *Voice) (string, error) {
	file, err := p.api.GetFile(ctx, v.FileID)
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	data, err := p.api.DownloadFile(ctx, file.FilePath)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	name := path.Base(file.FilePath)
	if name == "" || name == "." || name == "/" {
		name = "voice.ogg"
	}
	return p.cfg.Transcriber.Transcribe(ctx, name, bytes.NewReader(data))
}

// decodeInbound maps a Telegram message onto inbound turns.
func decodeInbound(key string, msg Message) []bot.Inbound {
	var inbounds []bot.Inbound

	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		inbounds = append(inbounds, bot.Inbound{
			Key:     key,
			Content: fmt.Sprintf("The user sent a photo (%dx%d).", largest.Width, largest.Height),
			Kind:    bot.KindImageDescription,
		})
		if caption := strings.TrimSpace(msg.Caption); caption != "" {
			inbounds = append(inbounds, bot.Inbound{Key: key, Content: caption, Kind: bot.KindText})
		}
		return inbounds
	}

	if msg.Voice != nil {
		// Fallback when transcription is off or failed; tell the model
		// what happened so it can ask for text.
		return []bot.Inbound{{
			Key:     key,
			Content: fmt.Sprintf("The user sent a voice message (%ds) that could not be transcribed.", msg.Voice.Duration),
			Kind:    bot.KindAudioTranscript,
		}}
	}

	if msg.Document != nil {
		name := msg.Document.FileName
		if name == "" {
			name = "unnamed file"
		}
		content := fmt.Sprintf("The user sent a document: %s.", name)
		if caption := strings.TrimSpace(msg.Caption); caption != "" {
			content += " Caption: " + caption
		}
		return []bot.Inbound{{Key: key, Content: content, Kind: bot.KindDocument}}
	}

	if text := strings.TrimSpace(msg.Text); text != "" {
		return []bot.Inbound{{Key: key, Content: text, Kind: bot.KindText}}
	}
	return nil
}

// deliver sends the user-facing reply for an outcome. Ignored and
// invalid-key outcomes stay silent. A model reply to a voice note goes
// out as synthesized speech when asVoice is set, falling back to text
// if synthesis fails.
func (p *Poller) deliver(ctx context.Context, chatID int64, outcome bot.Outcome, asVoice bool) {
	var text string
	switch outcome.Kind {
	case bot.OutcomeReplied:
		text = outcome.Reply
		if strings.TrimSpace(text) == "" {
			text = p.cfg.Messages.Unknown
		}
	case bot.OutcomeRateLimited:
		text = p.cfg.Messages.RateLimited
	case bot.OutcomeHandedOff:
		text = p.cfg.Messages.HandedOff
	case bot.OutcomeGenerationFailed, bot.OutcomeTooManyFunctionCalls:
		text = p.cfg.Messages.Failed
	default:
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	if asVoice && outcome.Kind == bot.OutcomeReplied {
		audio, err := p.cfg.Speech.Synthesize(ctx, text)
		if err != nil {
			p.logger.Error("telegram_speech_failed", "chat_id", chatID, "error", err.Error())
		} else if err := p.api.SendVoice(ctx, chatID, audio); err != nil {
			metrics.RecordOutboundSend("telegram", "error")
			p.logger.Error("telegram_send_voice_failed", "chat_id", chatID, "error", err.Error())
			return
		} else {
			metrics.RecordOutboundSend("telegram", "ok")
			return
		}
	}

	if err := p.api.SendMessageChunked(ctx, chatID, text); err != nil {
		metrics.RecordOutboundSend("telegram", "error")
		p.logger.Error("telegram_send_failed", "chat_id", chatID, "error", err.Error())
		return
	}
	metrics.RecordOutboundSend("telegram", "ok")
}

// startTyping shows the typing indicator and refreshes it until the
// returned stop function is called. Telegram clears the indicator
// after about five seconds.
func (p *Poller) startTyping(ctx context.Context, chatID int64) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		_ = p.api.SendChatAction(ctx, chatID, "typing")
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = p.api.SendChatAction(ctx, chatID, "typing")
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
