// Package bot dispatches decoded inbound messages: it resolves the
// session, enforces the per-chat quota, drives the reply-generation
// provider through a bounded function-call loop, and records the
// resulting turns. Transports decide what each outcome means to the
// user.
package bot

import (
	"time"
)

// ContentKind tags what a decoded inbound message carries. Multi-part
// messages (e.g. a photo with a caption) arrive as multiple sequential
// inbounds, one kind each.
type ContentKind string

const (
	KindText             ContentKind = "text"
	KindAudioTranscript  ContentKind = "audio_transcript"
	KindImageDescription ContentKind = "image_description"
	KindDocument         ContentKind = "document"
)

// Inbound is one decoded inbound message.
type Inbound struct {
	// Key is the opaque conversation key (chat/user id).
	Key string
	// Content is the message text, transcription, or description.
	Content string
	// Kind tags the content.
	Kind ContentKind
}

// OutcomeKind classifies what the dispatcher did with an inbound
// message.
type OutcomeKind string

const (
	// OutcomeReplied means an assistant reply was generated and
	// recorded.
	OutcomeReplied OutcomeKind = "replied"
	// OutcomeRateLimited means the per-chat quota rejected the message
	// before any provider contact.
	OutcomeRateLimited OutcomeKind = "rate_limited"
	// OutcomeGenerationFailed means the provider call failed; the user
	// turn stays recorded so a resend continues the conversation.
	OutcomeGenerationFailed OutcomeKind = "generation_failed"
	// OutcomeTooManyFunctionCalls means the model kept requesting
	// function calls past the configured bound.
	OutcomeTooManyFunctionCalls OutcomeKind = "too_many_function_calls"
	// OutcomeHandedOff means the user asked for a human and the
	// session now suppresses automated replies.
	OutcomeHandedOff OutcomeKind = "handed_off"
	// OutcomeIgnored means the message produced no reply (empty
	// content, or the session is awaiting a human).
	OutcomeIgnored OutcomeKind = "ignored"
	// OutcomeInvalidKey means the conversation key was empty or
	// malformed.
	OutcomeInvalidKey OutcomeKind = "invalid_key"
)

// Outcome is the dispatcher's verdict on one inbound message.
type Outcome struct {
	Kind  OutcomeKind
	Reply string
	Err   error
}

// Config tunes the dispatcher.
type Config struct {
	// Instructions is the system prompt prepended to every context.
	Instructions string
	// MaxInputChars truncates inbound content; hard-capped at 10000.
	MaxInputChars int
	// MaxFunctionRounds bounds the function-call loop per inbound
	// message.
	MaxFunctionRounds int
	// Temperature and MaxTokens are passed through to the provider.
	Temperature float32
	MaxTokens   int
	// Model overrides the provider default model when set.
	Model string
	// RequestTimeout bounds one provider round trip.
	RequestTimeout time.Duration
}

// DefaultConfig returns the default dispatcher settings.
func DefaultConfig() Config {
	return Config{
		Instructions:      "You are a helpful customer support assistant.",
		MaxInputChars:     1000,
		MaxFunctionRounds: 5,
		RequestTimeout:    2 * time.Minute,
	}
}
