package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// Synthesizer renders text as spoken audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioConfig configures the OpenAI audio endpoints.
type AudioConfig struct {
	APIKey         string
	BaseURL        string
	Voice          string
	Speed          float64
	RequestTimeout time.Duration
}

// openAIAudioClient is the subset of the go-openai client the audio
// service needs.
type openAIAudioClient interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIAudio implements Transcriber and Synthesizer on the OpenAI
// audio APIs (whisper-1 in, tts-1 out).
type OpenAIAudio struct {
	client openAIAudioClient
	voice  openai.SpeechVoice
	speed  float64
}

// NewOpenAIAudio creates the audio service.
func NewOpenAIAudio(cfg AudioConfig) (*OpenAIAudio, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("audio: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	return newOpenAIAudio(openai.NewClientWithConfig(clientCfg), cfg.Voice, cfg.Speed), nil
}

func newOpenAIAudio(client openAIAudioClient, voice string, speed float64) *OpenAIAudio {
	if voice == "" {
		voice = string(openai.VoiceEcho)
	}
	if speed <= 0 {
		speed = 1.0
	}
	return &OpenAIAudio{
		client: client,
		voice:  openai.SpeechVoice(voice),
		speed:  speed,
	}
}

// Transcribe sends the audio through the transcription endpoint and
// returns the recognized text. The filename carries the format hint.
func (a *OpenAIAudio) Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error) {
	resp, err := a.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: filename,
		Reader:   audio,
	})
	if err != nil {
		return "", classifyError(err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// Synthesize renders text as mp3 audio.
func (a *OpenAIAudio) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := a.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          a.voice,
		Speed:          a.speed,
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Close()
	return io.ReadAll(resp)
}
