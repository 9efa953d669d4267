package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudioClient struct {
	transcription string
	transcribeErr error
	speech        []byte
	speechErr     error

	gotFile   string
	gotAudio  []byte
	speechReq openai.CreateSpeechRequest
}

func (f *fakeAudioClient) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.gotFile = req.FilePath
	if req.Reader != nil {
		f.gotAudio, _ = io.ReadAll(req.Reader)
	}
	if f.transcribeErr != nil {
		return openai.AudioResponse{}, f.transcribeErr
	}
	return openai.AudioResponse{Text: f.transcription}, nil
}

func (f *fakeAudioClient) CreateSpeech(_ context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error) {
	f.speechReq = req
	if f.speechErr != nil {
		return openai.RawResponse{}, f.speechErr
	}
	return openai.RawResponse{ReadCloser: io.NopCloser(bytes.NewReader(f.speech))}, nil
}

func TestTranscribe(t *testing.T) {
	client := &fakeAudioClient{transcription: "  When do you open?\n"}
	audio := newOpenAIAudio(client, "", 0)

	text, err := audio.Transcribe(context.Background(), "voice.ogg", bytes.NewReader([]byte("oggdata")))
	require.NoError(t, err)
	assert.Equal(t, "When do you open?", text)
	assert.Equal(t, "voice.ogg", client.gotFile)
	assert.Equal(t, []byte("oggdata"), client.gotAudio)
}

func TestTranscribeClassifiesRateLimit(t *testing.T) {
	client := &fakeAudioClient{
		transcribeErr: &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
	}
	audio := newOpenAIAudio(client, "", 0)

	_, err := audio.Transcribe(context.Background(), "voice.ogg", bytes.NewReader(nil))
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestSynthesizeDefaults(t *testing.T) {
	client := &fakeAudioClient{speech: []byte("mp3data")}
	audio := newOpenAIAudio(client, "", 0)

	out, err := audio.Synthesize(context.Background(), "We open at nine.")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3data"), out)
	assert.Equal(t, openai.TTSModel1, client.speechReq.Model)
	assert.Equal(t, openai.VoiceEcho, client.speechReq.Voice)
	assert.Equal(t, openai.SpeechResponseFormatMp3, client.speechReq.ResponseFormat)
	assert.Equal(t, 1.0, client.speechReq.Speed)
	assert.Equal(t, "We open at nine.", client.speechReq.Input)
}

func TestSynthesizeVoiceOverride(t *testing.T) {
	client := &fakeAudioClient{speech: []byte("x")}
	audio := newOpenAIAudio(client, "nova", 1.5)

	_, err := audio.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, openai.SpeechVoice("nova"), client.speechReq.Voice)
	assert.Equal(t, 1.5, client.speechReq.Speed)
}
