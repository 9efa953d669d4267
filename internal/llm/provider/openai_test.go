package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: "assistant", Content: content}},
		},
	}
}

func TestCreateReplyText(t *testing.T) {
	client := &fakeChatClient{resp: textResponse("Hi there!")}
	p := NewOpenAIProviderWithClient(client, "gpt-4o-mini")

	reply, err := p.CreateReply(context.Background(), Request{
		Messages: []Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "Hello"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", reply.Content)
	assert.Nil(t, reply.FunctionCall)

	assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	require.Len(t, client.lastReq.Messages, 2)
	assert.Equal(t, "system", client.lastReq.Messages[0].Role)
}

func TestCreateReplyFunctionCall(t *testing.T) {
	client := &fakeChatClient{
		resp: openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{{
						ID:   "call_1",
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      "getBusinessHours",
							Arguments: `{}`,
						},
					}},
				},
			}},
		},
	}
	p := NewOpenAIProviderWithClient(client, "")

	reply, err := p.CreateReply(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "when are you open?"}},
		Functions: []FunctionDecl{{
			Name:       "getBusinessHours",
			Parameters: json.RawMessage(`{"type":"object","properties":{}}`),
		}},
	})
	require.NoError(t, err)
	require.NotNil(t, reply.FunctionCall)
	assert.Equal(t, "call_1", reply.FunctionCall.ID)
	assert.Equal(t, "getBusinessHours", reply.FunctionCall.Name)

	require.Len(t, client.lastReq.Tools, 1)
	assert.Equal(t, "getBusinessHours", client.lastReq.Tools[0].Function.Name)
}

func TestToChatMessagesFunctionRound(t *testing.T) {
	call := &FunctionCall{ID: "call_7", Name: "getPlanPrices", Arguments: json.RawMessage(`{}`)}
	msgs := toChatMessages([]Message{
		{Role: "user", Content: "prices?"},
		{Role: "assistant", FunctionCall: call},
		{Role: "function", Name: "getPlanPrices", CallID: "call_7", Content: "Basic, Pro, Enterprise"},
	})

	require.Len(t, msgs, 3)

	assistant := msgs[1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_7", assistant.ToolCalls[0].ID)
	assert.Equal(t, "getPlanPrices", assistant.ToolCalls[0].Function.Name)

	result := msgs[2]
	assert.Equal(t, openai.ChatMessageRoleTool, result.Role)
	assert.Equal(t, "call_7", result.ToolCallID)
	assert.Equal(t, "Basic, Pro, Enterprise", result.Content)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "too many requests",
			err:  &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"},
			want: ErrRateLimited,
		},
		{
			name: "bad request",
			err:  &openai.APIError{HTTPStatusCode: http.StatusBadRequest, Message: "bad schema"},
			want: ErrInvalidRequest,
		},
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeChatClient{err: tt.err}
			p := NewOpenAIProviderWithClient(client, "")
			_, err := p.CreateReply(context.Background(), Request{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFactoryRegistry(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	p, err := New("openai", Config{})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	_, err = New("nosuch", Config{})
	assert.Error(t, err)
}
