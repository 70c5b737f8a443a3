package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeAgainstFakeAPI(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req goopenai.ChatCompletionRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, DefaultModel, req.Model)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, goopenai.ChatMessageRoleSystem, req.Messages[0].Role)
			assert.Equal(t, "be brief", req.Messages[0].Content)
			assert.Equal(t, goopenai.ChatMessageRoleUser, req.Messages[1].Role)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-3.5-turbo-16k",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Small businesses."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13}
		}`))
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1/"})
	require.NoError(t, err)

	out, err := s.Summarize(context.Background(), "be brief", "Here is the web scraped data:\n")
	require.NoError(t, err)
	assert.Equal(t, "Small businesses.", out)
	assert.Equal(t, DefaultModel, s.Model())
}

func TestSummarizeAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	s, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	_, err = s.Summarize(context.Background(), "sys", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
}

type emptyClient struct{}

func (emptyClient) CreateChatCompletion(context.Context, goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error) {
	return goopenai.ChatCompletionResponse{}, nil
}

func TestSummarizeNoChoices(t *testing.T) {
	t.Parallel()

	_, err := newWithClient(emptyClient{}, "m").Summarize(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)
}
