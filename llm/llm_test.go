package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanModelOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `  {"a":1}  `, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "upper fence", in: "```JSON\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "inline fence", in: "```json{\"a\":1}```", want: `{"a":1}`},
		{name: "leading prose", in: "Here you go:\n```json\n{\"a\":1}\n```\nThanks", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanModelOutput(tt.in))
		})
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	_, err := New(ctx, ProviderAnthropic, Options{})
	assert.Error(t, err)

	_, err = New(ctx, "mistral", Options{APIKey: "k"})
	assert.Error(t, err)

	model, err := New(ctx, ProviderOpenAI, Options{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, model.Provider())
}

func TestAnthropicModel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/messages", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":          "msg_1",
				"type":        "message",
				"role":        "assistant",
				"model":       AnthropicDefaultModel,
				"stop_reason": "end_turn",
				"content":     []map[string]string{{"type": "text", "text": "hello"}},
				"usage":       map[string]int{"input_tokens": 3, "output_tokens": 1},
			})
		}))
		defer srv.Close()

		model := NewAnthropicModel(Options{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 100})
		out, err := model.Generate(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
		}))
		defer srv.Close()

		model := NewAnthropicModel(Options{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 100})
		_, err := model.Generate(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrRateLimited)
	})
}

func TestOpenAIModel(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/chat/completions", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hello"},"finish_reason":"stop"}]}`))
		}))
		defer srv.Close()

		model := NewOpenAIModel(Options{APIKey: "k", BaseURL: srv.URL + "/v1", MaxTokens: 100})
		out, err := model.Generate(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"requests","code":"rate_limit_exceeded"}}`))
		}))
		defer srv.Close()

		model := NewOpenAIModel(Options{APIKey: "k", BaseURL: srv.URL + "/v1", MaxTokens: 100})
		_, err := model.Generate(context.Background(), "hi")
		assert.ErrorIs(t, err, ErrRateLimited)
	})
}
