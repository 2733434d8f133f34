// Package llm wraps the language model SDKs behind a single text-in,
// text-out interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Supported providers
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
)

// ErrRateLimited is returned when the provider answers with HTTP 429
var ErrRateLimited = errors.New("llm: rate limited")

// TextModel generates a completion for a single user prompt
type TextModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// Options configures a model client. BaseURL is only set in tests.
type Options struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
}

// New builds the client for the named provider
func New(ctx context.Context, provider string, opts Options) (TextModel, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s API key cannot be empty", provider)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	switch provider {
	case ProviderAnthropic:
		return NewAnthropicModel(opts), nil
	case ProviderGemini:
		return NewGeminiModel(ctx, opts)
	case ProviderOpenAI:
		return NewOpenAIModel(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// CleanModelOutput strips a surrounding markdown code fence, with or without a
// language tag, from model output.
func CleanModelOutput(text string) string {
	cleaned := strings.TrimSpace(text)
	if start := strings.Index(cleaned, "```"); start >= 0 {
		body := cleaned[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[\"") {
			body = body[nl+1:]
		} else {
			body = strings.TrimPrefix(body, "json")
			body = strings.TrimPrefix(body, "JSON")
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		cleaned = body
	}
	return strings.TrimSpace(cleaned)
}
