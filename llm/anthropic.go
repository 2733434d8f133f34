package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicDefaultModel is used when no model is configured
const AnthropicDefaultModel = "claude-sonnet-4-20250514"

// AnthropicModel calls the Claude messages API
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

func NewAnthropicModel(opts Options) *AnthropicModel {
	model := opts.Model
	if model == "" {
		model = AnthropicDefaultModel
	}
	// 429s surface immediately; the paraphraser owns retries.
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey), option.WithMaxRetries(0)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &AnthropicModel{
		client:    anthropic.NewClient(reqOpts...),
		model:     model,
		maxTokens: opts.MaxTokens,
	}
}

func (m *AnthropicModel) Provider() string { return ProviderAnthropic }

func (m *AnthropicModel) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("anthropic: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("anthropic request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from Anthropic API")
	}
	return text.String(), nil
}
