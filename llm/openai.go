package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

const openAIDefaultModel = openai.GPT4oMini

// OpenAIModel calls the chat completions API
type OpenAIModel struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIModel(opts Options) *OpenAIModel {
	model := opts.Model
	if model == "" {
		model = openAIDefaultModel
	}
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	return &OpenAIModel{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: opts.MaxTokens,
	}
}

func (m *OpenAIModel) Provider() string { return ProviderOpenAI }

func (m *OpenAIModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     m.model,
		MaxTokens: m.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("openai: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in OpenAI response")
	}
	return resp.Choices[0].Message.Content, nil
}
