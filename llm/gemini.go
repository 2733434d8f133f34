package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls the Gemini API through the genai SDK
type GeminiModel struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiModel(ctx context.Context, opts Options) (*GeminiModel, error) {
	model := opts.Model
	if model == "" {
		model = defaultGeminiModel
	}
	config := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model, maxTokens: opts.MaxTokens}, nil
}

func (m *GeminiModel) Provider() string { return ProviderGemini }

func (m *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{MaxOutputTokens: int32(m.maxTokens)}
	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), config)
	if err != nil {
		if geminiStatus(err) == http.StatusTooManyRequests {
			return "", fmt.Errorf("gemini: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from Gemini API")
	}
	return text, nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code
	}
	return 0
}
