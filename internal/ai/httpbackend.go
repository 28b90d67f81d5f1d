package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// HTTPBackend talks to any OpenAI-compatible chat completions API. baseURL is the API
// root; the client appends /chat/completions.
type HTTPBackend struct {
	name   string
	model  string
	client *openai.Client
}

func NewHTTPBackend(name, baseURL, apiKey, model string, httpClient *http.Client) *HTTPBackend {
	b := &HTTPBackend{name: name, model: model}
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/chat/completions")
	if baseURL == "" {
		return b
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	b.client = openai.NewClientWithConfig(cfg)
	return b
}

func (b *HTTPBackend) Name() string { return b.name }

func (b *HTTPBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	if b.client == nil {
		return "", ErrNotConfigured
	}

	req := openai.ChatCompletionRequest{Model: b.model, MaxTokens: p.MaxTokens}
	if p.System != "" {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	}
	for _, m := range p.Messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: chat completion: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
