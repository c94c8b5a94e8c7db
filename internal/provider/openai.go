package provider

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// openaiBackend speaks the chat-completions protocol. It serves the
// OpenAI API itself and any OpenAI-compatible host (DeepSeek,
// OpenRouter) selected via base URL.
type openaiBackend struct {
	name   string
	client *openai.Client
	model  string
}

func newOpenAIBackend(name, apiKey, baseURL, model string) *openaiBackend {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &openaiBackend{
		name:   name,
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Complete sends a chat completion request and returns the response text.
func (b *openaiBackend) Complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: 0.3,
	}

	resp, err := b.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyError(fmt.Errorf("%s API error: %w", b.name, err))
	}

	if len(resp.Choices) == 0 {
		return "", &ProviderError{Err: fmt.Errorf("%s returned no choices", b.name)}
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", &ProviderError{Err: fmt.Errorf("%s returned empty content", b.name)}
	}
	return content, nil
}

// Name returns the backend name
func (b *openaiBackend) Name() string {
	return b.name
}
