package provider

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// geminiBackend speaks the single-endpoint generate protocol of the
// Gemini API: one request carrying the whole prompt, one response with
// the generated text.
type geminiBackend struct {
	client *genai.Client
	model  string
}

func newGeminiBackend(ctx context.Context, cfg Config) (*geminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ConfigError{Reason: "failed to create Gemini client", Err: err}
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &geminiBackend{client: client, model: model}, nil
}

// Complete sends a generate request and returns the response text.
func (b *geminiBackend) Complete(ctx context.Context, system, user string) (string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.3),
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(user), config)
	if err != nil {
		return "", classifyError(fmt.Errorf("gemini API error: %w", err))
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return "", &ProviderError{Err: fmt.Errorf("gemini returned empty content")}
	}
	return content, nil
}

// Name returns the backend name
func (b *geminiBackend) Name() string {
	return ProviderGemini
}
