package provider

import (
	"context"
	"fmt"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderDeepSeek   = "deepseek"
	ProviderOpenRouter = "openrouter"
)

// Config holds the active provider configuration for a Gateway.
type Config struct {
	Provider          string
	APIKey            string
	BaseURL           string // optional override for OpenAI-compatible hosts
	Model             string // optional model override
	RequestsPerMinute int    // 0 disables the self-throttle
}

// Backend is one wire protocol for completing a prompt. Both variants
// take the same system/user prompt pair and return the model's text;
// retry and rate-limit behavior is identical regardless of which one is
// active because both live behind the Gateway.
type Backend interface {
	// Complete sends the prompt pair and returns the response text.
	// An empty response is reported as an error, never as "".
	Complete(ctx context.Context, system, user string) (string, error)

	// Name returns the backend name
	Name() string
}

// defaultBaseURLs routes OpenAI-compatible providers to their hosts
// when no explicit base URL override is configured.
var defaultBaseURLs = map[string]string{
	ProviderDeepSeek:   "https://api.deepseek.com/v1",
	ProviderOpenRouter: "https://openrouter.ai/api/v1",
}

// newBackend creates the wire adapter for the configured provider.
func newBackend(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Reason: fmt.Sprintf("%s API key is required", cfg.Provider)}
	}

	switch cfg.Provider {
	case ProviderGemini:
		return newGeminiBackend(ctx, cfg)
	case ProviderOpenAI, ProviderDeepSeek, ProviderOpenRouter:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultBaseURLs[cfg.Provider]
		}
		return newOpenAIBackend(cfg.Provider, cfg.APIKey, baseURL, cfg.Model), nil
	default:
		return nil, &ConfigError{Reason: fmt.Sprintf("unknown provider: %s", cfg.Provider)}
	}
}
