package provider

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ConfigError means the provider is missing or misconfigured (no API
// key, bad request, rejected credentials). Not retryable without user
// action.
type ConfigError struct {
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider configuration error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("provider configuration error: %s", e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RateLimitError means the backend itself signaled throttling (HTTP
// 429). The gateway's self-throttle should prevent most of these.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("provider rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// ProviderError means a transport or server failure (5xx, network,
// empty response). Retryable against the chunk's retry budget.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %v", e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is worth retrying against the chunk
// retry budget. Rate limits count as retryable at the orchestrator
// level; config errors do not.
func IsRetryable(err error) bool {
	var pe *ProviderError
	var rl *RateLimitError
	return errors.As(err, &pe) || errors.As(err, &rl)
}

// classifyError maps a backend client error onto the taxonomy:
// 429 -> RateLimitError, other 4xx -> ConfigError, everything else
// (5xx, transport) -> ProviderError.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return classifyStatus(genaiErr.Code, err)
	}
	return &ProviderError{Err: err}
}

func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Err: err}
	case status >= 400 && status < 500:
		return &ConfigError{Reason: "request rejected", Err: err}
	default:
		return &ProviderError{Err: err}
	}
}
