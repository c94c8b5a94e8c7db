package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// Gateway is the translation contract consumed by the orchestrator and
// the quality estimator. It builds prompts, self-throttles against the
// configured requests-per-minute budget, and runs every backend call
// through a circuit breaker so a flapping provider trips fast instead
// of burning chunk retry budgets.
type Gateway struct {
	config  Config
	backend Backend
	limiter *rateLimiter
	breaker *gobreaker.CircuitBreaker
}

// New creates a Gateway for the given configuration. It fails with a
// ConfigError before any network attempt when the configuration is
// missing or names an unknown provider.
func New(ctx context.Context, cfg Config) (*Gateway, error) {
	if cfg.Provider == "" {
		return nil, &ConfigError{Reason: "no provider configured"}
	}

	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Provider,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Config errors are the user's problem, not provider
			// health; don't let them trip the breaker.
			var ce *ConfigError
			return err == nil || errors.As(err, &ce)
		},
	})

	return &Gateway{
		config:  cfg,
		backend: backend,
		limiter: newRateLimiter(cfg.RequestsPerMinute),
		breaker: breaker,
	}, nil
}

// Config returns the active configuration.
func (g *Gateway) Config() Config {
	return g.config
}

// Translate translates one chunk of text.
func (g *Gateway) Translate(ctx context.Context, req Request) (string, error) {
	return g.complete(ctx, systemPrompt, buildTranslationPrompt(req))
}

// DetectLanguage returns the ISO 639-1 code of the text's language.
func (g *Gateway) DetectLanguage(ctx context.Context, text string) (string, error) {
	return g.complete(ctx, detectSystemPrompt, buildDetectPrompt(text))
}

// AssessQuality asks the backend to score a translation and returns
// the raw response text for the quality estimator to parse.
func (g *Gateway) AssessQuality(ctx context.Context, original, translated, targetLang string) (string, error) {
	return g.complete(ctx, qualitySystemPrompt, buildQualityPrompt(original, translated, targetLang))
}

func (g *Gateway) complete(ctx context.Context, system, user string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}

	result, err := g.breaker.Execute(func() (any, error) {
		return g.backend.Complete(ctx, system, user)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", &ProviderError{Err: err}
		}
		return "", err
	}
	return result.(string), nil
}
