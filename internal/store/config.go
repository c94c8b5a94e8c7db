package store

import "context"

// ProviderConfig is the persisted configuration of a translation
// backend. Exactly one configuration is active at a time; switching
// providers between runs must not touch completed chunk data.
type ProviderConfig struct {
	Provider          string `json:"provider"`
	APIKey            string `json:"api_key"`
	BaseURL           string `json:"base_url,omitempty"`
	Model             string `json:"model,omitempty"`
	RequestsPerMinute int    `json:"requests_per_minute,omitempty"`
}

// ConfigStore persists the active provider configuration.
type ConfigStore interface {
	// GetActiveProvider returns the active configuration, or
	// ErrNotFound if none has been saved yet.
	GetActiveProvider(ctx context.Context) (*ProviderConfig, error)
	SetActiveProvider(ctx context.Context, cfg *ProviderConfig) error
}
