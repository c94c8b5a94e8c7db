package models

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Lister handles listing models from an OpenAI-compatible endpoint
type Lister struct {
	apiKey string
	client *openai.Client
}

// NewLister creates a new model lister. baseURL may be empty for the
// official OpenAI endpoint.
func NewLister(apiKey, baseURL string) *Lister {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Lister{
		apiKey: apiKey,
		client: openai.NewClientWithConfig(config),
	}
}

// ListAvailableModels prints the chat models available with the key
func (l *Lister) ListAvailableModels() error {
	if l.apiKey == "" {
		return fmt.Errorf("API key not found. Set POLYDOC_PROVIDER_API_KEY or configure in .polydoc.yaml")
	}

	ctx := context.Background()
	models, err := l.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	chatModels := []string{}
	otherModels := []string{}
	for _, model := range models.Models {
		if isChatModel(model.ID) {
			chatModels = append(chatModels, model.ID)
		} else {
			otherModels = append(otherModels, model.ID)
		}
	}
	sort.Strings(chatModels)
	sort.Strings(otherModels)

	fmt.Println("Available Translation Models:")
	if len(chatModels) == 0 {
		fmt.Println("  No chat models found")
	} else {
		for _, model := range chatModels {
			fmt.Printf("  %s\n", model)
		}
	}
	if len(otherModels) > 0 {
		fmt.Printf("\n... and %d non-chat models\n", len(otherModels))
	}

	return nil
}

// isChatModel filters out embeddings, audio and image models which
// cannot be used for translation.
func isChatModel(id string) bool {
	for _, skip := range []string{"embedding", "tts", "audio", "whisper", "dall-e", "image", "moderation"} {
		if strings.Contains(id, skip) {
			return false
		}
	}
	return strings.Contains(id, "gpt") || strings.Contains(id, "chat") ||
		strings.Contains(id, "deepseek") || strings.Contains(id, "claude") ||
		strings.Contains(id, "llama") || strings.Contains(id, "mistral")
}
