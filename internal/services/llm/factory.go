package llm

import (
	"fmt"
	"strings"

	"contentpipe/internal/config"
)

// Factory builds a generator for a model. NewFromConfig is the production
// factory.
type Factory func(cfg config.Generation, model string) (Generator, error)

var _ Factory = NewFromConfig

// NewFromConfig builds the configured provider. An empty model override
// uses the configured default model.
func NewFromConfig(cfg config.Generation, model string) (Generator, error) {
	if strings.TrimSpace(model) == "" {
		model = cfg.Model
	}
	switch cfg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropic(AnthropicConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     model,
			MaxTokens: cfg.MaxTokens,
		})
	case config.ProviderOpenRouter, "":
		return NewClient(Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          model,
			Referer:        cfg.Referer,
			Title:          cfg.Title,
			TimeoutSeconds: cfg.TimeoutSeconds,
			MaxTokens:      cfg.MaxTokens,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}
