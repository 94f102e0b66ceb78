package llm

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/normanking/avatarpipe/internal/config"
)

// New constructs the provider selected by cfg.Provider.
func New(cfg config.LLMConfig, logger zerolog.Logger) (Provider, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllamaProvider(&OllamaConfig{
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			SystemPrompt: cfg.SystemPrompt,
			Timeout:      cfg.Timeout,
		}, logger), nil
	case "openai":
		return NewOpenAIProvider(&OpenAIConfig{
			APIKey:       cfg.APIKey,
			Model:        cfg.Model,
			BaseURL:      cfg.BaseURL,
			SystemPrompt: cfg.SystemPrompt,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}
