package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dominicdesy/intelia-expert/internal/config"
)

// Provider names accepted by New.
const (
	ProviderNone            = "none"
	ProviderOpenAI          = "openai"
	ProviderLangchainOpenAI = "langchain-openai"
	ProviderOllama          = "ollama"
)

// New builds the configured backend wrapped in Resilient. It returns a nil
// Generator for the "none" provider; callers then use their heuristic paths.
func New(cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	defaults := Options{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	oc := OpenAIConfig{
		APIKey:   cfg.APIKey.Value(),
		BaseURL:  cfg.BaseURL,
		Model:    cfg.Model,
		Defaults: defaults,
	}

	var (
		backend Generator
		err     error
	)
	switch cfg.Provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderOpenAI:
		backend, err = NewOpenAIGenerator(oc)
	case ProviderLangchainOpenAI:
		backend, err = NewLangchainOpenAI(oc)
	case ProviderOllama:
		backend, err = NewOllama(cfg.BaseURL, cfg.Model, defaults)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s generator: %w", cfg.Provider, err)
	}

	return NewResilient(backend, ResilientConfig{
		Name:          cfg.Provider,
		RatePerSecond: cfg.RatePerSecond,
		Burst:         cfg.Burst,
		MaxRetries:    cfg.MaxRetries,
		Timeout:       cfg.Timeout.Duration(),
	}, logger), nil
}
