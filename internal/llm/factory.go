package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/config"
	"github.com/Drlordbasil/Real-Reflection-AI-Self-grading/internal/logging"
)

// NewClient builds the client for the configured provider.
func NewClient(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (Client, error) {
	logging.Boot("creating LLM client: provider=%s model=%s", cfg.Provider, cfg.Model)
	if cfg.Provider != "groq" && cfg.Provider != "" {
		// the config defaults target Groq; other providers pick their own
		if cfg.BaseURL == DefaultGroqBaseURL {
			cfg.BaseURL = ""
		}
		if cfg.Model == DefaultGroqModel {
			cfg.Model = ""
		}
	}
	switch cfg.Provider {
	case "groq", "":
		oc := DefaultGroqConfig(cfg.APIKey)
		applyOpenAIOverrides(&oc, cfg, timeout)
		return asClient(NewOpenAIClient(oc))
	case "openai":
		oc := DefaultOpenAIConfig(cfg.APIKey)
		applyOpenAIOverrides(&oc, cfg, timeout)
		return asClient(NewOpenAIClient(oc))
	case "gemini":
		return asClient(NewGeminiClient(ctx, GeminiConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model}))
	case "ollama":
		return asClient(NewOllamaClient(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model, Timeout: timeout}))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
}

func applyOpenAIOverrides(oc *OpenAIConfig, cfg config.LLMConfig, timeout time.Duration) {
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	if timeout > 0 {
		oc.Timeout = timeout
	}
	if cfg.MaxRetries > 0 {
		oc.MaxRetries = cfg.MaxRetries
	}
}

// asClient keeps a failed constructor's nil pointer out of the interface.
func asClient[T Client](c T, err error) (Client, error) {
	if err != nil {
		return nil, err
	}
	return c, nil
}
