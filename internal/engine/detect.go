package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/kalambet/apptrack/internal/config"
)

// Detect builds the Engine selected by cfg.LLM, wrapped with its rate limit
// and timeout. A provider that lacks credentials, or provider "none",
// yields Unavailable rather than an error so the assistant can fall back to
// templates.
func Detect(ctx context.Context, cfg config.Config) (Engine, error) {
	llm := cfg.LLM
	model := llm.Model
	if model == "" {
		model = config.DefaultModel(llm.Provider)
	}

	var e Engine
	switch llm.Provider {
	case config.ProviderGemini:
		if llm.APIKey == "" {
			return Unavailable{Reason: "gemini needs llm.api_key"}, nil
		}
		g, err := NewGeminiEngine(ctx, llm.APIKey, model)
		if err != nil {
			return nil, err
		}
		e = g
	case config.ProviderOpenRouter:
		if llm.APIKey == "" {
			return Unavailable{Reason: "openrouter needs llm.api_key"}, nil
		}
		e = NewOpenRouterEngine(llm.APIKey, llm.BaseURL, model)
	case config.ProviderOllama:
		e = NewOllamaEngine(llm.BaseURL, model)
	case config.ProviderNone, "":
		return Unavailable{Reason: "llm.provider is none"}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", llm.Provider)
	}

	return WithLimits(e, llm.RequestsPerMinute, time.Duration(llm.TimeoutSeconds)*time.Second), nil
}
