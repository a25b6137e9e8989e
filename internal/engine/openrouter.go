package engine

import (
	"context"
	"time"

	"github.com/kalambet/apptrack/internal/proxy"
)

// OpenRouterEngine talks to OpenRouter or any OpenAI-compatible endpoint.
type OpenRouterEngine struct {
	client *proxy.Client
	model  string
}

// NewOpenRouterEngine creates an engine for apiKey. An empty baseURL means
// the public OpenRouter API.
func NewOpenRouterEngine(apiKey, baseURL, model string) *OpenRouterEngine {
	return &OpenRouterEngine{
		client: proxy.NewClientWithBaseURL(apiKey, baseURL),
		model:  model,
	}
}

func (e *OpenRouterEngine) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if model == "" {
		model = e.model
	}
	req := proxy.ChatRequest{
		Model:     model,
		Messages:  make([]proxy.Message, len(messages)),
		MaxTokens: opts.MaxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = proxy.Message{Role: m.Role, Content: m.Content}
	}
	if opts.Temperature > 0 {
		t := opts.Temperature
		req.Temperature = &t
	}
	if opts.JSON {
		req.ResponseFormat = &proxy.ResponseFormat{Type: "json_object"}
	}
	return e.client.Complete(ctx, req)
}

// IsRunning lists models as a reachability and credentials probe.
func (e *OpenRouterEngine) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.client.ListModels(ctx)
	return err == nil
}

func (e *OpenRouterEngine) Name() string { return "openrouter" }
