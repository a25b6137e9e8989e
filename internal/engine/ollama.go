package engine

import (
	"context"

	"github.com/kalambet/apptrack/internal/ollama"
)

// Context windows offered to Ollama, smallest first. Calls that fit the
// server default send none.
var ollamaWindows = []int{4096, 8192, 16384, 32768}

const ollamaDefaultWindow = 2048

// OllamaEngine runs prompts on a local or LAN Ollama server.
type OllamaEngine struct {
	client *ollama.Client
	model  string
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at
// baseURL, using model when a call names none.
func NewOllamaEngine(baseURL, model string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL), model: model}
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if model == "" {
		model = e.model
	}
	msgs := make([]ollama.Message, len(messages))
	chars := 0
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
		chars += len(m.Content)
	}
	return e.client.Chat(ctx, model, msgs, ollama.ChatOptions{
		JSON:        opts.JSON,
		Temperature: opts.Temperature,
		NumPredict:  opts.MaxTokens,
		NumCtx:      contextWindow(chars, opts.MaxTokens),
	})
}

// contextWindow picks the smallest window that holds a prompt of promptChars
// characters (about four per token) plus maxTokens of output. Zero keeps the
// server default.
func contextWindow(promptChars, maxTokens int) int {
	need := promptChars/4 + maxTokens
	if need <= ollamaDefaultWindow {
		return 0
	}
	for _, w := range ollamaWindows {
		if need <= w {
			return w
		}
	}
	return ollamaWindows[len(ollamaWindows)-1]
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) Name() string { return "ollama" }

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{
				Status:    p.Status,
				Total:     p.Total,
				Completed: p.Completed,
			})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
