package engine

import (
	"context"
	"errors"
	"io"
)

// Engine abstracts an LLM backend (Gemini, Ollama, or any OpenAI-compatible
// API such as OpenRouter). Consumers such as CV extraction and the
// application assistant use this interface instead of a concrete client.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's
	// response text. An empty model means the backend's configured default.
	Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error)

	// IsRunning reports whether the backend can currently serve requests.
	IsRunning(ctx context.Context) bool

	// Name identifies the backend in logs and status output.
	Name() string
}

// Message represents a chat message. Role is "system", "user" or "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single Chat call. Zero values leave backend defaults.
type Options struct {
	Temperature float32
	MaxTokens   int
	// JSON requests a JSON object as output. Backends that cannot enforce
	// it still return the raw text, so callers must parse leniently.
	JSON bool
}

// ErrUnavailable is returned by Chat when no backend is configured.
var ErrUnavailable = errors.New("llm backend unavailable")

// Unavailable is the Engine used when no backend is configured. Every call
// fails with ErrUnavailable so callers fall back to their defaults.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Chat(context.Context, string, []Message, Options) (string, error) {
	if u.Reason == "" {
		return "", ErrUnavailable
	}
	return "", errors.Join(ErrUnavailable, errors.New(u.Reason))
}

func (Unavailable) IsRunning(context.Context) bool { return false }

func (Unavailable) Name() string { return "none" }

// Close releases resources held by e, if any.
func Close(e Engine) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
