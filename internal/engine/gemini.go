package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEngine calls the Google Gemini API.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

// NewGeminiEngine creates a Gemini client for apiKey.
func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &GeminiEngine{client: client, model: model}, nil
}

func (e *GeminiEngine) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if model == "" {
		model = e.model
	}
	system, history, prompt := splitMessages(messages)
	if prompt == "" {
		return "", errors.New("gemini: no user message")
	}

	gm := e.client.GenerativeModel(model)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if opts.Temperature > 0 {
		gm.SetTemperature(opts.Temperature)
	}
	if opts.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	if opts.JSON {
		gm.ResponseMIMEType = "application/json"
	}

	var (
		resp *genai.GenerateContentResponse
		err  error
	)
	if len(history) == 0 {
		resp, err = gm.GenerateContent(ctx, genai.Text(prompt))
	} else {
		cs := gm.StartChat()
		cs.History = history
		resp, err = cs.SendMessage(ctx, genai.Text(prompt))
	}
	if err != nil {
		return "", fmt.Errorf("gemini call failed: %w", err)
	}

	if resp.UsageMetadata != nil {
		slog.Debug("gemini usage", "model", model,
			"input_tokens", resp.UsageMetadata.PromptTokenCount,
			"output_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}
	return responseText(resp)
}

// IsRunning reports true once a client exists; Gemini has no cheap probe
// that does not spend quota.
func (e *GeminiEngine) IsRunning(context.Context) bool { return e.client != nil }

func (e *GeminiEngine) Name() string { return "gemini" }

func (e *GeminiEngine) Close() error {
	return e.client.Close()
}

// splitMessages maps chat messages onto Gemini's shape: system messages are
// joined into the system instruction, the last user message becomes the
// prompt and everything before it is history.
func splitMessages(messages []Message) (system string, history []*genai.Content, prompt string) {
	var sys []string
	var turns []Message
	for _, m := range messages {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	system = strings.Join(sys, "\n\n")

	last := len(turns) - 1
	for last >= 0 && turns[last].Role != "user" {
		last--
	}
	if last < 0 {
		return system, nil, ""
	}
	for _, m := range turns[:last] {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return system, history, turns[last].Content
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini")
	}
	return b.String(), nil
}
