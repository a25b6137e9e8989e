// Package proxy is a client for OpenRouter and other OpenAI-compatible chat
// completion APIs.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultTimeout = 60 * time.Second
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
)

// ErrEmptyResponse is returned when the API answers without any choice.
var ErrEmptyResponse = errors.New("empty completion")

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	// RetryAfter is the server's requested wait, if it sent one.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Status == http.StatusTooManyRequests {
		return fmt.Sprintf("rate limited (HTTP %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Message)
}

// Temporary reports whether the request may succeed if retried: rate limits
// and upstream provider failures.
func (e *APIError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client sends requests to one chat completions endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a client for the public OpenRouter API.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		backoff:    initialBackoff,
	}
}

// NewClientWithBaseURL creates a client for a custom endpoint. An empty
// baseURL keeps OpenRouter.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// Complete sends a chat completion request and returns the content of the
// first choice. Temporary failures are retried with exponential backoff,
// waiting at least as long as the server's Retry-After.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	var lastErr error
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		var resp ChatResponse
		err := c.call(ctx, http.MethodPost, "/chat/completions", req, &resp)
		if err == nil {
			return firstChoice(req.Model, resp)
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Temporary() {
			return "", err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		d := max(wait, apiErr.RetryAfter)
		slog.Debug("retrying completion", "model", req.Model, "status", apiErr.Status, "wait", d)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(min(d, maxBackoff)):
		}
		wait *= 2
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

func firstChoice(model string, resp ChatResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		slog.Warn("completion hit the token limit", "model", model)
	}
	if resp.Usage != nil {
		slog.Debug("completion usage", "model", model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens)
	}
	return choice.Message.Content, nil
}

// ListModels returns the models the endpoint offers.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	var list ModelList
	if err := c.call(ctx, http.MethodGet, "/models", nil, &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

// call performs one request. in is sent as JSON when non-nil; a 2xx body is
// decoded into out.
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", "https://github.com/kalambet/apptrack")
	req.Header.Set("X-Title", "apptrack")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// newAPIError reads the OpenAI error envelope, falling back to the raw body.
func newAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	e := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		e.Message = envelope.Error.Message
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}
