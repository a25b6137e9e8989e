package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps an Engine with a request rate limit and a per-call timeout.
type Limited struct {
	next    Engine
	limiter *rate.Limiter
	timeout time.Duration
}

// WithLimits returns e limited to perMinute calls per minute, each bounded
// by timeout. Zero disables the respective limit.
func WithLimits(e Engine, perMinute int, timeout time.Duration) *Limited {
	l := &Limited{next: e, timeout: timeout}
	if perMinute > 0 {
		l.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	}
	return l
}

func (l *Limited) Chat(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for llm rate limit: %w", err)
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := l.next.Chat(ctx, model, messages, opts)
	slog.Debug("llm call", "engine", l.next.Name(), "model", model,
		"duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
	return out, err
}

func (l *Limited) IsRunning(ctx context.Context) bool { return l.next.IsRunning(ctx) }

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Close() error { return Close(l.next) }

// Unwrap returns the wrapped engine.
func (l *Limited) Unwrap() Engine { return l.next }
