package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubEngine struct {
	calls atomic.Int32
	delay time.Duration
	reply string
}

func (s *stubEngine) Chat(ctx context.Context, _ string, _ []Message, _ Options) (string, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.reply, nil
}

func (s *stubEngine) IsRunning(context.Context) bool { return true }
func (s *stubEngine) Name() string                   { return "stub" }

func TestLimited_PassesThrough(t *testing.T) {
	s := &stubEngine{reply: "ok"}
	l := WithLimits(s, 0, 0)

	out, err := l.Chat(context.Background(), "m", nil, Options{})
	if err != nil || out != "ok" {
		t.Fatalf("Chat = %q, %v", out, err)
	}
	if l.Name() != "stub" || !l.IsRunning(context.Background()) {
		t.Error("Name/IsRunning not forwarded")
	}
}

func TestLimited_Timeout(t *testing.T) {
	s := &stubEngine{delay: time.Second}
	l := WithLimits(s, 0, 20*time.Millisecond)

	_, err := l.Chat(context.Background(), "m", nil, Options{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLimited_RateLimitWaitsAndHonorsContext(t *testing.T) {
	s := &stubEngine{reply: "ok"}
	// One call per minute: the first call uses the burst, the second must wait.
	l := WithLimits(s, 1, 0)

	if _, err := l.Chat(context.Background(), "m", nil, Options{}); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := l.Chat(ctx, "m", nil, Options{}); err == nil {
		t.Fatal("second call should fail while waiting for the limiter")
	}
	if got := s.calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}
}

func TestUnavailable(t *testing.T) {
	u := Unavailable{Reason: "gemini needs llm.api_key"}
	_, err := u.Chat(context.Background(), "", nil, Options{})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if u.IsRunning(context.Background()) {
		t.Error("Unavailable must not report running")
	}
	if err := Close(u); err != nil {
		t.Errorf("Close: %v", err)
	}
}
