package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaEngine_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"subject":"Hi"}`},
		})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "llama3.1")
	result, err := e.Chat(context.Background(), "", []Message{
		{Role: "system", Content: "You write e-mails."},
		{Role: "user", Content: "hi"},
	}, Options{JSON: true, MaxTokens: 400, Temperature: 0.6})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if result != `{"subject":"Hi"}` {
		t.Errorf("got %q", result)
	}
	if got["model"] != "llama3.1" {
		t.Errorf("model = %v, want default llama3.1", got["model"])
	}
	if got["format"] != "json" {
		t.Errorf("format = %v, want json", got["format"])
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 2 {
		t.Errorf("messages = %v", got["messages"])
	}
	if opts, _ := got["options"].(map[string]any); opts["num_ctx"] != nil {
		t.Errorf("short prompt should keep the default window, got %v", opts["num_ctx"])
	}
}

func TestContextWindow(t *testing.T) {
	tests := []struct {
		chars, maxTokens, want int
	}{
		{400, 400, 0},
		{4000, 1000, 0},
		{8000 + 2000, 4000, 8192},
		{4000, 2000, 4096},
		{200000, 4000, 32768},
	}
	for _, tt := range tests {
		if got := contextWindow(tt.chars, tt.maxTokens); got != tt.want {
			t.Errorf("contextWindow(%d, %d) = %d, want %d", tt.chars, tt.maxTokens, got, tt.want)
		}
	}
}

func TestOllamaEngine_IsRunning(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version":"0.6.2"}`))
	})
	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "llama3.1")
	if !e.IsRunning(context.Background()) {
		t.Error("IsRunning() = false, want true")
	}
	if !e.HasModel(context.Background(), "llama3.1") {
		t.Error("HasModel(llama3.1) = false, want true")
	}
	if e.Name() != "ollama" {
		t.Errorf("Name() = %q", e.Name())
	}
}

func TestOllamaEngine_PullModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		enc.Encode(map[string]any{"status": "downloading", "total": 100, "completed": 50})
		enc.Encode(map[string]any{"status": "success"})
	}))
	defer srv.Close()

	e := NewOllamaEngine(srv.URL, "llama3.1")
	var updates []PullProgress
	if err := e.PullModel(context.Background(), "llama3.1", func(p PullProgress) {
		updates = append(updates, p)
	}); err != nil {
		t.Fatalf("PullModel: %v", err)
	}
	if len(updates) != 2 || updates[0].Completed != 50 || updates[1].Status != "success" {
		t.Errorf("updates = %+v", updates)
	}
}
