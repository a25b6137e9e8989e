package engine

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestSplitMessages(t *testing.T) {
	system, history, prompt := splitMessages([]Message{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "answer"},
		{Role: "system", Content: "Use JSON."},
		{Role: "user", Content: "second"},
	})

	if system != "Be brief.\n\nUse JSON." {
		t.Errorf("system = %q", system)
	}
	if prompt != "second" {
		t.Errorf("prompt = %q", prompt)
	}
	if len(history) != 2 || history[0].Role != "user" || history[1].Role != "model" {
		t.Fatalf("history = %+v", history)
	}
	if history[1].Parts[0] != genai.Text("answer") {
		t.Errorf("history[1] = %v", history[1].Parts)
	}
}

func TestSplitMessages_NoUser(t *testing.T) {
	_, _, prompt := splitMessages([]Message{{Role: "system", Content: "x"}})
	if prompt != "" {
		t.Errorf("prompt = %q, want empty", prompt)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}},
		}},
	}
	got, err := responseText(resp)
	if err != nil {
		t.Fatalf("responseText: %v", err)
	}
	if got != `{"a":1}` {
		t.Errorf("got %q", got)
	}

	for _, bad := range []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{}}}},
	} {
		if _, err := responseText(bad); err == nil {
			t.Errorf("expected error for %+v", bad)
		}
	}
}
