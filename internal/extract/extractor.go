// Package extract turns CV text into a structured profile with an LLM and
// merges it into the stored profile.
package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/apptrack/internal/cvtext"
	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/profile"
)

const (
	extractionTimeout = 90 * time.Second
	temperature       = 0.1
	maxTokens         = 4000
)

// Merger stores an extracted profile without overwriting existing data.
// Implemented by profile.Manager.
type Merger interface {
	Merge(userID int64, extracted profile.Profile) (profile.Patch, error)
}

// Result is the outcome of one CV import.
type Result struct {
	Outcome profile.Outcome `json:"outcome"`
	// Patch holds what was written to the stored profile. It is empty when
	// nothing was extracted or every extracted section was already filled.
	Patch profile.Patch `json:"written"`
}

// Extractor uses an LLM to extract a structured profile from CV text.
type Extractor struct {
	engine engine.Engine
	model  string
	merger Merger
}

// NewExtractor creates an Extractor. An empty model means the engine's
// default.
func NewExtractor(eng engine.Engine, model string, merger Merger) *Extractor {
	return &Extractor{engine: eng, model: model, merger: merger}
}

// Extract runs the model over cvText and normalizes its answer. It never
// fails: text too short to be a CV, an unreachable model and a timeout all
// yield the empty Profile with EmptyInput, and malformed model output yields
// the empty Profile with the normalizer's outcome.
func (e *Extractor) Extract(ctx context.Context, cvText string) (profile.Profile, profile.Outcome) {
	cvText = strings.TrimSpace(cvText)
	if utf8.RuneCountInString(cvText) < cvtext.MinTextLength {
		return profile.Profile{}, profile.EmptyInput
	}
	cvText = cvtext.Truncate(cvText, cvtext.MaxTextLength)

	ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
	defer cancel()

	raw, err := e.engine.Chat(ctx, e.model, BuildPrompt(cvText), engine.Options{
		Temperature: temperature,
		MaxTokens:   maxTokens,
		JSON:        true,
	})
	if err != nil {
		slog.Warn("cv extraction chat failed", "engine", e.engine.Name(), "error", err)
		return profile.Profile{}, profile.EmptyInput
	}

	p, outcome := profile.Normalize(raw)
	if outcome.Failed() {
		slog.Warn("cv extraction produced no profile", "outcome", outcome, "response_len", len(raw))
	}
	return p, outcome
}

// Import extracts a profile from cvText and merges it into userID's stored
// profile. Only a storage failure is returned as an error.
func (e *Extractor) Import(ctx context.Context, userID int64, cvText string) (Result, error) {
	p, outcome := e.Extract(ctx, cvText)
	res := Result{Outcome: outcome}
	if outcome.Failed() || p.IsEmpty() {
		return res, nil
	}

	patch, err := e.merger.Merge(userID, p)
	if err != nil {
		return res, err
	}
	res.Patch = patch
	return res, nil
}
