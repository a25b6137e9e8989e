// Package assist drafts application material from the stored profile: cover
// letters, application e-mails and job match scores.
package assist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/jobdesc"
	"github.com/kalambet/apptrack/internal/profile"
)

// ErrNoDescription is returned by Match when a job has neither an inline
// description nor a link to fetch one from.
var ErrNoDescription = errors.New("job description is required")

// Profiles reads stored profiles. Implemented by profile.Manager.
type Profiles interface {
	Get(userID int64) (profile.Record, error)
}

// Fetcher downloads job postings. Implemented by jobdesc.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (jobdesc.Description, error)
}

// Job is the posting a draft or match is made for. When Description is
// empty it is fetched from Link.
type Job struct {
	ApplicationID int64  `json:"application_id,omitempty"`
	Company       string `json:"company"`
	Role          string `json:"role"`
	Description   string `json:"description,omitempty"`
	Link          string `json:"link,omitempty"`
}

// Assistant generates drafts with an LLM and falls back to templates when
// the model is unavailable.
type Assistant struct {
	engine   engine.Engine
	model    string
	profiles Profiles
	fetcher  Fetcher
}

// New creates an Assistant. fetcher may be nil, in which case job links are
// not followed.
func New(eng engine.Engine, model string, profiles Profiles, fetcher Fetcher) *Assistant {
	return &Assistant{engine: eng, model: model, profiles: profiles, fetcher: fetcher}
}

// candidate loads the profile of userID with its prompt summary.
func (a *Assistant) candidate(userID int64) (profile.Record, string, error) {
	r, err := a.profiles.Get(userID)
	if err != nil {
		return profile.Record{}, "", fmt.Errorf("loading profile: %w", err)
	}
	return r, profile.Summarize(r), nil
}

// description returns the job description for prompts, fetching it from the
// job link when needed. Fetch failures are logged and yield "".
func (a *Assistant) description(ctx context.Context, job Job) string {
	if d := strings.TrimSpace(job.Description); d != "" {
		return jobdesc.ForPrompt(d)
	}
	if job.Link == "" || a.fetcher == nil {
		return ""
	}
	d, err := a.fetcher.Fetch(ctx, job.Link)
	if err != nil {
		slog.Warn("job description fetch failed", "link", job.Link, "error", err)
		return ""
	}
	return jobdesc.ForPrompt(d.Text)
}

func (a *Assistant) chat(ctx context.Context, feature string, messages []engine.Message, opts engine.Options) (string, bool) {
	out, err := a.engine.Chat(ctx, a.model, messages, opts)
	if err != nil {
		if errors.Is(err, engine.ErrUnavailable) {
			slog.Debug("llm unavailable, using fallback", "feature", feature)
		} else {
			slog.Warn("llm request failed, using fallback", "feature", feature, "engine", a.engine.Name(), "error", err)
		}
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" {
		slog.Warn("llm returned empty response, using fallback", "feature", feature)
		return "", false
	}
	return out, true
}

// candidateName returns the best known name of the candidate.
func candidateName(r profile.Record) string {
	if r.Identity != nil && r.Identity.Name != nil && strings.TrimSpace(*r.Identity.Name) != "" {
		return strings.TrimSpace(*r.Identity.Name)
	}
	if r.Legacy.Name != nil && strings.TrimSpace(*r.Legacy.Name) != "" {
		return strings.TrimSpace(*r.Legacy.Name)
	}
	return "Candidate"
}
