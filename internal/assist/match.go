package assist

import (
	"context"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/profile"
)

// matchConcurrency bounds parallel model calls in MatchMany.
const matchConcurrency = 4

// MatchResult scores how well a profile fits a job.
type MatchResult struct {
	ApplicationID int64    `json:"application_id,omitempty"`
	Company       string   `json:"company,omitempty"`
	Role          string   `json:"role,omitempty"`
	Score         int      `json:"match_score"`
	MatchedSkills []string `json:"matched_skills"`
	MissingSkills []string `json:"missing_skills"`
	Summary       string   `json:"summary"`
	Generated     bool     `json:"generated"`
}

// Match scores userID's profile against job. Without a reachable model the
// result has score 0 and explains why in Summary.
func (a *Assistant) Match(ctx context.Context, userID int64, job Job) (MatchResult, error) {
	_, summary, err := a.candidate(userID)
	if err != nil {
		return MatchResult{}, err
	}
	return a.match(ctx, summary, job)
}

// MatchMany scores userID's profile against every job concurrently. Results
// keep the order of jobs. A job without a description gets a zero result
// instead of failing the batch.
func (a *Assistant) MatchMany(ctx context.Context, userID int64, jobs []Job) ([]MatchResult, error) {
	_, summary, err := a.candidate(userID)
	if err != nil {
		return nil, err
	}

	results := make([]MatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(matchConcurrency)
	for i, job := range jobs {
		g.Go(func() error {
			res, err := a.match(gctx, summary, job)
			if err != nil {
				res = unmatched(job, err.Error())
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Assistant) match(ctx context.Context, summary string, job Job) (MatchResult, error) {
	description := a.description(ctx, job)
	if description == "" {
		return MatchResult{}, ErrNoDescription
	}

	out, ok := a.chat(ctx, "match", matchPrompt(summary, description), engine.Options{
		Temperature: 0.2,
		MaxTokens:   500,
		JSON:        true,
	})
	if !ok {
		return unmatched(job, "AI service not available for matching."), nil
	}

	obj, outcome := profile.ParseObject(out)
	if outcome != profile.OK {
		return unmatched(job, "Could not read the match analysis."), nil
	}

	res := unmatched(job, stringField(obj, "summary"))
	res.Score = clampScore(obj["match_score"])
	res.MatchedSkills = skillList(obj["matched_skills"])
	res.MissingSkills = skillList(obj["missing_skills"])
	res.Generated = true
	return res, nil
}

func unmatched(job Job, summary string) MatchResult {
	return MatchResult{
		ApplicationID: job.ApplicationID,
		Company:       job.Company,
		Role:          job.Role,
		MatchedSkills: []string{},
		MissingSkills: []string{},
		Summary:       summary,
	}
}

// clampScore reads a score given as number or numeric string and clamps it
// to 0-100. Anything else scores 0.
func clampScore(v any) int {
	var f float64
	switch s := v.(type) {
	case float64:
		f = s
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(f))))
}

func skillList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := []string{}
	for _, e := range arr {
		var s string
		switch x := e.(type) {
		case string:
			s = strings.TrimSpace(x)
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
