package assist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/jobdesc"
	"github.com/kalambet/apptrack/internal/profile"
)

// --- Mocks ---

type mockEngine struct {
	mu       sync.Mutex
	response string
	err      error
	calls    []engine.Message
	opts     []engine.Options
	respond  func(messages []engine.Message) string
}

func (m *mockEngine) Chat(_ context.Context, _ string, messages []engine.Message, opts engine.Options) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, messages[len(messages)-1])
	m.opts = append(m.opts, opts)
	if m.err != nil {
		return "", m.err
	}
	if m.respond != nil {
		return m.respond(messages), nil
	}
	return m.response, nil
}

func (m *mockEngine) IsRunning(context.Context) bool { return m.err == nil }
func (m *mockEngine) Name() string                   { return "mock" }

type mockProfiles struct {
	record profile.Record
	err    error
}

func (m mockProfiles) Get(int64) (profile.Record, error) { return m.record, m.err }

type mockFetcher struct {
	text  string
	err   error
	calls atomic.Int32
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string) (jobdesc.Description, error) {
	m.calls.Add(1)
	if m.err != nil {
		return jobdesc.Description{}, m.err
	}
	return jobdesc.Description{URL: rawURL, Text: m.text}, nil
}

func str(s string) *string { return &s }

func janeProfile() mockProfiles {
	return mockProfiles{record: profile.Record{Profile: profile.Profile{
		Identity: &profile.Identity{Name: str("Jane Doe")},
		Skills:   &profile.Skills{Technical: []string{"Go", "Postgres"}},
	}}}
}

var acme = Job{Company: "Acme", Role: "Backend Engineer", Description: "We need Go and Kafka."}

// --- Cover letter ---

func TestCoverLetter_Generated(t *testing.T) {
	eng := &mockEngine{response: "```text\nDear Hiring Manager,\n\nI build Go services.\n```"}
	a := New(eng, "", janeProfile(), nil)

	d, err := a.CoverLetter(context.Background(), 1, acme)
	if err != nil {
		t.Fatalf("CoverLetter: %v", err)
	}
	if !d.Generated || d.Text != "Dear Hiring Manager,\n\nI build Go services." {
		t.Errorf("draft = %+v", d)
	}

	prompt := eng.calls[0].Content
	for _, want := range []string{"[Candidate Profile]", "Jane Doe", "Company: Acme", "We need Go and Kafka."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if eng.opts[0].Temperature != 0.7 || eng.opts[0].MaxTokens != 500 || eng.opts[0].JSON {
		t.Errorf("options = %+v", eng.opts[0])
	}
}

func TestCoverLetter_FallbackWhenUnavailable(t *testing.T) {
	a := New(engine.Unavailable{}, "", janeProfile(), nil)

	d, err := a.CoverLetter(context.Background(), 1, acme)
	if err != nil {
		t.Fatalf("CoverLetter: %v", err)
	}
	if d.Generated {
		t.Error("fallback draft marked as generated")
	}
	for _, want := range []string{"Backend Engineer position at Acme", "Jane Doe"} {
		if !strings.Contains(d.Text, want) {
			t.Errorf("fallback missing %q: %s", want, d.Text)
		}
	}
}

func TestCoverLetter_ProfileError(t *testing.T) {
	a := New(&mockEngine{}, "", mockProfiles{err: errors.New("db closed")}, nil)
	if _, err := a.CoverLetter(context.Background(), 1, acme); err == nil {
		t.Error("expected profile error")
	}
}

func TestCoverLetter_DescriptionFromLink(t *testing.T) {
	eng := &mockEngine{response: "Dear Hiring Manager, ..."}
	fetcher := &mockFetcher{text: strings.Repeat("x", jobdesc.MaxPromptChars+100)}
	a := New(eng, "", janeProfile(), fetcher)

	job := Job{Company: "Acme", Role: "SRE", Link: "https://acme.example/jobs/7"}
	if _, err := a.CoverLetter(context.Background(), 1, job); err != nil {
		t.Fatalf("CoverLetter: %v", err)
	}
	if fetcher.calls.Load() != 1 {
		t.Errorf("fetch calls = %d", fetcher.calls.Load())
	}
	prompt := eng.calls[0].Content
	if strings.Contains(prompt, strings.Repeat("x", jobdesc.MaxPromptChars+1)) {
		t.Error("job description not capped")
	}
}

// --- E-mail ---

func TestEmail_Generated(t *testing.T) {
	eng := &mockEngine{response: `Here you go: {"subject": "Backend Engineer application", "body": "Hello Acme team,\nPlease see my resume."}`}
	a := New(eng, "", janeProfile(), nil)

	e, err := a.Email(context.Background(), 1, acme, EmailOptions{ResumeAttached: true, CoverLetter: strings.Repeat("c", 300)})
	if err != nil {
		t.Fatalf("Email: %v", err)
	}
	if !e.Generated || e.Subject != "Backend Engineer application" || !strings.HasPrefix(e.Body, "Hello Acme team") {
		t.Errorf("email = %+v", e)
	}

	prompt := eng.calls[0].Content
	if !strings.Contains(prompt, "Resume attached: yes") || !strings.Contains(prompt, strings.Repeat("c", 200)+"...") {
		t.Errorf("prompt = %s", prompt)
	}
	if strings.Contains(prompt, strings.Repeat("c", 201)) {
		t.Error("cover letter preview not truncated")
	}
	if !eng.opts[0].JSON || eng.opts[0].Temperature != 0.6 || eng.opts[0].MaxTokens != 400 {
		t.Errorf("options = %+v", eng.opts[0])
	}
}

func TestEmail_Fallbacks(t *testing.T) {
	tests := []struct {
		name string
		eng  engine.Engine
	}{
		{"unavailable", engine.Unavailable{Reason: "no api key"}},
		{"error", &mockEngine{err: errors.New("timeout")}},
		{"not json", &mockEngine{response: "I'd be happy to help with that email!"}},
		{"empty body", &mockEngine{response: `{"subject": "Hi", "body": ""}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(tt.eng, "", janeProfile(), nil)
			e, err := a.Email(context.Background(), 1, acme, EmailOptions{})
			if err != nil {
				t.Fatalf("Email: %v", err)
			}
			if e.Generated {
				t.Error("fallback marked as generated")
			}
			if e.Subject != "Application for Backend Engineer Position" {
				t.Errorf("subject = %q", e.Subject)
			}
			if !strings.Contains(e.Body, "Backend Engineer position at Acme") || !strings.HasSuffix(e.Body, "Jane Doe") {
				t.Errorf("body = %q", e.Body)
			}
		})
	}
}

func TestEmail_MissingSubjectUsesDefault(t *testing.T) {
	a := New(&mockEngine{response: `{"body": "Hello there, resume attached."}`}, "", janeProfile(), nil)
	e, _ := a.Email(context.Background(), 1, acme, EmailOptions{})
	if !e.Generated || e.Subject != "Application for Backend Engineer Position" {
		t.Errorf("email = %+v", e)
	}
}

func TestCandidateName(t *testing.T) {
	if got := candidateName(profile.Record{Legacy: profile.Legacy{Name: str(" Sam ")}}); got != "Sam" {
		t.Errorf("legacy name = %q", got)
	}
	if got := candidateName(profile.Record{}); got != "Candidate" {
		t.Errorf("default name = %q", got)
	}
}

// --- Match ---

func TestMatch(t *testing.T) {
	eng := &mockEngine{response: "```json\n" +
		`{"match_score": 142, "matched_skills": ["Go", " ", "Postgres"], "missing_skills": "Kafka", "summary": "Strong backend fit."}` +
		"\n```"}
	a := New(eng, "", janeProfile(), nil)

	res, err := a.Match(context.Background(), 1, acme)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Score != 100 {
		t.Errorf("score = %d, want clamped 100", res.Score)
	}
	if len(res.MatchedSkills) != 2 || res.MissingSkills == nil || len(res.MissingSkills) != 0 {
		t.Errorf("skills = %v / %v", res.MatchedSkills, res.MissingSkills)
	}
	if res.Summary != "Strong backend fit." || !res.Generated {
		t.Errorf("result = %+v", res)
	}
	if eng.opts[0].Temperature != 0.2 || !eng.opts[0].JSON {
		t.Errorf("options = %+v", eng.opts[0])
	}
}

func TestMatch_NoDescription(t *testing.T) {
	a := New(&mockEngine{}, "", janeProfile(), nil)
	_, err := a.Match(context.Background(), 1, Job{Company: "Acme", Role: "SRE"})
	if !errors.Is(err, ErrNoDescription) {
		t.Errorf("err = %v, want ErrNoDescription", err)
	}

	// A failing fetch leaves the job without a description too.
	a = New(&mockEngine{}, "", janeProfile(), &mockFetcher{err: errors.New("404")})
	_, err = a.Match(context.Background(), 1, Job{Link: "https://acme.example/gone"})
	if !errors.Is(err, ErrNoDescription) {
		t.Errorf("err = %v, want ErrNoDescription", err)
	}
}

func TestMatch_Unavailable(t *testing.T) {
	a := New(engine.Unavailable{}, "", janeProfile(), nil)
	res, err := a.Match(context.Background(), 1, acme)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Score != 0 || res.Generated || res.Summary == "" {
		t.Errorf("result = %+v", res)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{float64(87), 87},
		{float64(-5), 0},
		{float64(100.4), 100},
		{float64(72.6), 73},
		{"65%", 65},
		{" 40 ", 40},
		{"high", 0},
		{nil, 0},
		{true, 0},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestMatchMany(t *testing.T) {
	var inFlight, peak atomic.Int32
	eng := &mockEngine{}
	eng.respond = func(messages []engine.Message) string {
		content := messages[len(messages)-1].Content
		if strings.Contains(content, "Rust") {
			return `{"match_score": 20, "summary": "Weak."}`
		}
		return `{"match_score": 80, "summary": "Good."}`
	}
	slow := &slowEngine{inner: eng, inFlight: &inFlight, peak: &peak}
	a := New(slow, "", janeProfile(), nil)

	jobs := []Job{
		{ApplicationID: 1, Company: "A", Description: "Go services"},
		{ApplicationID: 2, Company: "B", Description: "Rust compilers"},
		{ApplicationID: 3, Company: "C"},
	}
	for i := 0; i < 6; i++ {
		jobs = append(jobs, Job{ApplicationID: int64(10 + i), Description: "Go APIs"})
	}

	results, err := a.MatchMany(context.Background(), 1, jobs)
	if err != nil {
		t.Fatalf("MatchMany: %v", err)
	}
	if len(results) != len(jobs) {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Score != 80 || results[1].Score != 20 || results[0].ApplicationID != 1 || results[1].Company != "B" {
		t.Errorf("results out of order: %+v %+v", results[0], results[1])
	}
	if results[2].Score != 0 || results[2].Summary != ErrNoDescription.Error() {
		t.Errorf("job without description = %+v", results[2])
	}
	if p := peak.Load(); p > matchConcurrency {
		t.Errorf("peak concurrency = %d, limit %d", p, matchConcurrency)
	}
}

// slowEngine tracks concurrent Chat calls.
type slowEngine struct {
	inner    engine.Engine
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (s *slowEngine) Chat(ctx context.Context, model string, messages []engine.Message, opts engine.Options) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return s.inner.Chat(ctx, model, messages, opts)
}

func (s *slowEngine) IsRunning(ctx context.Context) bool { return true }
func (s *slowEngine) Name() string                       { return "slow" }
