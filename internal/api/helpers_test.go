package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/apptrack/internal/assist"
	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/extract"
	"github.com/kalambet/apptrack/internal/profile"
	"github.com/kalambet/apptrack/internal/storage"
)

const testToken = "test-token-12345"

const cvProfileJSON = "```json\n" + `{
  "identity": {"name": "Jane Doe", "email": "jane@example.com"},
  "professional_summary": "Backend engineer building reliable services.",
  "skills": {"technical": ["Go", "Postgres"]},
  "experience": [{"company": "Acme", "role": "Engineer", "duration": "3 years"}]
}` + "\n```"

const sampleCV = `Jane Doe, backend engineer with three years at Acme building Go services,
Postgres schemas and the deployment tooling around them.`

// scriptedEngine answers by feature: CV extraction, match scoring, e-mail
// drafts and cover letters each get a canned reply.
type scriptedEngine struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *scriptedEngine) Chat(_ context.Context, _ string, messages []engine.Message, opts engine.Options) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	system := messages[0].Content
	switch {
	case strings.Contains(system, "CV extraction engine"):
		return cvProfileJSON, nil
	case opts.JSON && strings.Contains(system, "match_score"):
		return `{"match_score": 72, "matched_skills": ["Go"], "missing_skills": ["Kafka"], "summary": "Good fit."}`, nil
	case opts.JSON:
		return `{"subject": "Backend Engineer application", "body": "Dear hiring team, ..."}`, nil
	default:
		return "Dear Hiring Manager,\n\nI am excited to apply.", nil
	}
}

func (e *scriptedEngine) IsRunning(context.Context) bool { return e.err == nil }

func (e *scriptedEngine) Name() string { return "scripted" }

func (e *scriptedEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type testEnv struct {
	handler http.Handler
	store   *storage.Store
	engine  *scriptedEngine
	userID  int64
	deps    Deps
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupHandler(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	u, err := store.CreateUser("Jane", "jane@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	eng := &scriptedEngine{}
	mgr := profile.NewManager(store)
	deps := Deps{
		Store:     store,
		Profiles:  mgr,
		Extractor: extract.NewExtractor(eng, "", mgr),
		Assistant: assist.New(eng, "", mgr, nil),
		Engine:    eng,
		Token:     testToken,
		Location:  time.UTC,
		Now:       func() time.Time { return testNow },
	}
	return &testEnv{handler: NewHandler(deps), store: store, engine: eng, userID: u.ID, deps: deps}
}

// do sends an authenticated request as the test user.
func (e *testEnv) do(method, url, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set(UserHeader, strconv.FormatInt(e.userID, 10))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) addApplication(t *testing.T, a storage.Application) storage.Application {
	t.Helper()
	a.UserID = e.userID
	created, err := e.store.CreateApplication(a)
	if err != nil {
		t.Fatalf("CreateApplication: %v", err)
	}
	return created
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}
