package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
	User   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
			User:   r.Header.Get("X-User-ID"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"application not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		userID:     userFlag,
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) lastBody(t *testing.T) map[string]any {
	t.Helper()
	if len(ts.requests) == 0 {
		t.Fatal("no request recorded")
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[len(ts.requests)-1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	return body
}

// resetFlags puts every flag of cmd and its children back to its default so
// runs do not leak into each other.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the CLI with args against ts and returns stdout and stderr.
func run(t *testing.T, ts *testServer, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	oldOut, oldErr, oldClient, oldColor := out, errOut, newAPIClient, noColor
	out, errOut = &stdout, &stderr
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() {
		out, errOut, newAPIClient, noColor = oldOut, oldErr, oldClient, oldColor
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	})

	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestAppsAdd(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/applications/": `{"id":4,"company":"Acme","role":"Backend Engineer","status":"Applied"}`,
	})

	_, stderr, err := run(t, ts, "--user", "7", "apps", "add", "Acme", "Backend Engineer",
		"--link", "https://acme.example/jobs/1", "--date", "2026-03-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q", r.Auth)
	}
	if r.User != "7" {
		t.Errorf("user header = %q, want 7", r.User)
	}
	body := ts.lastBody(t)
	if body["company"] != "Acme" || body["role"] != "Backend Engineer" {
		t.Errorf("body = %v", body)
	}
	if body["job_link"] != "https://acme.example/jobs/1" || body["applied_date"] != "2026-03-01" {
		t.Errorf("flags not mapped: %v", body)
	}
	if _, ok := body["notes"]; ok {
		t.Error("unset flags must not be sent")
	}
	if !strings.Contains(stderr, "Added application 4") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAppsAdd_MissingArgs(t *testing.T) {
	ts := newTestServer(t, nil)

	_, _, err := run(t, ts, "apps", "add", "Acme")
	if err == nil {
		t.Fatal("expected error for missing role")
	}
	if !strings.Contains(err.Error(), "accepts 2 arg(s)") {
		t.Errorf("error = %q", err)
	}
	if len(ts.requests) != 0 {
		t.Errorf("expected no request, got %d", len(ts.requests))
	}
}

func TestAppsList(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/applications/": `{"applications":[{"id":1,"company":"Acme","role":"SRE","status":"Offer","applied_date":"2026-03-01"}]}`,
	})

	stdout, _, err := run(t, ts, "apps", "list", "--status", "Offer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/v1/applications/?status=Offer" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	for _, want := range []string{"COMPANY", "Acme", "SRE", "Offer", "2026-03-01"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestAppsList_Empty(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/applications/": `{"applications":[]}`,
	})

	stdout, stderr, err := run(t, ts, "apps", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/v1/applications/" {
		t.Errorf("path = %q, want no status filter", ts.requests[0].Path)
	}
	if stdout != "" || !strings.Contains(stderr, "No applications") {
		t.Errorf("stdout = %q, stderr = %q", stdout, stderr)
	}
}

func TestAppsStatus(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /v1/applications/3": `{"id":3,"status":"Rejected"}`,
	})

	_, stderr, err := run(t, ts, "apps", "status", "3", "Rejected")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Method != http.MethodPut {
		t.Errorf("method = %q", ts.requests[0].Method)
	}
	if body := ts.lastBody(t); body["status"] != "Rejected" || len(body) != 1 {
		t.Errorf("body = %v, want only status", body)
	}
	if !strings.Contains(stderr, "Application 3 is now Rejected") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAppsDelete_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	_, _, err := run(t, ts, "apps", "delete", "99")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "application not found") {
		t.Errorf("error = %q", err)
	}
}

func TestAppsFollowups(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/applications/followups": `{"days":5,"applications":[]}`,
	})

	_, stderr, err := run(t, ts, "apps", "followups", "--days", "5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/v1/applications/followups?days=5" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if !strings.Contains(stderr, "Nothing to follow up") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestInterviewSet(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"PUT /v1/applications/2/interview": `{"application_id":2,"date":"2026-03-12","time":"14:30","venue":"Office"}`,
	})

	_, stderr, err := run(t, ts, "interview", "set", "2", "2026-03-12", "14:30", "--venue", "Office")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := ts.lastBody(t)
	if body["date"] != "2026-03-12" || body["time"] != "14:30" || body["venue"] != "Office" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(stderr, "Interview on 2026-03-12 14:30 (Office)") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestInterviewCalendar(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/applications/2/interview/calendar": `{"url":"https://calendar.google.com/calendar/render?action=TEMPLATE"}`,
	})

	stdout, _, err := run(t, ts, "interview", "calendar", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(stdout) != "https://calendar.google.com/calendar/render?action=TEMPLATE" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestProfileImport(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/profile/cv": `{"outcome":"ok","sections":["identity","skills"],"legacy_fields":["name"],"written":{}}`,
	})

	path := filepath.Join(t.TempDir(), "cv.md")
	cv := "# Jane Doe\nBackend engineer with Go and Postgres."
	if err := os.WriteFile(path, []byte(cv), 0o644); err != nil {
		t.Fatal(err)
	}

	_, stderr, err := run(t, ts, "profile", "import", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := ts.lastBody(t)
	if body["filename"] != "cv.md" {
		t.Errorf("filename = %v", body["filename"])
	}
	if body["content_base64"] != base64.StdEncoding.EncodeToString([]byte(cv)) {
		t.Errorf("content_base64 = %v", body["content_base64"])
	}
	if !strings.Contains(stderr, "Filled identity, skills") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestProfileImport_Async(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/profile/cv": `{"upload_id":"u-1","status":"queued"}`,
	})

	path := filepath.Join(t.TempDir(), "cv.txt")
	os.WriteFile(path, []byte("some CV text"), 0o644)

	_, stderr, err := run(t, ts, "profile", "import", "--async", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Path != "/v1/profile/cv?async=true" {
		t.Errorf("path = %q", ts.requests[0].Path)
	}
	if !strings.Contains(stderr, "Queued CV import u-1") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestProfileImport_MissingFile(t *testing.T) {
	ts := newTestServer(t, nil)

	_, _, err := run(t, ts, "profile", "import", filepath.Join(t.TempDir(), "missing.pdf"))
	if err == nil || !strings.Contains(err.Error(), "reading CV") {
		t.Errorf("error = %v", err)
	}
	if len(ts.requests) != 0 {
		t.Error("no request expected")
	}
}

func TestReportImport(t *testing.T) {
	tests := []struct {
		name string
		res  importResult
		want string
	}{
		{"queued", importResult{UploadID: "u-2"}, "Queued CV import u-2"},
		{"empty input", importResult{Outcome: "empty_input"}, "Nothing imported (empty_input)"},
		{"nothing to fill", importResult{Outcome: "ok"}, "every section was already filled"},
		{"filled", importResult{Outcome: "ok", Sections: []string{"education"}}, "Filled education"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			old := errOut
			errOut = &buf
			defer func() { errOut = old }()

			reportImport(tt.res)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestProfileShow_Summary(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/profile/summary": `{"summary":"Name: Jane Doe"}`,
	})

	stdout, _, err := run(t, ts, "profile", "show", "--summary")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(stdout) != "Name: Jane Doe" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestAssistCoverLetter_Fallback(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/assist/cover-letter": `{"text":"Dear Hiring Manager,","generated":false}`,
	})

	stdout, stderr, err := run(t, ts, "assist", "cover-letter", "Acme", "SRE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := ts.lastBody(t)
	if body["company"] != "Acme" || body["role"] != "SRE" {
		t.Errorf("body = %v", body)
	}
	if !strings.Contains(stdout, "Dear Hiring Manager,") {
		t.Errorf("stdout = %q", stdout)
	}
	if !strings.Contains(stderr, "built-in template") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestAssistCoverLetter_InvalidID(t *testing.T) {
	ts := newTestServer(t, nil)

	_, _, err := run(t, ts, "assist", "cover-letter", "abc")
	if err == nil || !strings.Contains(err.Error(), "invalid application id") {
		t.Errorf("error = %v", err)
	}
}

func TestAssistMatch_Application(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/assist/match": `{"match_score":72,"matched_skills":["Go"],"missing_skills":["Kafka"],"summary":"Good fit."}`,
	})

	desc := filepath.Join(t.TempDir(), "job.txt")
	os.WriteFile(desc, []byte("We need Go and Kafka."), 0o644)

	_, stderr, err := run(t, ts, "assist", "match", "3", "--description-file", desc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := ts.lastBody(t)
	if body["application_id"] != float64(3) {
		t.Errorf("application_id = %v", body["application_id"])
	}
	if body["description"] != "We need Go and Kafka." {
		t.Errorf("description = %v", body["description"])
	}
	for _, want := range []string{"72/100", "Go", "Kafka", "Good fit."} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestAssistMatch_Batch(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/assist/match-batch": `{"results":[{"application_id":1,"company":"Acme","role":"SRE","match_score":40,"summary":"No description."}]}`,
	})

	stdout, _, err := run(t, ts, "assist", "match")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"SCORE", "Acme", "40", "No description."} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestAssistEmail(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/assist/email": `{"subject":"SRE application","body":"Hello,","generated":true}`,
	})

	stdout, _, err := run(t, ts, "assist", "email", "Acme", "SRE", "--resume=false")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := ts.lastBody(t); body["resume_attached"] != false {
		t.Errorf("resume_attached = %v", body["resume_attached"])
	}
	if !strings.HasPrefix(stdout, "Subject: SRE application\n\nHello,") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestExport_WritesWorkbook(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/applications/export": "PK-fake-workbook",
	})

	dir := t.TempDir()
	_, stderr, err := run(t, ts, "export", filepath.Join(dir, "apps"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "apps.xlsx"))
	if err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
	if string(data) != "PK-fake-workbook" {
		t.Errorf("content = %q", data)
	}
	if !strings.Contains(stderr, "Exported to") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestXLSXPath(t *testing.T) {
	tests := map[string]string{
		"apps":             "apps.xlsx",
		"apps.xlsx":        "apps.xlsx",
		"out/APPS.XLSX":    "out/APPS.XLSX",
		"./out//apps.xlsx": "out/apps.xlsx",
	}
	for in, want := range tests {
		if got := xlsxPath(in); got != want {
			t.Errorf("xlsxPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(context.Background(), "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	if got := colorize(colorGreen, "test message"); got != "test message" {
		t.Errorf("colorize with noColor=true = %q", got)
	}

	noColor = false
	if got := colorize(colorGreen, "test message"); !strings.Contains(got, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", got)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad", httpClient: ts.Client()}
	resp, err := client.get(context.Background(), "/v1/profile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err = decodeJSON(resp, nil)
	if err == nil {
		t.Fatal("expected error for 401")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("error = %q", err)
	}
}

func TestAPIClient_NoUserHeaderWithoutUser(t *testing.T) {
	ts := newTestServer(t, map[string]string{"GET /health": `{"status":"ok"}`})

	client := ts.client()
	client.userID = 0
	resp, err := client.get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if ts.requests[0].User != "" {
		t.Errorf("X-User-ID = %q, want empty", ts.requests[0].User)
	}
}
