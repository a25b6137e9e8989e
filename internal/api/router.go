// Package api exposes the tracker over HTTP and MCP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/apptrack/internal/assist"
	"github.com/kalambet/apptrack/internal/engine"
	"github.com/kalambet/apptrack/internal/extract"
	"github.com/kalambet/apptrack/internal/profile"
	"github.com/kalambet/apptrack/internal/storage"
)

const (
	maxRequestBodySize    = 1 << 20 // 1MB
	defaultMaxUploadBytes = 5 << 20
)

// Deps holds what the HTTP handlers need.
type Deps struct {
	Store     *storage.Store
	Profiles  *profile.Manager
	Extractor *extract.Extractor
	Assistant *assist.Assistant
	Engine    engine.Engine
	Token     string

	// MaxUploadBytes caps CV uploads. Zero means 5MB.
	MaxUploadBytes int64
	// Location is the zone interview times are interpreted in. Nil means
	// time.Local.
	Location *time.Location
	// Now is the clock used for follow-ups and upcoming interviews. Nil
	// means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) location() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.Local
}

func (d Deps) maxUpload() int64 {
	if d.MaxUploadBytes > 0 {
		return d.MaxUploadBytes
	}
	return defaultMaxUploadBytes
}

// NewHandler returns the HTTP API. /health is public, /v1/users and
// /v1/sessions need the bearer token, and every other /v1 route also needs
// the X-User-ID header.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID, RequestLogger, Recoverer)

	r.Get("/health", handleHealth(deps))

	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/users", handleCreateUser(deps))
		r.Post("/sessions", handleCreateSession(deps))

		r.Group(func(r chi.Router) {
			r.Use(RequireUser(deps.Store))

			r.Get("/profile", handleGetProfile(deps))
			r.Patch("/profile", handlePatchProfile(deps))
			r.Get("/profile/summary", handleProfileSummary(deps))
			r.Post("/profile/cv", handleImportCV(deps))
			r.Get("/profile/cv/{id}", handleGetCVUpload(deps))

			r.Route("/applications", func(r chi.Router) {
				r.Get("/", handleListApplications(deps))
				r.Post("/", handleCreateApplication(deps))
				r.Get("/stats", handleApplicationStats(deps))
				r.Get("/followups", handleFollowUps(deps))
				r.Get("/export", handleExport(deps))

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", handleGetApplication(deps))
					r.Put("/", handleUpdateApplication(deps))
					r.Delete("/", handleDeleteApplication(deps))

					r.Get("/interview", handleGetInterview(deps))
					r.Put("/interview", handleUpsertInterview(deps))
					r.Post("/interview/complete", handleCompleteInterview(deps))
					r.Get("/interview/calendar", handleInterviewCalendar(deps))
				})
			})
			r.Get("/interviews/upcoming", handleUpcomingInterviews(deps))

			r.Post("/assist/cover-letter", handleCoverLetter(deps))
			r.Post("/assist/email", handleEmail(deps))
			r.Post("/assist/match", handleMatch(deps))
			r.Post("/assist/match-batch", handleMatchBatch(deps))
		})
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		llm := "none"
		if deps.Engine != nil {
			llm = deps.Engine.Name()
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "llm": llm})
	}
}
