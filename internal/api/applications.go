package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/apptrack/internal/export"
	"github.com/kalambet/apptrack/internal/storage"
)

// defaultFollowUpDays is how long an application may sit in Applied before
// it is due a follow-up.
const defaultFollowUpDays = 3

// applicationRequest carries the writable fields of an application. On
// update only the fields present in the request change.
type applicationRequest struct {
	Company     *string `json:"company"`
	Role        *string `json:"role"`
	Location    *string `json:"location"`
	JobLink     *string `json:"job_link"`
	Status      *string `json:"status"`
	AppliedDate *string `json:"applied_date"`
	Notes       *string `json:"notes"`
}

func (req applicationRequest) apply(a *storage.Application) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&a.Company, req.Company)
	set(&a.Role, req.Role)
	set(&a.Location, req.Location)
	set(&a.JobLink, req.JobLink)
	set(&a.Status, req.Status)
	set(&a.AppliedDate, req.AppliedDate)
	set(&a.Notes, req.Notes)
}

// applicationID parses the {id} route parameter and writes a 400 when it is
// not a positive integer.
func applicationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid application id %q", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}

func handleListApplications(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		if status != "" && !slices.Contains(storage.AllowedStatuses, status) {
			httpError(w, http.StatusBadRequest, "invalid_request_error",
				"status must be one of %s", strings.Join(storage.AllowedStatuses, ", "))
			return
		}
		apps, err := deps.Store.ListApplications(currentUser(r).ID, status)
		if err != nil {
			storageError(w, err, "applications")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"applications": nonNil(apps)})
	}
}

func handleCreateApplication(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req applicationRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		a := storage.Application{UserID: currentUser(r).ID}
		req.apply(&a)
		if a.AppliedDate == "" {
			a.AppliedDate = deps.now().In(deps.location()).Format(storage.DateLayout)
		}

		a, err := deps.Store.CreateApplication(a)
		if err != nil {
			storageError(w, err, "application")
			return
		}
		slog.InfoContext(r.Context(), "application created", "user_id", a.UserID, "application_id", a.ID, "company", a.Company)
		writeJSON(w, http.StatusCreated, a)
	}
}

func handleGetApplication(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		a, err := deps.Store.GetApplication(currentUser(r).ID, id)
		if err != nil {
			storageError(w, err, "application")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleUpdateApplication(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		var req applicationRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		userID := currentUser(r).ID
		a, err := deps.Store.GetApplication(userID, id)
		if err != nil {
			storageError(w, err, "application")
			return
		}
		req.apply(&a)
		if a, err = deps.Store.UpdateApplication(a); err != nil {
			storageError(w, err, "application")
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleDeleteApplication(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		if err := deps.Store.DeleteApplication(currentUser(r).ID, id); err != nil {
			storageError(w, err, "application")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleApplicationStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := deps.Store.ApplicationStats(currentUser(r).ID)
		if err != nil {
			storageError(w, err, "applications")
			return
		}
		total := 0
		for _, n := range stats {
			total += n
		}
		writeJSON(w, http.StatusOK, map[string]any{"by_status": stats, "total": total})
	}
}

func handleFollowUps(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := defaultFollowUpDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "days must be a non-negative integer")
				return
			}
			days = n
		}

		now := deps.now().In(deps.location())
		apps, err := deps.Store.FollowUps(currentUser(r).ID, now, time.Duration(days)*24*time.Hour)
		if err != nil {
			storageError(w, err, "applications")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"days": days, "applications": nonNil(apps)})
	}
}

func handleExport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUser(r).ID
		apps, err := deps.Store.ListApplicationDetails(userID)
		if err != nil {
			storageError(w, err, "applications")
			return
		}
		stats, err := deps.Store.ApplicationStats(userID)
		if err != nil {
			storageError(w, err, "applications")
			return
		}

		name := fmt.Sprintf("applications-%s.xlsx", deps.now().In(deps.location()).Format("20060102"))
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if err := export.Write(w, apps, stats); err != nil {
			slog.ErrorContext(r.Context(), "export failed", "user_id", userID, "error", err)
		}
	}
}
