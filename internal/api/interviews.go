package api

import (
	"net/http"

	"github.com/kalambet/apptrack/internal/calendar"
	"github.com/kalambet/apptrack/internal/storage"
)

type interviewRequest struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Venue string `json:"venue"`
}

type completeRequest struct {
	Difficulty string `json:"difficulty"`
	Notes      string `json:"notes"`
}

func handleGetInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		iv, err := deps.Store.GetInterview(currentUser(r).ID, id)
		if err != nil {
			storageError(w, err, "interview")
			return
		}
		writeJSON(w, http.StatusOK, iv)
	}
}

// handleUpsertInterview schedules or reschedules the interview of an
// application and moves the application to Interview status.
func handleUpsertInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		var req interviewRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		userID := currentUser(r).ID
		iv, err := deps.Store.UpsertInterview(userID, storage.Interview{
			ApplicationID: id,
			Date:          req.Date,
			Time:          req.Time,
			Venue:         req.Venue,
		})
		if err != nil {
			storageError(w, err, "application")
			return
		}

		a, err := deps.Store.GetApplication(userID, id)
		if err != nil {
			storageError(w, err, "application")
			return
		}
		if a.Status == storage.StatusApplied {
			a.Status = storage.StatusInterview
			if _, err := deps.Store.UpdateApplication(a); err != nil {
				storageError(w, err, "application")
				return
			}
		}
		writeJSON(w, http.StatusOK, iv)
	}
}

func handleCompleteInterview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		var req completeRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		userID := currentUser(r).ID
		if err := deps.Store.CompleteInterview(userID, id, req.Difficulty, req.Notes); err != nil {
			storageError(w, err, "interview")
			return
		}
		iv, err := deps.Store.GetInterview(userID, id)
		if err != nil {
			storageError(w, err, "interview")
			return
		}
		writeJSON(w, http.StatusOK, iv)
	}
}

func handleInterviewCalendar(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := applicationID(w, r)
		if !ok {
			return
		}
		userID := currentUser(r).ID
		a, err := deps.Store.GetApplication(userID, id)
		if err != nil {
			storageError(w, err, "application")
			return
		}
		iv, err := deps.Store.GetInterview(userID, id)
		if err != nil {
			storageError(w, err, "interview")
			return
		}
		link, err := calendar.InterviewLink(a, iv, deps.location())
		if err != nil {
			httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "interview has no valid start: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"url": link})
	}
}

func handleUpcomingInterviews(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.UpcomingInterviews(currentUser(r).ID, deps.now().In(deps.location()))
		if err != nil {
			storageError(w, err, "interviews")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"interviews": nonNil(list)})
	}
}
