package api

import (
	"errors"
	"net/http"

	"github.com/kalambet/apptrack/internal/assist"
)

// jobRequest names the posting an assist call works on. With an
// application_id the stored application supplies company, role and link
// unless the request overrides them.
type jobRequest struct {
	ApplicationID int64  `json:"application_id"`
	Company       string `json:"company"`
	Role          string `json:"role"`
	Description   string `json:"description"`
	Link          string `json:"link"`
}

type emailRequest struct {
	jobRequest
	ResumeAttached bool   `json:"resume_attached"`
	CoverLetter    string `json:"cover_letter"`
}

type matchBatchRequest struct {
	ApplicationIDs []int64 `json:"application_ids"`
}

// resolveJob builds the assist job for req, writing an error response and
// returning false when it cannot.
func resolveJob(w http.ResponseWriter, r *http.Request, deps Deps, req jobRequest) (assist.Job, bool) {
	job := assist.Job{
		ApplicationID: req.ApplicationID,
		Company:       req.Company,
		Role:          req.Role,
		Description:   req.Description,
		Link:          req.Link,
	}
	if req.ApplicationID != 0 {
		a, err := deps.Store.GetApplication(currentUser(r).ID, req.ApplicationID)
		if err != nil {
			storageError(w, err, "application")
			return assist.Job{}, false
		}
		if job.Company == "" {
			job.Company = a.Company
		}
		if job.Role == "" {
			job.Role = a.Role
		}
		if job.Link == "" {
			job.Link = a.JobLink
		}
	}
	if job.Company == "" || job.Role == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "company and role are required")
		return assist.Job{}, false
	}
	return job, true
}

func assistError(w http.ResponseWriter, err error) {
	if errors.Is(err, assist.ErrNoDescription) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	storageError(w, err, "profile")
}

func handleCoverLetter(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		job, ok := resolveJob(w, r, deps, req)
		if !ok {
			return
		}
		draft, err := deps.Assistant.CoverLetter(r.Context(), currentUser(r).ID, job)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, draft)
	}
}

func handleEmail(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req emailRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		job, ok := resolveJob(w, r, deps, req.jobRequest)
		if !ok {
			return
		}
		email, err := deps.Assistant.Email(r.Context(), currentUser(r).ID, job, assist.EmailOptions{
			ResumeAttached: req.ResumeAttached,
			CoverLetter:    req.CoverLetter,
		})
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, email)
	}
}

func handleMatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req jobRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		job, ok := resolveJob(w, r, deps, req)
		if !ok {
			return
		}
		res, err := deps.Assistant.Match(r.Context(), currentUser(r).ID, job)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleMatchBatch scores the profile against several stored applications.
// An empty ID list means every application of the user.
func handleMatchBatch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req matchBatchRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		userID := currentUser(r).ID
		var jobs []assist.Job
		if len(req.ApplicationIDs) == 0 {
			apps, err := deps.Store.ListApplications(userID, "")
			if err != nil {
				storageError(w, err, "applications")
				return
			}
			for _, a := range apps {
				jobs = append(jobs, assist.Job{ApplicationID: a.ID, Company: a.Company, Role: a.Role, Link: a.JobLink})
			}
		} else {
			for _, id := range req.ApplicationIDs {
				a, err := deps.Store.GetApplication(userID, id)
				if err != nil {
					storageError(w, err, "application")
					return
				}
				jobs = append(jobs, assist.Job{ApplicationID: a.ID, Company: a.Company, Role: a.Role, Link: a.JobLink})
			}
		}

		results, err := deps.Assistant.MatchMany(r.Context(), userID, jobs)
		if err != nil {
			assistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": nonNil(results)})
	}
}
