package api

import (
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/apptrack/internal/cvtext"
	"github.com/kalambet/apptrack/internal/ingest"
	"github.com/kalambet/apptrack/internal/profile"
	"github.com/kalambet/apptrack/internal/storage"
)

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Profiles.Get(currentUser(r).ID)
		if err != nil {
			storageError(w, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// handlePatchProfile applies a manual edit. Named sections are replaced
// outright, so manual edits always win over extracted data.
func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]any
		if !decodeBody(w, r, maxRequestBodySize, &fields) {
			return
		}
		if len(fields) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "no fields to update")
			return
		}

		rec, err := deps.Profiles.Edit(currentUser(r).ID, fields)
		if err != nil {
			storageError(w, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleProfileSummary(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := deps.Profiles.Summary(currentUser(r).ID)
		if err != nil {
			storageError(w, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
	}
}

type cvRequest struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
	Text          string `json:"text"`
}

type cvImportResponse struct {
	Outcome      profile.Outcome       `json:"outcome"`
	Sections     []profile.Section     `json:"sections"`
	LegacyFields []profile.LegacyField `json:"legacy_fields"`
	Written      profile.Patch         `json:"written"`
}

// handleImportCV accepts a CV as a multipart "file", as base64 JSON, or as
// plain text JSON. With ?async=true the import is queued and the upload ID
// is returned.
func handleImportCV(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename, text, err := readCV(w, r, deps.maxUpload())
		if err != nil {
			cvError(w, err)
			return
		}
		user := currentUser(r)

		if r.URL.Query().Get("async") == "true" {
			id, err := ingest.EnqueueCV(deps.Store, user.ID, filename, text)
			if err != nil {
				storageError(w, err, "cv upload")
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]string{"upload_id": id, "status": "queued"})
			return
		}

		res, err := deps.Extractor.Import(r.Context(), user.ID, text)
		if err != nil {
			storageError(w, err, "profile")
			return
		}
		slog.InfoContext(r.Context(), "cv imported", "user_id", user.ID, "outcome", res.Outcome, "sections", len(res.Patch.Sections()))
		writeJSON(w, http.StatusOK, cvImportResponse{
			Outcome:      res.Outcome,
			Sections:     nonNil(res.Patch.Sections()),
			LegacyFields: nonNil(res.Patch.LegacyFields()),
			Written:      res.Patch,
		})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var errNoCV = errors.New("a CV file, content_base64 or text is required")

// readCV returns the filename and prepared text of the uploaded CV.
func readCV(w http.ResponseWriter, r *http.Request, limit int64) (string, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	defer r.Body.Close()

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limit); err != nil {
			return "", "", err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", errNoCV
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, limit+1))
		if err != nil {
			return "", "", err
		}
		if int64(len(data)) > limit {
			return "", "", &http.MaxBytesError{Limit: limit}
		}
		text, err := cvtext.Extract(header.Filename, data)
		return header.Filename, text, err
	}

	var req cvRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		return "", "", err
	}
	switch {
	case req.ContentBase64 != "":
		data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			return "", "", errInvalidBase64
		}
		if int64(len(data)) > limit {
			return "", "", &http.MaxBytesError{Limit: limit}
		}
		text, err := cvtext.Extract(req.Filename, data)
		return req.Filename, text, err
	case strings.TrimSpace(req.Text) != "":
		text, err := cvtext.Prepare(req.Text)
		return req.Filename, text, err
	default:
		return "", "", errNoCV
	}
}

var errInvalidBase64 = errors.New("invalid base64 content")

func cvError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "CV exceeds %d bytes", tooLarge.Limit)
	case errors.Is(err, cvtext.ErrTooShort):
		// Too little text to be a CV: nothing is extracted or written.
		writeJSON(w, http.StatusOK, cvImportResponse{
			Outcome:      profile.EmptyInput,
			Sections:     []profile.Section{},
			LegacyFields: []profile.LegacyField{},
		})
	case errors.Is(err, cvtext.ErrUnsupported):
		httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	}
}

func handleGetCVUpload(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, err := deps.Store.GetCVUpload(chi.URLParam(r, "id"))
		if err == nil && u.UserID != currentUser(r).ID {
			err = storage.ErrNotFound
		}
		if err != nil {
			storageError(w, err, "cv upload")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
