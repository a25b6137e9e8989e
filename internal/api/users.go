package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/kalambet/apptrack/internal/storage"
)

const minPasswordLength = 6

type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func handleCreateUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "name is required")
			return
		}
		addr, err := mail.ParseAddress(req.Email)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "a valid email is required")
			return
		}
		if utf8.RuneCountInString(req.Password) < minPasswordLength {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "password must be at least %d characters", minPasswordLength)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unusable password: %v", err)
			return
		}
		u, err := deps.Store.CreateUser(req.Name, addr.Address, string(hash))
		if err != nil {
			storageError(w, err, "user")
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// handleCreateSession verifies credentials and returns the user, whose ID
// the client then sends as X-User-ID.
func handleCreateSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req userRequest
		if !decodeBody(w, r, maxRequestBodySize, &req) {
			return
		}

		u, err := deps.Store.GetUserByEmail(req.Email)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid email or password")
			return
		}
		if err != nil {
			storageError(w, err, "user")
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			httpError(w, http.StatusUnauthorized, "authentication_error", "invalid email or password")
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}
