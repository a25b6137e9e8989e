package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kalambet/apptrack/internal/storage"
)

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if token == "" || !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserHeader names the acting user on every user-scoped request.
const UserHeader = "X-User-ID"

type userKey struct{}

// UserLookup resolves user IDs. Implemented by storage.Store.
type UserLookup interface {
	GetUser(id int64) (storage.User, error)
}

// RequireUser resolves the X-User-ID header to an existing user and stores
// it in the request context.
func RequireUser(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(UserHeader)
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing or invalid %s header", UserHeader)
				return
			}
			u, err := users.GetUser(id)
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusUnauthorized, "authentication_error", "unknown user %d", id)
				return
			}
			if err != nil {
				storageError(w, err, "user")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, u)))
		})
	}
}

// currentUser returns the user resolved by RequireUser.
func currentUser(r *http.Request) storage.User {
	u, _ := r.Context().Value(userKey{}).(storage.User)
	return u
}
