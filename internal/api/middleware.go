// Package api implements the headless REST API using chi.
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/starford/headless/internal/content"
)

// Account IDs assigned by AccountMiddleware.
const (
	AccountAnonymous     = "anonymous"
	AccountAuthenticated = "authenticated"
)

// AccessPolicy maps callers to accounts.
type AccessPolicy struct {
	// AuthEnabled turns on bearer token checks. When false every caller is
	// authenticated.
	AuthEnabled   bool
	Token         string
	Anonymous     []string
	Authenticated []string
}

// AccountMiddleware stores the caller's account on the request context.
// In token mode a request without an Authorization header is anonymous and a
// request carrying a wrong token is rejected with 401.
func AccountMiddleware(p AccessPolicy) func(http.Handler) http.Handler {
	anonymous := content.NewAccount(AccountAnonymous, p.Anonymous...)
	authenticated := content.NewAccount(AccountAuthenticated, p.Authenticated...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := authenticated
			if p.AuthEnabled {
				auth := r.Header.Get("Authorization")
				switch {
				case auth == "":
					account = anonymous
				case !validToken(auth, p.Token):
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(content.WithAccount(r.Context(), account)))
		})
	}
}

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if content.AccountFrom(r.Context()).ID != AccountAuthenticated {
			writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func validToken(header, token string) bool {
	got, ok := strings.CutPrefix(header, "Bearer ")
	return ok && token != "" && subtle.ConstantTimeCompare([]byte(got), []byte(token)) == 1
}
