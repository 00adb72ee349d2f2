package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

type ctxKey struct{}

// WithEmail returns a context carrying the caller's email.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.ToLower(email))
}

// EmailFrom returns the caller's email, or "" outside an authenticated request.
func EmailFrom(ctx context.Context) string {
	email, _ := ctx.Value(ctxKey{}).(string)
	return email
}

// Failed API key attempts allowed per client IP per window.
const (
	failedKeyLimit  = 10
	failedKeyWindow = time.Minute
)

// NewFailureLimiter returns the limiter RequireAPIKey uses for bad keys.
func NewFailureLimiter() *httprate.RateLimiter {
	return httprate.NewRateLimiter(failedKeyLimit, failedKeyWindow,
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
		}),
	)
}

// RequireSession redirects browsers without a valid session to the login
// page. Sessions of users who lost access are rejected too.
func RequireSession(sessions *SessionStore, users *UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := sessions.Validate(r)
			if err != nil || !users.IsAuthorized(email) {
				http.Redirect(w, r, "/login", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

// RequireSessionAPI is RequireSession for JSON endpoints driven by the web
// UI. It answers 401 instead of redirecting.
func RequireSessionAPI(sessions *SessionStore, users *UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, err := sessions.Validate(r)
			if err != nil || !users.IsAuthorized(email) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

// RequireAPIKey validates Bearer token auth. The key's owner must still be
// an authorized user. Clients that keep presenting bad keys get 429 once
// limiter trips.
func RequireAPIKey(apiKeys *APIKeyStore, users *UserStore, limiter *httprate.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			key, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || key == "" {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}

			email, err := apiKeys.Validate(key)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if email == "" || !users.IsAuthorized(email) {
				ip, _ := httprate.KeyByIP(r)
				if limiter.RespondOnLimit(w, r, ip) {
					return
				}
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithEmail(r.Context(), email)))
		})
	}
}

// RequireAdmin answers 403 unless the caller is the admin. It must run after
// one of the authenticating middlewares.
func RequireAdmin(users *UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !users.IsAdmin(EmailFrom(r.Context())) {
				writeError(w, http.StatusForbidden, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
