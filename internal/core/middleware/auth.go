package middleware

import (
	"net/http"
	"strings"

	"github.com/mkhonta/esave/internal/core/auth"
	"github.com/mkhonta/esave/internal/core/logger"
)

// Authenticate validates the bearer token and stores the resulting session
// in the request context. Requests without a valid token get 401.
func Authenticate(secret []byte, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			session, err := auth.ParseToken(token, secret)
			if err != nil {
				log.Warn("Rejected unauthenticated request",
					logger.StringField("path", r.URL.Path),
					logger.ErrorField("error", err),
				)
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
		})
	}
}

// RequireAdmin gates a route on the admin role. Must run after Authenticate.
func RequireAdmin(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.SessionFrom(r.Context())
			if err != nil || session.Role != auth.RoleAdmin {
				log.Warn("Rejected non-admin request",
					logger.StringField("path", r.URL.Path),
				)
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
