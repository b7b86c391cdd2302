package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/fraudwatch/internal/auth"
	"github.com/dukerupert/fraudwatch/internal/session"
)

// TokenParser validates a session token and returns its claims.
type TokenParser interface {
	Parse(token string) (*session.Claims, error)
}

// RequireAuth validates the session token and populates AuthContext. The
// token is read from the session cookie, then from an Authorization: Bearer
// header. Tokens minted before two-factor verification are rejected.
func RequireAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			claims, err := parser.Parse(token)
			if err != nil || !claims.TwoFactorVerified {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ac := auth.AuthContext{
				UserID:            claims.ID,
				Email:             claims.Email,
				Role:              claims.Role,
				TwoFactorVerified: claims.TwoFactorVerified,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sessionToken(r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
