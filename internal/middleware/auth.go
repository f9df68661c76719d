package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/ednova/ednova/internal/auth"
)

// TokenCookieName is the cookie carrying the signed auth token.
const TokenCookieName = "ednova_token"

func denyJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}

// RequireAuth validates the token cookie and populates AuthContext.
func RequireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(TokenCookieName)
			if err != nil || cookie.Value == "" {
				denyJSON(w, http.StatusUnauthorized, "authentication required")
				return
			}

			claims, err := auth.ParseToken(secret, cookie.Value)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ac := auth.AuthContext{
				UserID: claims.UserID,
				Role:   claims.Role,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated user has the ADMIN role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			denyJSON(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
