package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/nk-nexus/order-stock-api/internal/auth"
)

type contextKey string

const claimsContextKey contextKey = "claims"

func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// Authenticate validates the bearer token and injects its claims. The
// owner id inside scopes every order query downstream.
func Authenticate(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeJSON(w, http.StatusUnauthorized, errBody("missing bearer token"))
				return
			}
			claims, err := jwtService.ValidateToken(token)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errBody("invalid token"))
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff gates privileged routes; CUSTOMER tokens are rejected.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFrom(r.Context())
		if c == nil || !c.Staff() {
			writeJSON(w, http.StatusForbidden, errBody("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return c
}
