package api

import (
	"context"
	"net/http"
	"strings"

	"deepvision-backend/internal/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// RequireAuth verifies the Authorization bearer token and injects the
// caller's claims into the request context.
func RequireAuth(signer *auth.Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := signer.Verify(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

func callerClaims(r *http.Request) (auth.Claims, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return auth.Claims{}, CodedErrorf(http.StatusUnauthorized, "unauthorized")
	}
	return claims, nil
}

// LimitRequestBody caps request payload size so oversized image uploads fail
// with a distinct 413 instead of a generic server error.
func LimitRequestBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
