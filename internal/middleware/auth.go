package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/chatrelay/chatrelay/internal/auth"
)

// TokenVerifier verifies a bearer token string into an identity.
// Implemented by *auth.TokenService.
type TokenVerifier interface {
	Verify(tokenString string) (*auth.Identity, error)
}

// RevocationChecker reports whether a token ID has been revoked.
// Implemented by *cache.Cache.
type RevocationChecker interface {
	IsTokenRevoked(ctx context.Context, tokenID string) bool
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	// Revocations may be nil; then only signature and expiry gate access.
	Revocations RevocationChecker
}

// Auth returns a middleware that gates requests on a valid bearer token.
// It extracts the token from the Authorization header, verifies it and
// injects the identity into the request context. Every failure mode gets
// the same 401 body so callers cannot tell which check rejected them.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			identity, err := cfg.Verifier.Verify(token)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			if cfg.Revocations != nil && cfg.Revocations.IsTokenRevoked(r.Context(), identity.TokenID) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "revoked_token"),
					slog.String("user_id", identity.UserID),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the token out of "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing token"}}`))
}
