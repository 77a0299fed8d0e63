package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// TokenValidator validates a session access token.
type TokenValidator interface {
	ValidateToken(tokenString string) (*TokenClaims, error)
}

// TokenClaims represents the claims expected from the token validator.
type TokenClaims struct {
	SessionID      string
	RegistrationID string
	ProfileID      string
}

type contextKeySessionID struct{}
type contextKeyRegistrationID struct{}

// NewSessionContext returns a context carrying validated session claims, the
// same shape RequireSession produces. Intended for handler tests.
func NewSessionContext(ctx context.Context, claims TokenClaims) context.Context {
	ctx = context.WithValue(ctx, contextKeySessionID{}, claims.SessionID)
	return context.WithValue(ctx, contextKeyRegistrationID{}, claims.RegistrationID)
}

// GetSessionID retrieves the authenticated session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeySessionID{}).(string)
	if !ok {
		return ""
	}
	return id
}

// GetRegistrationID retrieves the authenticated registration ID from the
// context.
func GetRegistrationID(ctx context.Context) string {
	id, ok := ctx.Value(contextKeyRegistrationID{}).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireSession guards routes that may only be reached with a valid issued
// session token.
func RequireSession(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				unauthorized(w, r, logger, "missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "unauthorized access - invalid token",
					"error", err,
					"request_id", GetRequestID(r.Context()),
				)
				unauthorized(w, r, logger, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(NewSessionContext(r.Context(), *claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logger *slog.Logger, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	if _, err := w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`)); err != nil {
		logger.ErrorContext(r.Context(), "failed to write unauthorized response",
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	}
}
