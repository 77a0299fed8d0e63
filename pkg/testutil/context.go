package testutil

import (
	"net/http"

	"appraiser-gateway/internal/platform/middleware"
)

// WithSession adds validated session claims to the request context.
// This simulates what the session middleware would do for authenticated
// requests.
func WithSession(req *http.Request, sessionID, registrationID string) *http.Request {
	ctx := middleware.NewSessionContext(req.Context(), middleware.TokenClaims{
		SessionID:      sessionID,
		RegistrationID: registrationID,
	})
	return req.WithContext(ctx)
}
