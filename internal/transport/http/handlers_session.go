package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraiser-gateway/internal/platform/middleware"
	"appraiser-gateway/internal/session"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
	"appraiser-gateway/pkg/platform/httputil"
)

// SessionReader looks up issued sessions.
type SessionReader interface {
	Get(ctx context.Context, sessionID id.SessionID) (session.Record, error)
}

// SessionHandler exposes issued sessions to authenticated callers. Mounted
// behind the session-token middleware.
type SessionHandler struct {
	sessions SessionReader
	logger   *slog.Logger
}

func NewSessionHandler(sessions SessionReader, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// Register mounts the session endpoints on the router.
func (h *SessionHandler) Register(r chi.Router) {
	r.Get("/api/session/{sessionID}", h.handleGet)
}

func (h *SessionHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// A token only grants access to its own session.
	if middleware.GetSessionID(ctx) != sessionID.String() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "token does not match session"))
		return
	}

	record, err := h.sessions.Get(ctx, sessionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}
