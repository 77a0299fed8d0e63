package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/identify"
	"appraiser-gateway/internal/platform/middleware"
	"appraiser-gateway/internal/session"
	id "appraiser-gateway/pkg/domain"
	"appraiser-gateway/pkg/platform/httputil"
)

// IdentificationService defines the workflow operations the transport needs.
type IdentificationService interface {
	Start(ctx context.Context, cfg identify.AttemptConfig) identify.Snapshot
	SubmitIdentity(ctx context.Context, attemptID id.AttemptID, identity directory.ClaimedIdentity) (directory.BoundRegistration, error)
	SubmitCapture(ctx context.Context, attemptID id.AttemptID, capture biometric.CapturedImage) (identify.Decision, error)
	IssueSession(ctx context.Context, attemptID id.AttemptID) (session.Handle, error)
	Get(attemptID id.AttemptID) (identify.Snapshot, error)
	Progress(attemptID id.AttemptID) ([]identify.ProgressEvent, error)
	Cancel(ctx context.Context, attemptID id.AttemptID) error
}

// IdentifyHandler exposes the identification workflow over HTTP.
type IdentifyHandler struct {
	workflow IdentificationService
	logger   *slog.Logger
}

func NewIdentifyHandler(workflow IdentificationService, logger *slog.Logger) *IdentifyHandler {
	return &IdentifyHandler{workflow: workflow, logger: logger}
}

// Register mounts the attempt endpoints on the router.
func (h *IdentifyHandler) Register(r chi.Router) {
	r.Post("/api/attempts", h.handleStart)
	r.Get("/api/attempts/{attemptID}", h.handleGet)
	r.Get("/api/attempts/{attemptID}/events", h.handleEvents)
	r.Post("/api/attempts/{attemptID}/identity", h.handleIdentity)
	r.Post("/api/attempts/{attemptID}/capture", h.handleCapture)
	r.Post("/api/attempts/{attemptID}/session", h.handleIssueSession)
	r.Delete("/api/attempts/{attemptID}", h.handleCancel)
}

type identityRequest struct {
	Name     string `json:"name"`
	BankID   int64  `json:"bank_id"`
	BranchID int64  `json:"branch_id"`
}

type captureRequest struct {
	Image      string    `json:"image"`
	CapturedAt time.Time `json:"captured_at"`
}

func (h *IdentifyHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	cfg, ok := httputil.DecodeAndPrepare[identify.AttemptConfig](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	snapshot := h.workflow.Start(ctx, cfg)

	h.logger.InfoContext(ctx, "attempt started",
		"request_id", requestID,
		"attempt_id", snapshot.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, snapshot)
}

func (h *IdentifyHandler) handleIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[identityRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	registration, err := h.workflow.SubmitIdentity(ctx, attemptID, directory.ClaimedIdentity{
		Name: req.Name,
		Unit: directory.OrgUnitRef{BankID: req.BankID, BranchID: req.BranchID},
	})
	if err != nil {
		h.logger.WarnContext(ctx, "identity verification failed",
			"request_id", requestID,
			"attempt_id", attemptID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, registration)
}

func (h *IdentifyHandler) handleCapture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[captureRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	capturedAt := req.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now()
	}

	decision, err := h.workflow.SubmitCapture(ctx, attemptID, biometric.CapturedImage{
		Payload:    req.Image,
		CapturedAt: capturedAt,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "capture resolved",
		"request_id", requestID,
		"attempt_id", attemptID.String(),
		"decision", string(decision.Kind),
	)
	httputil.WriteJSON(w, http.StatusOK, decision)
}

func (h *IdentifyHandler) handleIssueSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	handle, err := h.workflow.IssueSession(ctx, attemptID)
	if err != nil {
		h.logger.WarnContext(ctx, "session issuance failed",
			"request_id", requestID,
			"attempt_id", attemptID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, handle)
}

func (h *IdentifyHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	snapshot, err := h.workflow.Get(attemptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *IdentifyHandler) handleEvents(w http.ResponseWriter, r *http.Request) {
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.workflow.Progress(attemptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]identify.ProgressEvent{"events": events})
}

func (h *IdentifyHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.workflow.Cancel(r.Context(), attemptID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
