package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/platform/middleware"
	"appraiser-gateway/internal/registration"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
	"appraiser-gateway/pkg/platform/httputil"
)

// RegistrationService defines the registration operations the transport
// needs.
type RegistrationService interface {
	Register(ctx context.Context, registrar registration.Registrar, req registration.NewAppraiser) (registration.Result, error)
	Get(ctx context.Context, registrationID id.RegistrationID) (registration.Appraiser, error)
	ListByUnit(ctx context.Context, unit directory.OrgUnitRef) ([]registration.Appraiser, error)
}

// RegistrationHandler exposes appraiser registration over HTTP.
type RegistrationHandler struct {
	service RegistrationService
	logger  *slog.Logger
}

func NewRegistrationHandler(service RegistrationService, logger *slog.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: service, logger: logger}
}

// Register mounts the appraiser endpoints on the router.
func (h *RegistrationHandler) Register(r chi.Router) {
	r.Post("/api/appraiser", h.handleCreate)
	r.Get("/api/appraiser", h.handleList)
	r.Get("/api/appraiser/{registrationID}", h.handleGet)
}

type createAppraiserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Image string `json:"image"`

	BankID   int64 `json:"bank_id"`
	BranchID int64 `json:"branch_id"`

	RegistrarRole     string `json:"registrar_role"`
	RegistrarBankID   int64  `json:"registrar_bank_id"`
	RegistrarBranchID int64  `json:"registrar_branch_id"`
}

func (h *RegistrationHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[createAppraiserRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	registrar := registration.Registrar{
		Role: registration.Role(req.RegistrarRole),
		Unit: directory.OrgUnitRef{BankID: req.RegistrarBankID, BranchID: req.RegistrarBranchID},
	}
	newAppraiser := registration.NewAppraiser{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Unit:  directory.OrgUnitRef{BankID: req.BankID, BranchID: req.BranchID},
	}
	if req.Image != "" {
		newAppraiser.Image = biometric.CapturedImage{Payload: req.Image, CapturedAt: time.Now()}
	}

	result, err := h.service.Register(ctx, registrar, newAppraiser)
	if err != nil {
		h.logger.WarnContext(ctx, "appraiser registration failed",
			"request_id", requestID,
			"registrar_role", req.RegistrarRole,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "appraiser registered",
		"request_id", requestID,
		"registration_id", result.Appraiser.ID.String(),
		"face_enrolled", result.Enrolled,
	)
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *RegistrationHandler) handleList(w http.ResponseWriter, r *http.Request) {
	unit := directory.OrgUnitRef{
		BankID:   queryInt64(r, "bank_id"),
		BranchID: queryInt64(r, "branch_id"),
	}

	appraisers, err := h.service.ListByUnit(r.Context(), unit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"appraisers": appraisers})
}

func queryInt64(r *http.Request, key string) int64 {
	parsed, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func (h *RegistrationHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "registrationID")
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "malformed registration id"))
		return
	}

	appraiser, err := h.service.Get(r.Context(), id.RegistrationID(parsed))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, appraiser)
}
