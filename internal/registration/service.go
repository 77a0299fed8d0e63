package registration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appraiser-gateway/internal/audit"
	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/platform/metrics"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// AuditPublisher records registration events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service registers new appraisers on behalf of an administrator and
// enrolls their face profile with the matching service. Enrollment failures
// degrade the registration instead of aborting it.
type Service struct {
	store    Store
	enroller biometric.Enroller
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

// WithEnroller enables face-profile enrollment on registration.
func WithEnroller(enroller biometric.Enroller) Option {
	return func(s *Service) {
		s.enroller = enroller
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("registration store is required")
	}

	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("appraiser-gateway/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates the registrar's scope, stores the appraiser, and
// attempts face enrollment with the submitted image.
func (s *Service) Register(ctx context.Context, registrar Registrar, req NewAppraiser) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "registration.register",
		trace.WithAttributes(attribute.String("registrar_role", string(registrar.Role))))
	defer span.End()

	unit, err := authorizeUnit(registrar, req.Unit)
	if err != nil {
		return Result{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "appraiser name is required")
	}
	if req.Email == "" {
		return Result{}, dErrors.New(dErrors.CodeBadRequest, "appraiser email is required")
	}

	registrationID, err := s.store.Insert(ctx, Appraiser{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
		Unit:  unit,
	})
	if err != nil {
		return Result{}, err
	}

	enrolled := s.enroll(ctx, registrationID, req.Image)

	appraiser, err := s.store.GetByID(ctx, registrationID)
	if err != nil {
		return Result{}, err
	}

	if s.metrics != nil {
		s.metrics.AppraisersCreated.Inc()
	}
	s.emit(ctx, audit.Event{
		Action: audit.ActionAppraiserRegistered,
		Reason: fmt.Sprintf("registration %s by %s", registrationID, registrar.Role),
	})
	s.logger.InfoContext(ctx, "appraiser registered",
		"registration_id", registrationID.String(),
		"registrar_role", string(registrar.Role),
		"face_enrolled", enrolled,
	)

	message := "appraiser saved with face profile"
	if !enrolled {
		message = "appraiser saved without face profile, biometric identification will not find them until re-enrollment"
	}
	return Result{
		Appraiser: appraiser,
		Enrolled:  enrolled,
		Message:   message,
	}, nil
}

// enroll is best-effort. Any failure leaves the registration valid without a
// face profile.
func (s *Service) enroll(ctx context.Context, registrationID id.RegistrationID, image biometric.CapturedImage) bool {
	if s.enroller == nil || image.IsEmpty() {
		return false
	}
	if err := s.enroller.Enroll(ctx, image, registrationID); err != nil {
		s.logger.WarnContext(ctx, "face enrollment failed, registering without face profile",
			"registration_id", registrationID.String(),
			"error", err.Error(),
		)
		return false
	}
	if err := s.store.SetFaceEnrolled(ctx, registrationID, true); err != nil {
		s.logger.WarnContext(ctx, "failed to record enrollment state",
			"registration_id", registrationID.String(),
			"error", err.Error(),
		)
		return false
	}
	return true
}

// Get returns a stored registration.
func (s *Service) Get(ctx context.Context, registrationID id.RegistrationID) (Appraiser, error) {
	return s.store.GetByID(ctx, registrationID)
}

// ListByUnit returns the appraisers registered under a bank/branch pair.
func (s *Service) ListByUnit(ctx context.Context, unit directory.OrgUnitRef) ([]Appraiser, error) {
	if unit.BankID == 0 || unit.BranchID == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "bank and branch are required")
	}
	return s.store.ListByUnit(ctx, unit.BankID, unit.BranchID)
}

// authorizeUnit applies role scoping: branch admins are pinned to their
// branch, bank admins to their bank. A zero requested unit inherits the
// registrar's scope where the role pins it.
func authorizeUnit(registrar Registrar, requested directory.OrgUnitRef) (directory.OrgUnitRef, error) {
	switch registrar.Role {
	case RoleBranchAdmin:
		if registrar.Unit.BranchID == 0 {
			return directory.OrgUnitRef{}, dErrors.New(dErrors.CodeBadRequest, "branch admin must have a branch")
		}
		if requested.BranchID != 0 && requested.BranchID != registrar.Unit.BranchID {
			return directory.OrgUnitRef{}, dErrors.New(dErrors.CodeForbidden, "branch admin can only register appraisers in their own branch")
		}
		return registrar.Unit, nil

	case RoleBankAdmin:
		if registrar.Unit.BankID == 0 {
			return directory.OrgUnitRef{}, dErrors.New(dErrors.CodeBadRequest, "bank admin must have a bank")
		}
		if requested.BankID != 0 && requested.BankID != registrar.Unit.BankID {
			return directory.OrgUnitRef{}, dErrors.New(dErrors.CodeForbidden, "bank admin can only register appraisers in their own bank")
		}
		unit := requested
		unit.BankID = registrar.Unit.BankID
		if unit.BranchID == 0 {
			unit.BranchID = registrar.Unit.BranchID
		}
		return unit, nil

	case RoleSuperAdmin:
		if requested.IsZero() {
			return directory.OrgUnitRef{}, dErrors.New(dErrors.CodeBadRequest, "bank and branch are required")
		}
		return requested, nil

	default:
		return directory.OrgUnitRef{}, dErrors.Newf(dErrors.CodeBadRequest, "invalid registrar role: %q", registrar.Role)
	}
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emission failed",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}
