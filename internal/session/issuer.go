package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// TxRunner is implemented by stores that can scope several calls to one
// transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Issuer creates a session and binds the identified appraiser to it in one
// all-or-nothing operation. Transactional stores commit both writes
// together; others get compensation, so callers never observe a
// partially-bound session either way.
type Issuer struct {
	store  Store
	tokens *TokenService
	logger *slog.Logger
	tracer trace.Tracer
}

type IssuerOption func(*Issuer)

func WithLogger(logger *slog.Logger) IssuerOption {
	return func(i *Issuer) {
		i.logger = logger
	}
}

func NewIssuer(store Store, tokens *TokenService, opts ...IssuerOption) (*Issuer, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}

	i := &Issuer{
		store:  store,
		tokens: tokens,
		logger: slog.Default(),
		tracer: otel.Tracer("appraiser-gateway/session"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue persists the identification result as a session and returns a handle
// with a signed access token. The unit is the bank/branch the identification
// was verified against.
func (i *Issuer) Issue(ctx context.Context, profile biometric.Profile, unit directory.OrgUnitRef, evidence biometric.CapturedImage) (Handle, error) {
	ctx, span := i.tracer.Start(ctx, "session.issue",
		trace.WithAttributes(attribute.String("profile_id", profile.ID.String())))
	defer span.End()

	if profile.ID.IsNil() || profile.RegistrationID.IsNil() {
		return Handle{}, dErrors.New(dErrors.CodeBadRequest, "identified profile is required")
	}

	now := time.Now()
	appraiser := AppraiserRecord{
		ProfileID:            profile.ID,
		RegistrationID:       profile.RegistrationID,
		Name:                 profile.Name,
		Email:                profile.Email,
		Phone:                profile.Phone,
		Organization:         unit,
		AppraisalCount:       profile.AppraisalCount,
		IdentificationMethod: MethodBiometric,
		IdentifiedAt:         now,
		EvidenceImage:        evidence.Payload,
	}

	sessionID, err := i.createAndBind(ctx, appraiser)
	if err != nil {
		return Handle{}, err
	}

	token, expiresAt, err := i.tokens.GenerateToken(sessionID, appraiser)
	if err != nil {
		return Handle{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}

	i.logger.InfoContext(ctx, "session issued",
		"session_id", sessionID.String(),
		"registration_id", appraiser.RegistrationID.String(),
	)
	span.SetAttributes(attribute.String("session_id", sessionID.String()))

	return Handle{
		ID:        sessionID,
		Appraiser: appraiser,
		Token:     token,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// createAndBind persists the session and its appraiser record atomically.
// Stores backed by a database run both writes in one transaction; other
// stores fall back to discarding the session when binding fails.
func (i *Issuer) createAndBind(ctx context.Context, appraiser AppraiserRecord) (id.SessionID, error) {
	if runner, ok := i.store.(TxRunner); ok {
		var sessionID id.SessionID
		err := runner.RunInTx(ctx, func(ctx context.Context) error {
			var err error
			sessionID, err = i.store.Create(ctx)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "session creation failed")
			}
			if err := i.store.Bind(ctx, sessionID, appraiser); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "profile binding failed")
			}
			return nil
		})
		if err != nil {
			return id.SessionID{}, err
		}
		return sessionID, nil
	}

	sessionID, err := i.store.Create(ctx)
	if err != nil {
		return id.SessionID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "session creation failed")
	}
	if err := i.store.Bind(ctx, sessionID, appraiser); err != nil {
		// The created session must not survive a failed binding.
		if delErr := i.store.Delete(ctx, sessionID); delErr != nil {
			i.logger.ErrorContext(ctx, "failed to discard unbound session",
				"session_id", sessionID.String(),
				"error", delErr.Error(),
			)
		}
		return id.SessionID{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "profile binding failed")
	}
	return sessionID, nil
}
