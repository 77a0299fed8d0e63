package directory

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	dErrors "appraiser-gateway/pkg/domain-errors"
)

// Verifier checks a claimed identity against the organizational directory.
// It is a read-only lookup: a miss is a normal outcome (CodeNotFound), and
// only channel failures are errors in the infrastructure sense
// (CodeUnavailable).
type Verifier struct {
	client Client
	cache  RegistrationCache
	logger *slog.Logger
	tracer trace.Tracer
}

type VerifierOption func(*Verifier)

func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// WithCache installs a read-through registration cache. A nil cache disables
// caching.
func WithCache(cache RegistrationCache) VerifierOption {
	return func(v *Verifier) {
		v.cache = cache
	}
}

func NewVerifier(client Client, opts ...VerifierOption) (*Verifier, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "directory client is required")
	}
	v := &Verifier{
		client: client,
		logger: slog.Default(),
		tracer: otel.Tracer("appraiser-gateway/directory"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify resolves a ClaimedIdentity into a BoundRegistration.
//
// Input constraints: the name must be non-empty after trimming and both unit
// ids must be non-zero. Branch-belongs-to-bank filtering is the selection
// collaborator's precondition and is not re-validated here beyond existence.
func (v *Verifier) Verify(ctx context.Context, identity ClaimedIdentity) (BoundRegistration, error) {
	identity = identity.Normalized()
	if identity.Name == "" {
		return BoundRegistration{}, dErrors.New(dErrors.CodeBadRequest, "name is required")
	}
	if identity.Unit.IsZero() {
		return BoundRegistration{}, dErrors.New(dErrors.CodeBadRequest, "bank and branch selection is required")
	}

	ctx, span := v.tracer.Start(ctx, "directory.verify",
		trace.WithAttributes(
			attribute.Int64("bank_id", identity.Unit.BankID),
			attribute.Int64("branch_id", identity.Unit.BranchID),
		))
	defer span.End()

	if v.cache != nil {
		if reg, ok := v.cache.Get(ctx, identity.Name, identity.Unit); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return reg, nil
		}
	}

	reg, err := v.client.Lookup(ctx, identity.Name, identity.Unit)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			v.logger.InfoContext(ctx, "claimed identity not in directory",
				"bank_id", identity.Unit.BankID,
				"branch_id", identity.Unit.BranchID,
			)
			return BoundRegistration{}, err
		}
		return BoundRegistration{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "directory lookup failed")
	}

	// Exact, case-insensitive match on name within the unit; anything else
	// the directory returned is treated as a miss, never fuzz-accepted.
	if !strings.EqualFold(reg.Name, identity.Name) {
		return BoundRegistration{}, dErrors.New(dErrors.CodeNotFound, "appraiser not registered")
	}

	if v.cache != nil {
		v.cache.Put(ctx, identity.Name, identity.Unit, reg)
	}
	return reg, nil
}
