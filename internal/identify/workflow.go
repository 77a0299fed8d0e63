package identify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appraiser-gateway/internal/audit"
	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/platform/metrics"
	"appraiser-gateway/internal/session"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// DirectoryVerifier resolves a claimed identity to a bound registration.
type DirectoryVerifier interface {
	Verify(ctx context.Context, identity directory.ClaimedIdentity) (directory.BoundRegistration, error)
}

// BiometricMatcher classifies a capture against a bound registration.
type BiometricMatcher interface {
	Match(ctx context.Context, image biometric.CapturedImage, registration directory.BoundRegistration) (biometric.MatchOutcome, error)
}

// SessionIssuer turns an identified profile plus its verified organization
// and evidence into a session.
type SessionIssuer interface {
	Issue(ctx context.Context, profile biometric.Profile, unit directory.OrgUnitRef, evidence biometric.CapturedImage) (session.Handle, error)
}

// AuditPublisher records lifecycle events. Emission failures never fail the
// workflow.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Workflow owns all identification attempts and sequences
// directory verification, biometric matching, and outcome resolution.
// Registration always precedes biometrics; the Verifying state is the
// mutual-exclusion mechanism for capture submissions.
type Workflow struct {
	verifier DirectoryVerifier
	matcher  BiometricMatcher
	issuer   SessionIssuer
	audit    AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer

	mu       sync.RWMutex
	attempts map[id.AttemptID]*Attempt
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Workflow) {
		w.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(w *Workflow) {
		w.audit = publisher
	}
}

// WithSessionIssuer enables IssueSession. Without it the workflow still
// resolves decisions but cannot mint sessions.
func WithSessionIssuer(issuer SessionIssuer) Option {
	return func(w *Workflow) {
		w.issuer = issuer
	}
}

func New(verifier DirectoryVerifier, matcher BiometricMatcher, opts ...Option) (*Workflow, error) {
	if verifier == nil {
		return nil, fmt.Errorf("directory verifier is required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("biometric matcher is required")
	}

	w := &Workflow{
		verifier: verifier,
		matcher:  matcher,
		logger:   slog.Default(),
		tracer:   otel.Tracer("appraiser-gateway/identify"),
		attempts: make(map[id.AttemptID]*Attempt),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start opens a new attempt with explicit per-attempt configuration.
func (w *Workflow) Start(ctx context.Context, cfg AttemptConfig) Snapshot {
	a := newAttempt(cfg)

	w.mu.Lock()
	w.attempts[a.ID] = a
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.AttemptsStarted.Inc()
	}
	w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionAttemptStarted})

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// SubmitIdentity runs directory verification for the attempt. On success the
// attempt advances to AwaitingCapture with the registration bound; a miss
// keeps the attempt in AwaitingIdentity and consumes no capture.
func (w *Workflow) SubmitIdentity(ctx context.Context, attemptID id.AttemptID, identity directory.ClaimedIdentity) (directory.BoundRegistration, error) {
	a, err := w.attempt(attemptID)
	if err != nil {
		return directory.BoundRegistration{}, err
	}

	ctx, span := w.tracer.Start(ctx, "identify.submit_identity",
		trace.WithAttributes(attribute.String("attempt_id", attemptID.String())))
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateAwaitingIdentity {
		return directory.BoundRegistration{}, dErrors.Newf(dErrors.CodeConflict,
			"identity cannot be submitted in state %q", a.state)
	}

	a.recordProgress(StageVerifyingIdentity, "checking registration with the directory")

	reg, err := w.verifier.Verify(ctx, identity)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			reason := "not registered - registration requires administrative action"
			a.lastRejection = &Decision{
				Kind:      DecisionRejected,
				Rejection: RejectNotRegistered,
				Reason:    reason,
			}
			w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionIdentityNotRegistered, Reason: reason})
			return directory.BoundRegistration{}, dErrors.New(dErrors.CodeNotFound, reason)
		}
		return directory.BoundRegistration{}, err
	}

	a.identity = identity.Normalized()
	a.registration = &reg
	a.state = StateAwaitingCapture
	a.recordProgress(StageIdentityVerified, "registration confirmed, awaiting capture")
	w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionIdentityVerified})
	return reg, nil
}

// SubmitCapture runs the biometric comparison for the attempt and resolves a
// decision. At most one capture may be in flight; submissions during
// Verifying are rejected without side effects.
func (w *Workflow) SubmitCapture(ctx context.Context, attemptID id.AttemptID, capture biometric.CapturedImage) (Decision, error) {
	a, err := w.attempt(attemptID)
	if err != nil {
		return Decision{}, err
	}

	ctx, span := w.tracer.Start(ctx, "identify.submit_capture",
		trace.WithAttributes(attribute.String("attempt_id", attemptID.String())))
	defer span.End()

	a.mu.Lock()
	switch a.state {
	case StateVerifying:
		a.mu.Unlock()
		return Decision{}, dErrors.New(dErrors.CodeConflict, "a capture is already being verified for this attempt")
	case StateResolved:
		a.mu.Unlock()
		return Decision{}, dErrors.New(dErrors.CodeConflict, "attempt is already resolved")
	case StateAwaitingIdentity:
		a.mu.Unlock()
		return Decision{}, dErrors.New(dErrors.CodeConflict, "identity must be verified before submitting a capture")
	}
	if capture.IsEmpty() {
		a.mu.Unlock()
		return Decision{}, dErrors.New(dErrors.CodeBadRequest, "captured image is required")
	}

	// Entering Verifying re-validates the bound registration for this
	// attempt before any matcher call.
	if a.registration == nil {
		decision := Decision{
			Kind:      DecisionRejected,
			Rejection: RejectMissingRegistration,
			Reason:    "no bound registration for this attempt",
		}
		a.decision = &decision
		a.state = StateResolved
		a.recordProgress(StageResolved, decision.Reason)
		a.mu.Unlock()
		return decision, nil
	}

	// A new capture invalidates the previous one.
	c := capture
	a.capture = &c
	registration := *a.registration
	a.state = StateVerifying
	a.recordProgress(StageMatchingFace, "comparing capture against the stored profile")
	a.mu.Unlock()

	outcome, err := w.matcher.Match(ctx, capture, registration)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancelled {
		return Decision{}, dErrors.New(dErrors.CodeNotFound, "attempt was cancelled")
	}
	if err != nil {
		// Precondition violation inside the matcher; the capture slot
		// reopens, the registration stays bound.
		a.state = StateAwaitingCapture
		return Decision{}, err
	}

	if w.metrics != nil {
		w.metrics.ObserveMatchOutcome(string(outcome.Kind))
	}
	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))

	return w.resolveLocked(ctx, a, outcome), nil
}

// resolveLocked maps a match outcome onto the attempt's next state and
// decision. Caller holds a.mu.
func (w *Workflow) resolveLocked(ctx context.Context, a *Attempt, outcome biometric.MatchOutcome) Decision {
	switch outcome.Kind {
	case biometric.OutcomeMatched:
		decision := Decision{
			Kind:       DecisionIdentified,
			Profile:    outcome.Profile,
			Confidence: outcome.Confidence,
		}
		a.decision = &decision
		a.state = StateResolved
		a.recordProgress(StageResolved, fmt.Sprintf("identified with %d%% confidence", outcome.Confidence))
		if w.metrics != nil {
			w.metrics.Identifications.Inc()
		}
		w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionAppraiserIdentified})
		return decision

	case biometric.OutcomeNotMatched:
		// No profile in the biometric records means a new appraiser, not
		// an authentication failure. The capture is retained for the
		// registration flow.
		decision := Decision{
			Kind:    DecisionRegistrationRequired,
			Capture: a.capture,
			Reason:  outcome.Reason,
		}
		a.decision = &decision
		a.state = StateResolved
		a.recordProgress(StageResolved, "no matching profile, registration required")
		w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionRegistrationRequired, Reason: outcome.Reason})
		return decision

	case biometric.OutcomeDetectionFailed, biometric.OutcomeAmbiguousDetection:
		// Capture-quality problem, not an identity problem. The bound
		// registration stays; the operator retries with a new capture.
		decision := Decision{
			Kind:      DecisionRejected,
			Rejection: RejectCaptureQuality,
			Reason:    captureQualityReason(outcome),
		}
		a.lastRejection = &decision
		a.state = StateAwaitingCapture
		a.recordProgress(StageAwaitingNewCapture, decision.Reason)
		w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionCaptureRejected, Reason: decision.Reason})
		return decision

	default: // biometric.OutcomeServiceUnavailable
		decision := Decision{
			Kind:      DecisionRejected,
			Rejection: RejectServiceUnavailable,
			Reason:    outcome.Reason,
		}
		a.lastRejection = &decision
		a.state = StateAwaitingCapture
		a.recordProgress(StageAwaitingNewCapture, decision.Reason)
		w.emit(ctx, audit.Event{AttemptID: a.ID, Action: audit.ActionMatcherUnavailable, Reason: decision.Reason})
		return decision
	}
}

func captureQualityReason(outcome biometric.MatchOutcome) string {
	switch outcome.Reason {
	case biometric.ReasonNoFace:
		return "no face detected in the capture, try again"
	case biometric.ReasonMultipleFaces:
		return "multiple faces detected in the capture, try again"
	default:
		return outcome.Reason
	}
}

// IssueSession mints a session for an identified attempt. Valid only from
// Resolved(Identified); no session is created otherwise.
func (w *Workflow) IssueSession(ctx context.Context, attemptID id.AttemptID) (session.Handle, error) {
	if w.issuer == nil {
		return session.Handle{}, dErrors.New(dErrors.CodeInternal, "session issuer is not configured")
	}
	a, err := w.attempt(attemptID)
	if err != nil {
		return session.Handle{}, err
	}

	ctx, span := w.tracer.Start(ctx, "identify.issue_session",
		trace.WithAttributes(attribute.String("attempt_id", attemptID.String())))
	defer span.End()

	a.mu.Lock()
	if a.state != StateResolved || a.decision == nil || a.decision.Kind != DecisionIdentified {
		a.mu.Unlock()
		return session.Handle{}, dErrors.New(dErrors.CodeConflict, "session issuance requires an identified attempt")
	}
	if a.sessionIssued {
		a.mu.Unlock()
		return session.Handle{}, dErrors.New(dErrors.CodeConflict, "a session was already issued for this attempt")
	}
	profile := *a.decision.Profile
	evidence := *a.capture
	var unit directory.OrgUnitRef
	if a.registration != nil {
		unit = a.registration.Unit
	}
	a.mu.Unlock()

	handle, err := w.issuer.Issue(ctx, profile, unit, evidence)
	if err != nil {
		return session.Handle{}, err
	}

	a.mu.Lock()
	a.sessionIssued = true
	a.mu.Unlock()

	if w.metrics != nil {
		w.metrics.SessionsIssued.Inc()
	}
	w.emit(ctx, audit.Event{AttemptID: a.ID, SessionID: handle.ID, Action: audit.ActionSessionIssued})
	return handle, nil
}

// Get returns a read-only snapshot of the attempt.
func (w *Workflow) Get(attemptID id.AttemptID) (Snapshot, error) {
	a, err := w.attempt(attemptID)
	if err != nil {
		return Snapshot{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(), nil
}

// Progress returns the attempt's append-only progress stream.
func (w *Workflow) Progress(attemptID id.AttemptID) ([]ProgressEvent, error) {
	a, err := w.attempt(attemptID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	events := make([]ProgressEvent, len(a.events))
	copy(events, a.events)
	return events, nil
}

// Cancel abandons an attempt before resolution and discards all transient
// state. No side effects reach the directory or the session store.
func (w *Workflow) Cancel(ctx context.Context, attemptID id.AttemptID) error {
	a, err := w.attempt(attemptID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if a.state == StateResolved {
		a.mu.Unlock()
		return dErrors.New(dErrors.CodeConflict, "attempt is already resolved")
	}
	a.cancelled = true
	a.identity = directory.ClaimedIdentity{}
	a.registration = nil
	a.capture = nil
	a.lastRejection = nil
	a.mu.Unlock()

	w.mu.Lock()
	delete(w.attempts, attemptID)
	w.mu.Unlock()

	w.emit(ctx, audit.Event{AttemptID: attemptID, Action: audit.ActionAttemptCancelled})
	return nil
}

func (w *Workflow) attempt(attemptID id.AttemptID) (*Attempt, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.attempts[attemptID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "unknown attempt")
	}
	return a, nil
}

func (w *Workflow) emit(ctx context.Context, event audit.Event) {
	if w.audit == nil {
		return
	}
	if err := w.audit.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit emission failed",
			"action", event.Action,
			"error", err.Error(),
		)
	}
}
