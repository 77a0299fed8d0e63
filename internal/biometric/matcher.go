package biometric

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// DefaultThreshold is the acceptance confidence percentage. Nominal matches
// below it are classified as not-matched to guard against low-confidence
// false positives at the workflow boundary.
const DefaultThreshold = 50

// Matcher interprets the matching service's structured responses into
// normalized outcomes. One submission per capture; no retries here.
type Matcher struct {
	client    ServiceClient
	threshold int
	logger    *slog.Logger
	tracer    trace.Tracer
}

type MatcherOption func(*Matcher)

func WithLogger(logger *slog.Logger) MatcherOption {
	return func(m *Matcher) {
		m.logger = logger
	}
}

// WithThreshold overrides the acceptance threshold. Values outside [0,100]
// are clamped.
func WithThreshold(threshold int) MatcherOption {
	return func(m *Matcher) {
		m.threshold = clamp(threshold)
	}
}

func NewMatcher(client ServiceClient, opts ...MatcherOption) (*Matcher, error) {
	if client == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "matching service client is required")
	}
	m := &Matcher{
		client:    client,
		threshold: DefaultThreshold,
		logger:    slog.Default(),
		tracer:    otel.Tracer("appraiser-gateway/biometric"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Match submits the capture against the bound registration and classifies
// the service's answer.
//
// Classification priority:
//  1. transport fault                       -> service_unavailable
//  2. error tag "no_face_detected"          -> detection_failed
//  3. error tag "multiple_faces"            -> ambiguous_detection
//  4. any other error tag                   -> not_matched (graceful degrade)
//  5. matched flag with identity payload    -> matched
//  6. nominal match below the threshold     -> not_matched
//  7. anything else                         -> not_matched
//
// Errors are returned only for violated preconditions; every service answer,
// including outages, is expressed as an outcome.
func (m *Matcher) Match(ctx context.Context, image CapturedImage, registration directory.BoundRegistration) (MatchOutcome, error) {
	if image.IsEmpty() {
		return MatchOutcome{}, dErrors.New(dErrors.CodeBadRequest, "captured image is required")
	}
	if registration.IsZero() {
		return MatchOutcome{}, dErrors.New(dErrors.CodeBadRequest, "bound registration is required")
	}

	ctx, span := m.tracer.Start(ctx, "biometric.match",
		trace.WithAttributes(attribute.String("registration_id", registration.ID.String())))
	defer span.End()

	resp, err := m.client.Submit(ctx, image, registration)
	if err != nil {
		m.logger.WarnContext(ctx, "matching service fault",
			"error", err.Error(),
			"registration_id", registration.ID.String(),
		)
		return MatchOutcome{
			Kind:   OutcomeServiceUnavailable,
			Reason: "face matching service is unavailable, try again",
		}, nil
	}

	outcome := m.classify(resp)
	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))
	return outcome, nil
}

func (m *Matcher) classify(resp Response) MatchOutcome {
	switch resp.ErrorTag {
	case "":
		// fall through to match interpretation
	case "no_face_detected":
		return MatchOutcome{
			Kind:   OutcomeDetectionFailed,
			Reason: ReasonNoFace,
		}
	case "multiple_faces":
		return MatchOutcome{
			Kind:   OutcomeAmbiguousDetection,
			Reason: ReasonMultipleFaces,
		}
	default:
		// Unspecified upstream failures degrade to the unknown-person
		// path instead of hard-failing the attempt.
		return MatchOutcome{
			Kind:   OutcomeNotMatched,
			Reason: fmt.Sprintf("matching service reported: %s", resp.ErrorTag),
		}
	}

	confidence := clamp(int(resp.Confidence))

	if resp.Matched && resp.Profile != nil {
		if confidence < m.threshold {
			// The service's binary flag alone is not trusted.
			return MatchOutcome{
				Kind:   OutcomeNotMatched,
				Reason: fmt.Sprintf("match confidence %d%% is below the %d%% acceptance threshold", confidence, m.threshold),
			}
		}
		return MatchOutcome{
			Kind:       OutcomeMatched,
			Confidence: confidence,
			Profile: &Profile{
				ID:             id.ProfileID(resp.Profile.ID),
				RegistrationID: id.RegistrationID(resp.Profile.RegistrationID),
				Name:           resp.Profile.Name,
				Email:          resp.Profile.Email,
				Phone:          resp.Profile.Phone,
				AppraisalCount: resp.Profile.AppraisalCount,
			},
		}
	}

	return MatchOutcome{
		Kind:   OutcomeNotMatched,
		Reason: "no matching profile in the biometric records",
	}
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
