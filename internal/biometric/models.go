package biometric

import (
	"time"

	id "appraiser-gateway/pkg/domain"
)

// CapturedImage is one still-image submission within an attempt. The payload
// is opaque to this service (base64 as delivered by the capture source).
type CapturedImage struct {
	Payload    string    `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}

func (c CapturedImage) IsEmpty() bool {
	return c.Payload == ""
}

// Profile is the identity payload the matching service returns for a stored
// face profile.
type Profile struct {
	ID             id.ProfileID      `json:"id"`
	RegistrationID id.RegistrationID `json:"registration_id"`
	Name           string            `json:"name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	AppraisalCount int               `json:"appraisal_count"`
}

// OutcomeKind discriminates a MatchOutcome.
type OutcomeKind string

const (
	OutcomeMatched            OutcomeKind = "matched"
	OutcomeNotMatched         OutcomeKind = "not_matched"
	OutcomeDetectionFailed    OutcomeKind = "detection_failed"
	OutcomeAmbiguousDetection OutcomeKind = "ambiguous_detection"
	OutcomeServiceUnavailable OutcomeKind = "service_unavailable"
)

// Detection failure reasons reported back to the operator.
const (
	ReasonNoFace        = "no_face"
	ReasonMultipleFaces = "multiple_faces"
)

// MatchOutcome is the normalized result of one matcher invocation. Produced
// once per submission, never mutated.
type MatchOutcome struct {
	Kind OutcomeKind

	// Profile and Confidence are set only for OutcomeMatched.
	Profile    *Profile
	Confidence int

	// Reason is a human-readable explanation for every non-matched kind,
	// including the numeric percentage for low-confidence rejections.
	Reason string
}

func (o MatchOutcome) Matched() bool {
	return o.Kind == OutcomeMatched
}
