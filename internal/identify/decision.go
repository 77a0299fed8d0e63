package identify

import (
	"appraiser-gateway/internal/biometric"
)

// State names the position of an attempt in the identification sequence.
type State string

const (
	StateAwaitingIdentity State = "awaiting_identity"
	StateAwaitingCapture  State = "awaiting_capture"
	StateVerifying        State = "verifying"
	StateResolved         State = "resolved"
)

// DecisionKind discriminates the terminal output of an attempt.
type DecisionKind string

const (
	DecisionIdentified           DecisionKind = "identified"
	DecisionRegistrationRequired DecisionKind = "registration_required"
	DecisionRejected             DecisionKind = "rejected"
)

// RejectionKind classifies why an attempt step was rejected.
type RejectionKind string

const (
	RejectNotRegistered       RejectionKind = "not_registered"
	RejectCaptureQuality      RejectionKind = "capture_quality"
	RejectServiceUnavailable  RejectionKind = "service_unavailable"
	RejectMissingRegistration RejectionKind = "missing_registration"
)

// Decision is the resolution of one capture submission. Identified and
// RegistrationRequired are terminal for the attempt; Rejected resets the
// attempt to await a fresh capture with the same bound registration.
type Decision struct {
	Kind DecisionKind `json:"kind"`

	// Profile is set for DecisionIdentified.
	Profile *biometric.Profile `json:"profile,omitempty"`

	// Confidence is the accepted match percentage for DecisionIdentified.
	Confidence int `json:"confidence,omitempty"`

	// Capture is retained for DecisionRegistrationRequired so the
	// registration flow can reuse the evidence image.
	Capture *biometric.CapturedImage `json:"-"`

	// Rejection is set for DecisionRejected.
	Rejection RejectionKind `json:"rejection,omitempty"`

	// Reason is human-readable for every non-identified decision.
	Reason string `json:"reason,omitempty"`
}

// Terminal reports whether this decision ends the attempt.
func (d Decision) Terminal() bool {
	return d.Kind == DecisionIdentified || d.Kind == DecisionRegistrationRequired
}

// Retryable reports whether the operator can retry with a new capture.
func (d Decision) Retryable() bool {
	return d.Kind == DecisionRejected &&
		(d.Rejection == RejectCaptureQuality || d.Rejection == RejectServiceUnavailable)
}
