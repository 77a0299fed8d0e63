package audit

import (
	"time"

	id "appraiser-gateway/pkg/domain"
)

// Actions emitted over the identification lifecycle.
const (
	ActionAttemptStarted        = "attempt_started"
	ActionIdentityVerified      = "identity_verified"
	ActionIdentityNotRegistered = "identity_not_registered"
	ActionAppraiserIdentified   = "appraiser_identified"
	ActionRegistrationRequired  = "registration_required"
	ActionCaptureRejected       = "capture_rejected"
	ActionMatcherUnavailable    = "matcher_unavailable"
	ActionSessionIssued         = "session_issued"
	ActionAttemptCancelled      = "attempt_cancelled"
	ActionAppraiserRegistered   = "appraiser_registered"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	AttemptID id.AttemptID
	SessionID id.SessionID
	Action    string
	Reason    string
}
