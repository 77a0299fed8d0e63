package identify

import "time"

// Progress stages. Advisory feedback for the presentation layer; they carry
// no correctness weight and never influence transitions.
const (
	StageStarted            = "started"
	StageVerifyingIdentity  = "verifying_identity"
	StageIdentityVerified   = "identity_verified"
	StageMatchingFace       = "matching_face"
	StageResolved           = "resolved"
	StageAwaitingNewCapture = "awaiting_new_capture"
)

// ProgressEvent is one entry in an attempt's append-only progress stream.
type ProgressEvent struct {
	Stage   string    `json:"stage"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (a *Attempt) recordProgress(stage, message string) {
	a.events = append(a.events, ProgressEvent{
		Stage:   stage,
		Message: message,
		At:      time.Now(),
	})
}
