package identify

import (
	"sync"
	"time"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
)

// AttemptConfig is the explicit per-attempt configuration. Capture-source
// hints and a remembered identity prefill travel here instead of ambient
// global state so attempts stay reentrant and testable.
type AttemptConfig struct {
	CameraDevice   string `json:"camera_device,omitempty"`
	RememberedName string `json:"remembered_name,omitempty"`
}

// Attempt is one full pass through the workflow for one claimed identity.
// All transient state lives here and is discarded on cancellation.
type Attempt struct {
	ID        id.AttemptID
	Config    AttemptConfig
	CreatedAt time.Time

	mu            sync.Mutex
	state         State
	identity      directory.ClaimedIdentity
	registration  *directory.BoundRegistration
	capture       *biometric.CapturedImage
	decision      *Decision
	lastRejection *Decision
	events        []ProgressEvent
	cancelled     bool
	sessionIssued bool
}

func newAttempt(cfg AttemptConfig) *Attempt {
	a := &Attempt{
		ID:        id.NewAttemptID(),
		Config:    cfg,
		CreatedAt: time.Now(),
		state:     StateAwaitingIdentity,
	}
	a.recordProgress(StageStarted, "identification attempt started")
	return a
}

// Snapshot is a read-only view of an attempt for transport.
type Snapshot struct {
	ID            id.AttemptID                 `json:"id"`
	State         State                        `json:"state"`
	Registration  *directory.BoundRegistration `json:"registration,omitempty"`
	Decision      *Decision                    `json:"decision,omitempty"`
	LastRejection *Decision                    `json:"last_rejection,omitempty"`
	CreatedAt     time.Time                    `json:"created_at"`
}

func (a *Attempt) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        a.ID,
		State:     a.state,
		CreatedAt: a.CreatedAt,
	}
	if a.registration != nil {
		reg := *a.registration
		snap.Registration = &reg
	}
	if a.decision != nil {
		dec := *a.decision
		snap.Decision = &dec
	}
	if a.lastRejection != nil {
		rej := *a.lastRejection
		snap.LastRejection = &rej
	}
	return snap
}
