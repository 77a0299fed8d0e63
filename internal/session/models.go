package session

import (
	"time"

	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
)

// MethodBiometric is the only identification method this service issues
// sessions for.
const MethodBiometric = "biometric"

// AppraiserRecord is the profile binding persisted against a session after a
// successful identification. This is also the shape handed back to clients
// for downstream appraisal stages.
type AppraiserRecord struct {
	ProfileID            id.ProfileID      `json:"id"`
	RegistrationID       id.RegistrationID `json:"registration_id"`
	Name                 string            `json:"name"`
	Email                string            `json:"email"`
	Phone                string            `json:"phone"`

	// Organization is the bank/branch the registration was verified
	// against; appraisal reports are filed under it.
	Organization directory.OrgUnitRef `json:"organization_ref"`

	AppraisalCount       int       `json:"appraisal_count"`
	IdentificationMethod string    `json:"identification_method"`
	IdentifiedAt         time.Time `json:"identification_timestamp"`

	// EvidenceImage is the capture that produced the match, retained with
	// the binding.
	EvidenceImage string `json:"evidence_image,omitempty"`
}

// Record is one session row: created first, bound to an appraiser second.
type Record struct {
	ID        id.SessionID     `json:"session_id"`
	Appraiser *AppraiserRecord `json:"appraiser,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Bound reports whether the session carries an appraiser binding.
func (r Record) Bound() bool {
	return r.Appraiser != nil
}

// Handle is what the issuer returns to the caller on success.
type Handle struct {
	ID        id.SessionID    `json:"session_id"`
	Appraiser AppraiserRecord `json:"appraiser"`
	Token     string          `json:"access_token"`
	IssuedAt  time.Time       `json:"issued_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}
