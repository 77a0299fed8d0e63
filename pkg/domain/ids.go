// Package domain defines typed identifier primitives shared across services.
// Constructing IDs through Parse functions at trust boundaries enforces
// validity; direct casting bypasses validation.
package domain

import (
	"fmt"

	"github.com/google/uuid"

	dErrors "appraiser-gateway/pkg/domain-errors"
)

// AttemptID identifies one identification attempt from submission to
// resolution.
type AttemptID uuid.UUID

// NewAttemptID returns a fresh random attempt identifier.
func NewAttemptID() AttemptID {
	return AttemptID(uuid.New())
}

// ParseAttemptID validates and returns an AttemptID from external input.
// Errors carry CodeInvalidInput for empty, malformed, or nil UUIDs.
func ParseAttemptID(s string) (AttemptID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return AttemptID(uuid.Nil), err
	}
	return AttemptID(u), nil
}

func (id AttemptID) String() string {
	return uuid.UUID(id).String()
}

func (id AttemptID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id AttemptID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *AttemptID) UnmarshalText(text []byte) error {
	parsed, err := ParseAttemptID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// SessionID identifies an appraisal session issued after identification.
type SessionID uuid.UUID

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.New())
}

// ParseSessionID validates and returns a SessionID from external input.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	if err != nil {
		return SessionID(uuid.Nil), err
	}
	return SessionID(u), nil
}

func (id SessionID) String() string {
	return uuid.UUID(id).String()
}

func (id SessionID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id SessionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *SessionID) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// parseUUID is the single validation path for UUID-backed IDs: must be a
// well-formed, non-nil UUID.
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be nil")
	}
	return u, nil
}

// RegistrationID is the directory's primary key for a registered appraiser.
type RegistrationID int64

func (id RegistrationID) IsNil() bool {
	return id == 0
}

func (id RegistrationID) String() string {
	return fmt.Sprintf("%d", int64(id))
}

// ProfileID is the biometric service's identifier for a stored face profile.
type ProfileID string

func (id ProfileID) IsNil() bool {
	return id == ""
}

func (id ProfileID) String() string {
	return string(id)
}
