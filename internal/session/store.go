package session

import (
	"context"

	id "appraiser-gateway/pkg/domain"
)

// Store persists session records. Creation and binding are separate
// operations; the issuer composes them into one all-or-nothing step.
type Store interface {
	// Create opens an empty session row and returns its id.
	Create(ctx context.Context) (id.SessionID, error)

	// Bind attaches the appraiser record to an existing session.
	Bind(ctx context.Context, sessionID id.SessionID, appraiser AppraiserRecord) error

	// Get returns the session record, bound or not.
	Get(ctx context.Context, sessionID id.SessionID) (Record, error)

	// Delete removes the session. Used to discard a created-but-unbound
	// session after a binding failure.
	Delete(ctx context.Context, sessionID id.SessionID) error
}
