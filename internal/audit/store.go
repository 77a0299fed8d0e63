package audit

import (
	"context"
	"sync"

	id "appraiser-gateway/pkg/domain"
)

// Store persists audit events. Append-only by contract.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByAttempt(ctx context.Context, attemptID id.AttemptID) ([]Event, error)
}

// InMemoryStore keeps events in process for development and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByAttempt(_ context.Context, attemptID id.AttemptID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.AttemptID == attemptID {
			out = append(out, e)
		}
	}
	return out, nil
}
