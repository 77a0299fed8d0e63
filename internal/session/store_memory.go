package session

import (
	"context"
	"sync"
	"time"

	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// MemoryStore is an in-memory session store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[id.SessionID]Record),
	}
}

func (s *MemoryStore) Create(_ context.Context) (id.SessionID, error) {
	sessionID := id.NewSessionID()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = Record{
		ID:        sessionID,
		CreatedAt: time.Now(),
	}
	return sessionID, nil
}

func (s *MemoryStore) Bind(_ context.Context, sessionID id.SessionID, appraiser AppraiserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	a := appraiser
	record.Appraiser = &a
	s.sessions[sessionID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, sessionID id.SessionID) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.sessions[sessionID]
	if !ok {
		return Record{}, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return record, nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	delete(s.sessions, sessionID)
	return nil
}
