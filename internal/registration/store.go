package registration

import (
	"context"
	"sort"
	"sync"
	"time"

	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// Store persists appraiser registrations.
type Store interface {
	Insert(ctx context.Context, appraiser Appraiser) (id.RegistrationID, error)
	GetByID(ctx context.Context, registrationID id.RegistrationID) (Appraiser, error)
	SetFaceEnrolled(ctx context.Context, registrationID id.RegistrationID, enrolled bool) error
	ListByUnit(ctx context.Context, bankID, branchID int64) ([]Appraiser, error)
}

// MemoryStore is an in-memory registration store for development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	appraisers map[id.RegistrationID]Appraiser
	emails     map[string]struct{}
	nextID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		appraisers: make(map[id.RegistrationID]Appraiser),
		emails:     make(map[string]struct{}),
		nextID:     1,
	}
}

func (s *MemoryStore) Insert(_ context.Context, appraiser Appraiser) (id.RegistrationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.emails[appraiser.Email]; exists {
		return 0, dErrors.New(dErrors.CodeConflict, "an appraiser with this email already exists")
	}

	appraiser.ID = id.RegistrationID(s.nextID)
	s.nextID++
	if appraiser.CreatedAt.IsZero() {
		appraiser.CreatedAt = time.Now()
	}
	s.appraisers[appraiser.ID] = appraiser
	s.emails[appraiser.Email] = struct{}{}
	return appraiser.ID, nil
}

func (s *MemoryStore) GetByID(_ context.Context, registrationID id.RegistrationID) (Appraiser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	appraiser, ok := s.appraisers[registrationID]
	if !ok {
		return Appraiser{}, dErrors.New(dErrors.CodeNotFound, "appraiser not found")
	}
	return appraiser, nil
}

func (s *MemoryStore) SetFaceEnrolled(_ context.Context, registrationID id.RegistrationID, enrolled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	appraiser, ok := s.appraisers[registrationID]
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "appraiser not found")
	}
	appraiser.FaceEnrolled = enrolled
	s.appraisers[registrationID] = appraiser
	return nil
}

func (s *MemoryStore) ListByUnit(_ context.Context, bankID, branchID int64) ([]Appraiser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Appraiser
	for _, appraiser := range s.appraisers {
		if appraiser.Unit.BankID == bankID && appraiser.Unit.BranchID == branchID {
			result = append(result, appraiser)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}
