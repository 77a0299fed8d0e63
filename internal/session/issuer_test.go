package session_test

//go:generate mockgen -source=store.go -destination=mocks/mocks.go -package=mocks Store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/session"
	"appraiser-gateway/internal/session/mocks"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// =============================================================================
// Session Issuer Test Suite
// =============================================================================
// Justification for unit tests: the issuer is the only writer of session
// state. Tests verify the all-or-nothing create+bind contract, cleanup of
// unbound sessions after a binding failure, and token contents.

type IssuerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	mockStore *mocks.MockStore
	tokens    *session.TokenService
	issuer    *session.Issuer
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.tokens = session.NewTokenService("test-signing-key", time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.issuer, _ = session.NewIssuer(s.mockStore, s.tokens, session.WithLogger(logger))
}

func (s *IssuerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func testProfile() biometric.Profile {
	return biometric.Profile{
		ID:             "prof-7",
		RegistrationID: 42,
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		Phone:          "555-0100",
		AppraisalCount: 3,
	}
}

func testUnit() directory.OrgUnitRef {
	return directory.OrgUnitRef{BankID: 1, BranchID: 2}
}

func testEvidence() biometric.CapturedImage {
	return biometric.CapturedImage{
		Payload:    "aGVsbG8=",
		CapturedAt: time.Now(),
	}
}

func (s *IssuerSuite) TestNewIssuer() {
	s.Run("nil store returns error", func() {
		_, err := session.NewIssuer(nil, s.tokens)
		s.Error(err)
		s.Contains(err.Error(), "session store is required")
	})

	s.Run("nil token service returns error", func() {
		_, err := session.NewIssuer(s.mockStore, nil)
		s.Error(err)
		s.Contains(err.Error(), "token service is required")
	})
}

func (s *IssuerSuite) TestIssueBindsProfileToCreatedSession() {
	sessionID := id.NewSessionID()
	var bound session.AppraiserRecord

	s.mockStore.EXPECT().Create(gomock.Any()).Return(sessionID, nil)
	s.mockStore.EXPECT().
		Bind(gomock.Any(), sessionID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ id.SessionID, appraiser session.AppraiserRecord) error {
			bound = appraiser
			return nil
		})

	handle, err := s.issuer.Issue(context.Background(), testProfile(), testUnit(), testEvidence())
	s.Require().NoError(err)

	s.Equal(sessionID, handle.ID)
	s.Equal("Jane Doe", handle.Appraiser.Name)
	s.Equal(session.MethodBiometric, bound.IdentificationMethod)
	s.Equal(id.RegistrationID(42), bound.RegistrationID)
	s.Equal(testUnit(), bound.Organization)
	s.Equal("aGVsbG8=", bound.EvidenceImage)
	s.False(bound.IdentifiedAt.IsZero())

	claims, err := s.tokens.ValidateToken(handle.Token)
	s.Require().NoError(err)
	s.Equal(sessionID.String(), claims.SessionID)
	s.Equal("42", claims.RegistrationID)
	s.Equal("prof-7", claims.ProfileID)
}

func (s *IssuerSuite) TestIssueCreationFailure() {
	s.mockStore.EXPECT().Create(gomock.Any()).Return(id.SessionID{}, errors.New("connection refused"))

	_, err := s.issuer.Issue(context.Background(), testProfile(), testUnit(), testEvidence())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Contains(err.Error(), "session creation failed")
}

func (s *IssuerSuite) TestIssueBindingFailureDiscardsSession() {
	sessionID := id.NewSessionID()

	s.mockStore.EXPECT().Create(gomock.Any()).Return(sessionID, nil)
	s.mockStore.EXPECT().Bind(gomock.Any(), sessionID, gomock.Any()).Return(errors.New("constraint violation"))
	s.mockStore.EXPECT().Delete(gomock.Any(), sessionID).Return(nil)

	_, err := s.issuer.Issue(context.Background(), testProfile(), testUnit(), testEvidence())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Contains(err.Error(), "profile binding failed")
}

func (s *IssuerSuite) TestIssueBindingFailureCleanupFailureStillErrors() {
	sessionID := id.NewSessionID()

	s.mockStore.EXPECT().Create(gomock.Any()).Return(sessionID, nil)
	s.mockStore.EXPECT().Bind(gomock.Any(), sessionID, gomock.Any()).Return(errors.New("constraint violation"))
	s.mockStore.EXPECT().Delete(gomock.Any(), sessionID).Return(errors.New("connection lost"))

	_, err := s.issuer.Issue(context.Background(), testProfile(), testUnit(), testEvidence())
	s.Require().Error(err)
	s.Contains(err.Error(), "profile binding failed")
}

func (s *IssuerSuite) TestBoundRecordCarriesOrganization() {
	store := session.NewMemoryStore()
	issuer, err := session.NewIssuer(store, s.tokens)
	s.Require().NoError(err)

	handle, err := issuer.Issue(context.Background(), testProfile(), testUnit(), testEvidence())
	s.Require().NoError(err)

	record, err := store.Get(context.Background(), handle.ID)
	s.Require().NoError(err)
	s.Require().True(record.Bound())
	s.Equal(testUnit(), record.Appraiser.Organization)

	raw, err := json.Marshal(record.Appraiser)
	s.Require().NoError(err)
	var fields map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(raw, &fields))
	s.Contains(fields, "organization_ref")
}

func (s *IssuerSuite) TestIssueRejectsIncompleteProfile() {
	_, err := s.issuer.Issue(context.Background(), biometric.Profile{}, testUnit(), testEvidence())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}
