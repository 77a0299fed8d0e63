//go:build integration

package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"appraiser-gateway/internal/directory"
	"appraiser-gateway/internal/session"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
	"appraiser-gateway/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *session.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = session.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "appraisal_sessions")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestCreateThenBind() {
	ctx := context.Background()

	sessionID, err := s.store.Create(ctx)
	s.Require().NoError(err)
	s.False(sessionID.IsNil())

	record, err := s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.False(record.Bound())

	appraiser := session.AppraiserRecord{
		ProfileID:            "prof-7",
		RegistrationID:       42,
		Name:                 "Jane Doe",
		Email:                "jane@example.com",
		Organization:         directory.OrgUnitRef{BankID: 1, BranchID: 2},
		AppraisalCount:       3,
		IdentificationMethod: session.MethodBiometric,
		IdentifiedAt:         time.Now().UTC(),
	}
	s.Require().NoError(s.store.Bind(ctx, sessionID, appraiser))

	record, err = s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.Require().True(record.Bound())
	s.Equal("Jane Doe", record.Appraiser.Name)
	s.Equal(id.RegistrationID(42), record.Appraiser.RegistrationID)
	s.Equal(appraiser.Organization, record.Appraiser.Organization)
	s.Equal(session.MethodBiometric, record.Appraiser.IdentificationMethod)
}

func (s *PostgresStoreSuite) TestBindUnknownSession() {
	err := s.store.Bind(context.Background(), id.NewSessionID(), session.AppraiserRecord{Name: "Jane Doe"})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestDeleteDiscardsSession() {
	ctx := context.Background()

	sessionID, err := s.store.Create(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Delete(ctx, sessionID))

	_, err = s.store.Get(ctx, sessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.store.Delete(ctx, sessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestRunInTxRollsBackOnError() {
	ctx := context.Background()

	var sessionID id.SessionID
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		sessionID, err = s.store.Create(ctx)
		s.Require().NoError(err)
		return dErrors.New(dErrors.CodeUnavailable, "binding failed")
	})
	s.Require().Error(err)

	_, err = s.store.Get(ctx, sessionID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *PostgresStoreSuite) TestRunInTxCommitsBothWrites() {
	ctx := context.Background()

	var sessionID id.SessionID
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		sessionID, err = s.store.Create(ctx)
		if err != nil {
			return err
		}
		return s.store.Bind(ctx, sessionID, session.AppraiserRecord{
			ProfileID:            "prof-7",
			RegistrationID:       42,
			Name:                 "Jane Doe",
			IdentificationMethod: session.MethodBiometric,
			IdentifiedAt:         time.Now().UTC(),
		})
	})
	s.Require().NoError(err)

	record, err := s.store.Get(ctx, sessionID)
	s.Require().NoError(err)
	s.True(record.Bound())
}

func (s *PostgresStoreSuite) TestGetUnknownSession() {
	_, err := s.store.Get(context.Background(), id.NewSessionID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
