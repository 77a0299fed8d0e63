package registration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
	dErrors "appraiser-gateway/pkg/domain-errors"
)

// =============================================================================
// Registration Service Test Suite
// =============================================================================
// Justification for unit tests: the service enforces registrar scoping and
// the degradation contract for failed face enrollment. Both are pure policy
// that integration tests against a real store would only obscure.

type stubEnroller struct {
	err     error
	calls   int
	lastID  id.RegistrationID
	lastImg biometric.CapturedImage
}

func (e *stubEnroller) Enroll(_ context.Context, image biometric.CapturedImage, registrationID id.RegistrationID) error {
	e.calls++
	e.lastID = registrationID
	e.lastImg = image
	return e.err
}

type RegistrationServiceSuite struct {
	suite.Suite
	store    *MemoryStore
	enroller *stubEnroller
	service  *Service
}

func TestRegistrationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegistrationServiceSuite))
}

func (s *RegistrationServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.enroller = &stubEnroller{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.service, err = New(s.store,
		WithLogger(logger),
		WithEnroller(s.enroller),
	)
	s.Require().NoError(err)
}

func superAdmin() Registrar {
	return Registrar{Role: RoleSuperAdmin}
}

func newAppraiserRequest() NewAppraiser {
	return NewAppraiser{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "555-0100",
		Unit:  directory.OrgUnitRef{BankID: 1, BranchID: 2},
		Image: biometric.CapturedImage{Payload: "aGVsbG8=", CapturedAt: time.Now()},
	}
}

func (s *RegistrationServiceSuite) TestNew() {
	_, err := New(nil)
	s.Error(err)
	s.Contains(err.Error(), "registration store is required")
}

func (s *RegistrationServiceSuite) TestRegisterWithEnrollment() {
	result, err := s.service.Register(context.Background(), superAdmin(), newAppraiserRequest())
	s.Require().NoError(err)

	s.True(result.Enrolled)
	s.True(result.Appraiser.FaceEnrolled)
	s.Equal("Jane Doe", result.Appraiser.Name)
	s.Contains(result.Message, "with face profile")
	s.Equal(1, s.enroller.calls)
	s.Equal(result.Appraiser.ID, s.enroller.lastID)
}

func (s *RegistrationServiceSuite) TestRegisterDegradesWhenEnrollmentFails() {
	s.enroller.err = dErrors.New(dErrors.CodeInvalidInput, "no face detected")

	result, err := s.service.Register(context.Background(), superAdmin(), newAppraiserRequest())
	s.Require().NoError(err)

	s.False(result.Enrolled)
	s.False(result.Appraiser.FaceEnrolled)
	s.Contains(result.Message, "without face profile")

	// The registration itself survives the failed enrollment.
	stored, err := s.service.Get(context.Background(), result.Appraiser.ID)
	s.Require().NoError(err)
	s.Equal("jane@example.com", stored.Email)
}

func (s *RegistrationServiceSuite) TestRegisterWithoutImageSkipsEnrollment() {
	req := newAppraiserRequest()
	req.Image = biometric.CapturedImage{}

	result, err := s.service.Register(context.Background(), superAdmin(), req)
	s.Require().NoError(err)
	s.False(result.Enrolled)
	s.Equal(0, s.enroller.calls)
}

func (s *RegistrationServiceSuite) TestRegisterValidation() {
	ctx := context.Background()

	s.Run("empty name", func() {
		req := newAppraiserRequest()
		req.Name = "   "
		_, err := s.service.Register(ctx, superAdmin(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("empty email", func() {
		req := newAppraiserRequest()
		req.Email = ""
		_, err := s.service.Register(ctx, superAdmin(), req)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("duplicate email", func() {
		_, err := s.service.Register(ctx, superAdmin(), newAppraiserRequest())
		s.Require().NoError(err)
		_, err = s.service.Register(ctx, superAdmin(), newAppraiserRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *RegistrationServiceSuite) TestBranchAdminScoping() {
	ctx := context.Background()
	registrar := Registrar{Role: RoleBranchAdmin, Unit: directory.OrgUnitRef{BankID: 1, BranchID: 2}}

	s.Run("registers in own branch", func() {
		result, err := s.service.Register(ctx, registrar, newAppraiserRequest())
		s.Require().NoError(err)
		s.Equal(directory.OrgUnitRef{BankID: 1, BranchID: 2}, result.Appraiser.Unit)
	})

	s.Run("zero unit inherits the registrar's branch", func() {
		req := newAppraiserRequest()
		req.Email = "second@example.com"
		req.Unit = directory.OrgUnitRef{}
		result, err := s.service.Register(ctx, registrar, req)
		s.Require().NoError(err)
		s.Equal(registrar.Unit, result.Appraiser.Unit)
	})

	s.Run("another branch is forbidden", func() {
		req := newAppraiserRequest()
		req.Unit = directory.OrgUnitRef{BankID: 1, BranchID: 9}
		_, err := s.service.Register(ctx, registrar, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("registrar without a branch is rejected", func() {
		_, err := s.service.Register(ctx, Registrar{Role: RoleBranchAdmin}, newAppraiserRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *RegistrationServiceSuite) TestBankAdminScoping() {
	ctx := context.Background()
	registrar := Registrar{Role: RoleBankAdmin, Unit: directory.OrgUnitRef{BankID: 1, BranchID: 2}}

	s.Run("registers in any branch of own bank", func() {
		req := newAppraiserRequest()
		req.Unit = directory.OrgUnitRef{BankID: 1, BranchID: 7}
		result, err := s.service.Register(ctx, registrar, req)
		s.Require().NoError(err)
		s.Equal(directory.OrgUnitRef{BankID: 1, BranchID: 7}, result.Appraiser.Unit)
	})

	s.Run("another bank is forbidden", func() {
		req := newAppraiserRequest()
		req.Unit = directory.OrgUnitRef{BankID: 3, BranchID: 1}
		_, err := s.service.Register(ctx, registrar, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("registrar without a bank is rejected", func() {
		_, err := s.service.Register(ctx, Registrar{Role: RoleBankAdmin}, newAppraiserRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *RegistrationServiceSuite) TestSuperAdminRequiresExplicitUnit() {
	req := newAppraiserRequest()
	req.Unit = directory.OrgUnitRef{}
	_, err := s.service.Register(context.Background(), superAdmin(), req)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *RegistrationServiceSuite) TestInvalidRoleRejected() {
	_, err := s.service.Register(context.Background(), Registrar{Role: "auditor"}, newAppraiserRequest())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Contains(err.Error(), "invalid registrar role")
}

func (s *RegistrationServiceSuite) TestGetUnknownAppraiser() {
	_, err := s.service.Get(context.Background(), 999)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RegistrationServiceSuite) TestListByUnit() {
	ctx := context.Background()
	unit := directory.OrgUnitRef{BankID: 1, BranchID: 2}

	_, err := s.service.Register(ctx, superAdmin(), newAppraiserRequest())
	s.Require().NoError(err)

	other := newAppraiserRequest()
	other.Name = "John Smith"
	other.Email = "john@example.com"
	other.Unit = directory.OrgUnitRef{BankID: 1, BranchID: 9}
	_, err = s.service.Register(ctx, superAdmin(), other)
	s.Require().NoError(err)

	appraisers, err := s.service.ListByUnit(ctx, unit)
	s.Require().NoError(err)
	s.Require().Len(appraisers, 1)
	s.Equal("Jane Doe", appraisers[0].Name)

	s.Run("zero unit rejected", func() {
		_, err := s.service.ListByUnit(ctx, directory.OrgUnitRef{BankID: 1})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
