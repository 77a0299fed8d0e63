package registration

import (
	"time"

	"appraiser-gateway/internal/biometric"
	"appraiser-gateway/internal/directory"
	id "appraiser-gateway/pkg/domain"
)

// Role scopes what a registrar may do. Branch admins register within their
// branch, bank admins within their bank, super admins anywhere.
type Role string

const (
	RoleBranchAdmin Role = "branch_admin"
	RoleBankAdmin   Role = "bank_admin"
	RoleSuperAdmin  Role = "super_admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleBranchAdmin, RoleBankAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// Registrar is the authenticated administrator performing a registration.
type Registrar struct {
	Role Role                 `json:"role"`
	Unit directory.OrgUnitRef `json:"unit"`
}

// NewAppraiser is the registration request payload.
type NewAppraiser struct {
	Name  string                  `json:"name"`
	Email string                  `json:"email"`
	Phone string                  `json:"phone"`
	Unit  directory.OrgUnitRef    `json:"unit"`
	Image biometric.CapturedImage `json:"image"`
}

// Appraiser is a stored registration record.
type Appraiser struct {
	ID             id.RegistrationID    `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Phone          string               `json:"phone"`
	Unit           directory.OrgUnitRef `json:"unit"`
	AppraisalCount int                  `json:"appraisal_count"`
	FaceEnrolled   bool                 `json:"face_enrolled"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Result reports a completed registration. Enrollment is best-effort: a
// registration without a face profile is still valid, biometric
// identification just will not find it until re-enrollment.
type Result struct {
	Appraiser Appraiser `json:"appraiser"`
	Enrolled  bool      `json:"face_enrolled"`
	Message   string    `json:"message"`
}
