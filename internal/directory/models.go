package directory

import (
	"strings"

	id "appraiser-gateway/pkg/domain"
)

// OrgUnitRef names a bank/branch pair. The branch must belong to the bank;
// the directory enforces that relationship, callers only select from branches
// already filtered by bank.
type OrgUnitRef struct {
	BankID   int64 `json:"bank_id"`
	BranchID int64 `json:"branch_id"`
}

func (r OrgUnitRef) IsZero() bool {
	return r.BankID == 0 || r.BranchID == 0
}

// ClaimedIdentity is the operator's asserted name plus organizational
// selection. Immutable once submitted for a given attempt.
type ClaimedIdentity struct {
	Name string
	Unit OrgUnitRef
}

// Normalized returns the identity with surrounding whitespace stripped from
// the name. Matching against the directory is case-insensitive.
func (c ClaimedIdentity) Normalized() ClaimedIdentity {
	c.Name = strings.TrimSpace(c.Name)
	return c
}

// BoundRegistration is the directory's confirmation of a claimed identity.
// Read-only once produced; it is the single source of truth for all
// subsequent biometric comparison context within an attempt.
type BoundRegistration struct {
	ID             id.RegistrationID `json:"id"`
	Name           string            `json:"name"`
	BankName       string            `json:"bank_name"`
	BranchName     string            `json:"branch_name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	AppraisalCount int               `json:"appraisal_count"`
	Unit           OrgUnitRef        `json:"unit"`
}

func (b BoundRegistration) IsZero() bool {
	return b.ID.IsNil()
}
