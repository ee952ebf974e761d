package proposals

import (
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/enums"
	pkgerrors "github.com/cabinetworks/contractor-backend/pkg/errors"
)

// Principal is an authenticated user acting on a proposal.
type Principal struct {
	UserID  int64
	Role    enums.UserRole
	GroupID *int64
}

// Authorize allows admins on every proposal and other roles only on
// proposals owned by their group.
func Authorize(p Principal, proposal *models.Proposal) error {
	if proposal == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
	}
	if p.Role == enums.UserRoleAdmin {
		return nil
	}
	if p.GroupID != nil && *p.GroupID == proposal.OwnerGroupID {
		switch p.Role {
		case enums.UserRoleContractor, enums.UserRoleStaff:
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "proposal belongs to another group")
}
