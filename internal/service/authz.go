package service

import (
	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
	appErrors "github.com/ajaykrishnavemula/Campus-Pass-sub001/pkg/errors"
)

// Action names a lifecycle operation for authorization purposes.
type Action string

const (
	ActionCreate   Action = "create"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionCheckOut Action = "check_out"
	ActionCheckIn  Action = "check_in"
)

// canPerform is the stateless authorization gate run inside the same
// call as the transition it guards. outpass is nil for create. Roles
// are a closed enum; an unknown role falls through to forbidden.
func canPerform(action Action, actor models.Actor, outpass *models.Outpass) error {
	if actor.ID == "" {
		return appErrors.ErrUnauthorized
	}

	switch action {
	case ActionCreate:
		if actor.Role != models.RoleStudent {
			return appErrors.Clone(appErrors.ErrForbidden, "only students may request outpasses")
		}
		return nil

	case ActionCancel:
		if actor.Role != models.RoleStudent {
			return appErrors.Clone(appErrors.ErrForbidden, "only students may cancel outpasses")
		}
		if outpass == nil || outpass.StudentID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "you may only cancel your own outpass")
		}
		return nil

	case ActionApprove, ActionReject:
		if actor.Role != models.RoleWarden {
			return appErrors.Clone(appErrors.ErrForbidden, "only wardens may decide outpasses")
		}
		if outpass == nil || actor.Hostel == "" || outpass.StudentHostel != actor.Hostel {
			return appErrors.Clone(appErrors.ErrForbidden, "wardens may only decide outpasses for their own hostel")
		}
		return nil

	case ActionCheckOut, ActionCheckIn:
		if actor.Role != models.RoleSecurity {
			return appErrors.Clone(appErrors.ErrForbidden, "only security staff may record gate movements")
		}
		return nil

	default:
		return appErrors.ErrForbidden
	}
}

// canView reports whether the actor may read the given outpass.
// Students see only their own passes, wardens their hostel's, security
// and admins everything.
func canView(actor models.Actor, outpass *models.Outpass) error {
	if outpass == nil {
		return appErrors.ErrNotFound
	}
	switch actor.Role {
	case models.RoleStudent:
		if outpass.StudentID != actor.ID {
			return appErrors.ErrForbidden
		}
		return nil
	case models.RoleWarden:
		if outpass.StudentHostel != actor.Hostel {
			return appErrors.ErrForbidden
		}
		return nil
	case models.RoleSecurity, models.RoleAdmin:
		return nil
	default:
		return appErrors.ErrForbidden
	}
}
