package domain

import "fmt"

// Level is the authorization level an operation requires.
type Level int

const (
	LevelAuthenticated Level = iota + 1
	LevelApproved
	LevelAdmin
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelAuthenticated:
		return "authenticated"
	case LevelApproved:
		return "approved"
	case LevelAdmin:
		return "admin"
	case LevelOwner:
		return "owner"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Evaluate walks the privilege lattice for caller at the requested level and returns nil
// (allow) or the specific denial. Status is always checked before role, so a banned admin is
// rejected at the approval step and never reaches the role checks.
func Evaluate(caller *User, level Level) error {
	if caller == nil {
		return ErrUnauthenticated
	}
	if level == LevelAuthenticated {
		return nil
	}

	switch caller.Status {
	case StatusBanned:
		return ErrBanned
	case StatusPending:
		return ErrPendingApproval
	case StatusApproved:
	default:
		return NewError(ErrCodeInternal, fmt.Sprintf("unknown status %q", caller.Status))
	}

	switch level {
	case LevelApproved:
		return nil
	case LevelAdmin:
		switch caller.Role {
		case RoleAdmin, RoleOwner:
			return nil
		case RoleUser:
			return ErrForbiddenRole
		}
	case LevelOwner:
		switch caller.Role {
		case RoleOwner:
			return nil
		case RoleUser, RoleAdmin:
			return ErrForbiddenRole
		}
	default:
		return NewError(ErrCodeInternal, fmt.Sprintf("unknown level %s", level))
	}
	return NewError(ErrCodeInternal, fmt.Sprintf("unknown role %q", caller.Role))
}
