// Package admin implements the user moderation operations gated at admin and owner level.
package admin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/usecase/audit"
)

// maxAttempts bounds the compare-and-set retry loop under concurrent moderation.
const maxAttempts = 5

// Authorizer is the access gate shared with the request surface.
type Authorizer interface {
	Authorize(ctx context.Context, caller *domain.User, level domain.Level) error
}

type UseCase struct {
	users  repository.UserRepository
	audit  *audit.Recorder
	gate   Authorizer
	logger *zap.Logger
	now    func() time.Time
}

func New(users repository.UserRepository, recorder *audit.Recorder, gate Authorizer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		audit:  recorder,
		gate:   gate,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// transition computes the next access pair for target. A nil next with a nil error is a
// no-op; audit reports whether the call must be recorded anyway.
type transition func(actor, target *domain.User) (next *domain.Access, audit bool, err error)

type outcome struct {
	user     *domain.User
	previous domain.Access
	changed  bool
	audit    bool
}

// apply reads the target, runs t, and writes the result with compare-and-set, re-reading
// and re-evaluating t whenever another writer got there first.
func (uc *UseCase) apply(ctx context.Context, actor *domain.User, targetID string, t transition, approve bool) (*outcome, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		target, err := uc.users.GetByID(ctx, targetID)
		if err != nil {
			return nil, err
		}
		next, record, err := t(actor, target)
		if err != nil {
			return nil, err
		}
		if next == nil || *next == target.Access() {
			return &outcome{user: target, previous: target.Access(), audit: record}, nil
		}

		change := domain.AccessChange{UserID: target.ID, Expected: target.Access(), Next: *next}
		if approve && next.Status == domain.StatusApproved && target.Status != domain.StatusApproved {
			now := uc.now()
			change.ApprovedBy = &actor.ID
			change.ApprovedAt = &now
		}
		updated, err := uc.users.CompareAndSetAccess(ctx, change)
		if errors.Is(err, domain.ErrAccessConflict) {
			uc.logger.Debug("access changed concurrently, retrying",
				zap.String("target_id", target.ID), zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return &outcome{user: updated, previous: change.Expected, changed: true, audit: true}, nil
	}
	return nil, domain.ErrAccessConflict
}

func (uc *UseCase) record(ctx context.Context, actor *domain.User, action domain.Action, res *outcome, details map[string]any) {
	if uc.audit == nil || !res.audit {
		return
	}
	target := res.user.ID
	uc.audit.Record(ctx, actor.ID, action, &target, details)
}

// Approve sets status approved. Every successful call is audited, including no-ops.
func (uc *UseCase) Approve(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelAdmin); err != nil {
		return nil, err
	}
	res, err := uc.apply(ctx, actor, targetID, func(_, target *domain.User) (*domain.Access, bool, error) {
		return &domain.Access{Role: target.Role, Status: domain.StatusApproved}, true, nil
	}, true)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.ActionApproveUser, res, map[string]any{
		"previous_status": res.previous.Status,
		"changed":         res.changed,
	})
	return res.user, nil
}

// Ban sets status banned. The owner can never be banned and only the owner may ban an admin.
func (uc *UseCase) Ban(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelAdmin); err != nil {
		return nil, err
	}
	res, err := uc.apply(ctx, actor, targetID, func(actor, target *domain.User) (*domain.Access, bool, error) {
		switch target.Role {
		case domain.RoleOwner:
			return nil, false, domain.ErrOwnerImmutable
		case domain.RoleAdmin:
			if actor.Role != domain.RoleOwner {
				return nil, false, domain.ErrAdminBanByOwner
			}
		}
		return &domain.Access{Role: target.Role, Status: domain.StatusBanned}, true, nil
	}, false)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.ActionBanUser, res, map[string]any{"previous_status": res.previous.Status})
	return res.user, nil
}

// Unban restores a banned user to approved; anything else is a silent no-op.
func (uc *UseCase) Unban(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelAdmin); err != nil {
		return nil, err
	}
	res, err := uc.apply(ctx, actor, targetID, func(_, target *domain.User) (*domain.Access, bool, error) {
		if target.Status != domain.StatusBanned {
			return nil, false, nil
		}
		return &domain.Access{Role: target.Role, Status: domain.StatusApproved}, true, nil
	}, false)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.ActionUnbanUser, res, nil)
	return res.user, nil
}

// Promote makes target an admin and approves them.
func (uc *UseCase) Promote(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelOwner); err != nil {
		return nil, err
	}
	res, err := uc.apply(ctx, actor, targetID, func(_, target *domain.User) (*domain.Access, bool, error) {
		switch target.Role {
		case domain.RoleOwner:
			return nil, false, domain.ErrOwnerRoleChange
		case domain.RoleAdmin:
			return nil, false, nil
		}
		return &domain.Access{Role: domain.RoleAdmin, Status: domain.StatusApproved}, true, nil
	}, true)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.ActionPromoteAdmin, res, map[string]any{
		"previous_role":   res.previous.Role,
		"previous_status": res.previous.Status,
	})
	return res.user, nil
}

// Demote returns an admin to the user role; status is left alone.
func (uc *UseCase) Demote(ctx context.Context, actor *domain.User, targetID string) (*domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelOwner); err != nil {
		return nil, err
	}
	res, err := uc.apply(ctx, actor, targetID, func(_, target *domain.User) (*domain.Access, bool, error) {
		switch target.Role {
		case domain.RoleOwner:
			return nil, false, domain.ErrOwnerRoleChange
		case domain.RoleUser:
			return nil, false, nil
		}
		return &domain.Access{Role: domain.RoleUser, Status: target.Status}, true, nil
	}, false)
	if err != nil {
		return nil, err
	}
	uc.record(ctx, actor, domain.ActionDemoteAdmin, res, map[string]any{"previous_role": res.previous.Role})
	return res.user, nil
}

// ListUsers always reads the user store live.
func (uc *UseCase) ListUsers(ctx context.Context, actor *domain.User, filter repository.UserFilter) ([]domain.User, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelAdmin); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown status filter")
	}
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, domain.NewError(domain.ErrCodeInvalid, "unknown role filter")
	}
	return uc.users.List(ctx, filter)
}

func (uc *UseCase) ListLogs(ctx context.Context, actor *domain.User, limit int) ([]domain.ActivityEntry, error) {
	if err := uc.gate.Authorize(ctx, actor, domain.LevelAdmin); err != nil {
		return nil, err
	}
	return uc.audit.ListRecent(ctx, limit)
}
