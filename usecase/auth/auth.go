package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
	"github.com/fastygo/sellerdesk/usecase/audit"
)

// ownerHealAttempts bounds the compare-and-set loop that restores the owner's access.
const ownerHealAttempts = 3

type Config struct {
	// OwnerDiscordID is the external id that always maps to the owner role.
	OwnerDiscordID string
	SessionTTL     time.Duration
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	audit    *audit.Recorder
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

func New(users repository.UserRepository, sessions repository.SessionRepository, recorder *audit.Recorder, cfg Config, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		audit:    recorder,
		cfg:      cfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *UseCase) isOwner(externalID string) bool {
	return uc.cfg.OwnerDiscordID != "" && externalID == uc.cfg.OwnerDiscordID
}

// Authenticate creates the user on first sight and refreshes the profile afterwards. The
// configured owner is forced back to owner/approved whatever the stored access says.
func (uc *UseCase) Authenticate(ctx context.Context, profile domain.ExternalProfile) (*domain.User, error) {
	if profile.ExternalID == "" {
		return nil, domain.ErrInvalidPayload
	}
	now := uc.now()

	user, err := uc.users.GetByDiscordID(ctx, profile.ExternalID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		created, createErr := uc.create(ctx, profile, now)
		if createErr == nil {
			return created, nil
		}
		if !domain.IsDomainError(createErr, domain.ErrCodeConflict) {
			return nil, createErr
		}
		// A concurrent first login won the insert; continue as a returning user.
		if user, err = uc.users.GetByDiscordID(ctx, profile.ExternalID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	user.Username = profile.Username
	user.Discriminator = profile.Discriminator
	user.Avatar = profile.Avatar
	user.Email = profile.Email
	user.LastLogin = now
	user.LastActivity = now
	if err := uc.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	if uc.isOwner(profile.ExternalID) {
		return uc.healOwner(ctx, user, now)
	}
	return user, nil
}

func (uc *UseCase) create(ctx context.Context, profile domain.ExternalProfile, now time.Time) (*domain.User, error) {
	user := &domain.User{
		ID:            uuid.NewString(),
		DiscordID:     profile.ExternalID,
		Username:      profile.Username,
		Discriminator: profile.Discriminator,
		Avatar:        profile.Avatar,
		Email:         profile.Email,
		Role:          domain.RoleUser,
		Status:        domain.StatusPending,
		LastLogin:     now,
		LastActivity:  now,
	}
	if uc.isOwner(profile.ExternalID) {
		user.Role = domain.RoleOwner
		user.Status = domain.StatusApproved
		user.ApprovedAt = &now
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
		zap.String("status", string(user.Status)))
	return user, nil
}

func (uc *UseCase) healOwner(ctx context.Context, user *domain.User, now time.Time) (*domain.User, error) {
	target := domain.Access{Role: domain.RoleOwner, Status: domain.StatusApproved}
	for attempt := 0; attempt < ownerHealAttempts; attempt++ {
		if user.Access() == target {
			return user, nil
		}
		change := domain.AccessChange{UserID: user.ID, Expected: user.Access(), Next: target}
		if user.ApprovedAt == nil {
			change.ApprovedAt = &now
		}
		updated, err := uc.users.CompareAndSetAccess(ctx, change)
		if err == nil {
			uc.logger.Warn("owner access restored",
				zap.String("user_id", user.ID),
				zap.String("previous_role", string(change.Expected.Role)),
				zap.String("previous_status", string(change.Expected.Status)))
			return updated, nil
		}
		if !errors.Is(err, domain.ErrAccessConflict) {
			return nil, err
		}
		if user, err = uc.users.GetByID(ctx, user.ID); err != nil {
			return nil, err
		}
	}
	return nil, domain.ErrAccessConflict
}

// Authorize evaluates the access lattice. On success it refreshes last_activity, and a
// failure to do so is only logged.
func (uc *UseCase) Authorize(ctx context.Context, caller *domain.User, level domain.Level) error {
	if err := domain.Evaluate(caller, level); err != nil {
		return err
	}
	if err := uc.users.TouchActivity(ctx, caller.ID, uc.now()); err != nil {
		uc.logger.Warn("failed to record activity", zap.String("user_id", caller.ID), zap.Error(err))
	}
	return nil
}

// Login authenticates the profile and opens a session.
func (uc *UseCase) Login(ctx context.Context, profile domain.ExternalProfile) (*domain.User, *domain.Session, error) {
	user, err := uc.Authenticate(ctx, profile)
	if err != nil {
		return nil, nil, err
	}
	session, err := uc.CreateSession(ctx, user.ID, uc.cfg.SessionTTL)
	if err != nil {
		return nil, nil, err
	}
	if uc.audit != nil {
		uc.audit.Record(ctx, user.ID, domain.ActionLogin, nil, map[string]any{"status": user.Status})
	}
	return user, session, nil
}

// Logout revokes the session; an already missing session is not an error.
func (uc *UseCase) Logout(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}
	if err := uc.RevokeSession(ctx, session.ID); err != nil {
		return err
	}
	if uc.audit != nil {
		uc.audit.Record(ctx, session.UserID, domain.ActionLogout, nil, nil)
	}
	return nil
}

// Resolve loads the caller behind a session id. Sessions whose user vanished are revoked.
func (uc *UseCase) Resolve(ctx context.Context, sessionID string) (*domain.Session, *domain.User, error) {
	session, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	user, err := uc.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			_ = uc.sessions.Delete(ctx, sessionID)
			return nil, nil, domain.ErrSessionNotFound
		}
		return nil, nil, err
	}
	return session, user, nil
}

func (uc *UseCase) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if ttl <= 0 {
		ttl = uc.cfg.SessionTTL
	}
	now := uc.now()
	session := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := uc.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(uc.now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

func (uc *UseCase) RevokeSession(ctx context.Context, sessionID string) error {
	return uc.sessions.Delete(ctx, sessionID)
}
