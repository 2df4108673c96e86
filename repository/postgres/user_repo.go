package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

var userColumns = []string{
	"id", "discord_id", "username", "discriminator", "avatar", "email",
	"role", "status", "approved_by", "approved_at",
	"last_login", "last_activity", "created_at", "updated_at",
}

type userRow struct {
	ID            string     `db:"id"`
	DiscordID     string     `db:"discord_id"`
	Username      string     `db:"username"`
	Discriminator string     `db:"discriminator"`
	Avatar        string     `db:"avatar"`
	Email         string     `db:"email"`
	Role          string     `db:"role"`
	Status        string     `db:"status"`
	ApprovedBy    *string    `db:"approved_by"`
	ApprovedAt    *time.Time `db:"approved_at"`
	LastLogin     time.Time  `db:"last_login"`
	LastActivity  time.Time  `db:"last_activity"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r userRow) toDomain() *domain.User {
	return &domain.User{
		ID:            r.ID,
		DiscordID:     r.DiscordID,
		Username:      r.Username,
		Discriminator: r.Discriminator,
		Avatar:        r.Avatar,
		Email:         r.Email,
		Role:          domain.Role(r.Role),
		Status:        domain.Status(r.Status),
		ApprovedBy:    r.ApprovedBy,
		ApprovedAt:    r.ApprovedAt,
		LastLogin:     r.LastLogin,
		LastActivity:  r.LastActivity,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

type userRepository struct {
	db DB
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(db DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"discord_id": discordID})
}

func (r *userRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	var row userRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.StorageError("load user", err)
	}
	return row.toDomain(), nil
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	qb := psql.Select(userColumns...).From("users").OrderBy("created_at DESC")
	if filter.Status != "" {
		qb = qb.Where(squirrel.Eq{"status": string(filter.Status)})
	}
	if filter.Role != "" {
		qb = qb.Where(squirrel.Eq{"role": string(filter.Role)})
	}
	qb = qb.Limit(uint64(clampLimit(filter.Limit)))
	if filter.Offset > 0 {
		qb = qb.Offset(uint64(filter.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []userRow
	if err := pgxscan.Select(ctx, r.db, &rows, query, args...); err != nil {
		return nil, domain.StorageError("list users", err)
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row.toDomain())
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" || user.DiscordID == "" {
		return domain.ErrInvalidPayload
	}

	query, args, err := psql.Insert("users").
		Columns("id", "discord_id", "username", "discriminator", "avatar", "email",
			"role", "status", "approved_by", "approved_at", "last_login", "last_activity").
		Values(user.ID, user.DiscordID, user.Username, user.Discriminator, user.Avatar, user.Email,
			string(user.Role), string(user.Status), user.ApprovedBy, user.ApprovedAt, user.LastLogin, user.LastActivity).
		Suffix("ON CONFLICT (discord_id) DO NOTHING RETURNING created_at, updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewError(domain.ErrCodeConflict, "user already exists")
		}
		return domain.StorageError("create user", err)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	query, args, err := psql.Update("users").
		Set("username", user.Username).
		Set("discriminator", user.Discriminator).
		Set("avatar", user.Avatar).
		Set("email", user.Email).
		Set("last_login", user.LastLogin).
		Set("last_activity", user.LastActivity).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		Suffix("RETURNING updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if err := r.db.QueryRow(ctx, query, args...).Scan(&user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		return domain.StorageError("update user profile", err)
	}
	return nil
}

// CompareAndSetAccess relies on the WHERE clause for atomicity: the row only changes when
// both role and status still match what the caller observed.
func (r *userRepository) CompareAndSetAccess(ctx context.Context, change domain.AccessChange) (*domain.User, error) {
	qb := psql.Update("users").
		Set("role", string(change.Next.Role)).
		Set("status", string(change.Next.Status))
	if change.ApprovedBy != nil {
		qb = qb.Set("approved_by", *change.ApprovedBy)
	}
	if change.ApprovedAt != nil {
		qb = qb.Set("approved_at", *change.ApprovedAt)
	}
	query, args, err := qb.
		Set("updated_at", squirrel.Expr("NOW()")).
		Where("id = ? AND role = ? AND status = ?", change.UserID, string(change.Expected.Role), string(change.Expected.Status)).
		Suffix("RETURNING " + strings.Join(userColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row userRow
	if err := pgxscan.Get(ctx, r.db, &row, query, args...); err != nil {
		if !pgxscan.NotFound(err) {
			return nil, domain.StorageError("update user access", err)
		}
		if _, getErr := r.GetByID(ctx, change.UserID); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrAccessConflict
	}
	return row.toDomain(), nil
}

func (r *userRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_activity = $2 WHERE id = $1 AND last_activity < $2`
	if _, err := r.db.Exec(ctx, query, id, at); err != nil {
		return domain.StorageError("touch activity", err)
	}
	return nil
}
