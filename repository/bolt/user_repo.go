package bolt

import (
	"context"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/sellerdesk/domain"
	"github.com/fastygo/sellerdesk/repository"
)

type userRepository struct {
	db *bbolt.DB
}

func (r *userRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		found, err := getJSON(tx.Bucket(bucketUsers), []byte(id), &user)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, wrap("load user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByDiscordID(ctx context.Context, discordID string) (*domain.User, error) {
	var id []byte
	_ = r.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketDiscordID).Get([]byte(discordID)); v != nil {
			id = append([]byte(nil), v...)
		}
		return nil
	})
	if id == nil {
		return nil, domain.ErrUserNotFound
	}
	return r.GetByID(ctx, string(id))
}

func (r *userRepository) List(_ context.Context, filter repository.UserFilter) ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketUsers).ForEach(func(_, v []byte) error {
			var u domain.User
			if err := unmarshal(v, &u); err != nil {
				return err
			}
			if filter.Status != "" && u.Status != filter.Status {
				return nil
			}
			if filter.Role != "" && u.Role != filter.Role {
				return nil
			}
			users = append(users, u)
			return nil
		})
	})
	if err != nil {
		return nil, wrap("list users", err)
	}

	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(users) {
			return []domain.User{}, nil
		}
		users = users[filter.Offset:]
	}
	if limit := clampLimit(filter.Limit); len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" || user.DiscordID == "" {
		return domain.ErrInvalidPayload
	}
	now := time.Now().UTC()
	err := r.db.Update(func(tx *bbolt.Tx) error {
		index := tx.Bucket(bucketDiscordID)
		if index.Get([]byte(user.DiscordID)) != nil {
			return domain.NewError(domain.ErrCodeConflict, "user already exists")
		}
		if user.Role == domain.RoleOwner {
			if err := ensureNoOtherOwner(tx, user.ID); err != nil {
				return err
			}
		}
		user.CreatedAt = now
		user.UpdatedAt = now
		if err := putJSON(tx.Bucket(bucketUsers), []byte(user.ID), user); err != nil {
			return err
		}
		return index.Put([]byte(user.DiscordID), []byte(user.ID))
	})
	return wrap("create user", err)
}

func (r *userRepository) UpdateProfile(_ context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		var stored domain.User
		found, err := getJSON(b, []byte(user.ID), &stored)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUserNotFound
		}
		stored.Username = user.Username
		stored.Discriminator = user.Discriminator
		stored.Avatar = user.Avatar
		stored.Email = user.Email
		stored.LastLogin = user.LastLogin
		stored.LastActivity = user.LastActivity
		stored.UpdatedAt = time.Now().UTC()
		user.UpdatedAt = stored.UpdatedAt
		return putJSON(b, []byte(user.ID), &stored)
	})
	return wrap("update user profile", err)
}

// CompareAndSetAccess runs inside one write transaction; bolt serializes writers, so the
// read-compare-write cannot interleave with another update.
func (r *userRepository) CompareAndSetAccess(_ context.Context, change domain.AccessChange) (*domain.User, error) {
	var updated domain.User
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		found, err := getJSON(b, []byte(change.UserID), &updated)
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrUserNotFound
		}
		if updated.Access() != change.Expected {
			return domain.ErrAccessConflict
		}
		if change.Next.Role == domain.RoleOwner && updated.Role != domain.RoleOwner {
			if err := ensureNoOtherOwner(tx, updated.ID); err != nil {
				return err
			}
		}
		updated.Role = change.Next.Role
		updated.Status = change.Next.Status
		if change.ApprovedBy != nil {
			updated.ApprovedBy = change.ApprovedBy
		}
		if change.ApprovedAt != nil {
			updated.ApprovedAt = change.ApprovedAt
		}
		updated.UpdatedAt = time.Now().UTC()
		return putJSON(b, []byte(updated.ID), &updated)
	})
	if err != nil {
		return nil, wrap("update user access", err)
	}
	return &updated, nil
}

func (r *userRepository) TouchActivity(_ context.Context, id string, at time.Time) error {
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketUsers)
		var u domain.User
		found, err := getJSON(b, []byte(id), &u)
		if err != nil || !found {
			return err
		}
		if !u.LastActivity.Before(at) {
			return nil
		}
		u.LastActivity = at
		return putJSON(b, []byte(id), &u)
	})
	return wrap("touch activity", err)
}

func ensureNoOtherOwner(tx *bbolt.Tx, selfID string) error {
	return tx.Bucket(bucketUsers).ForEach(func(k, v []byte) error {
		if string(k) == selfID {
			return nil
		}
		var u domain.User
		if err := unmarshal(v, &u); err != nil {
			return err
		}
		if u.Role == domain.RoleOwner {
			return domain.NewError(domain.ErrCodeConflict, "an owner already exists")
		}
		return nil
	})
}
