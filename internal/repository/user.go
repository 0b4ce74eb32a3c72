package repository

import (
	"context"
	"errors"
	"time"

	"wanderfeed/internal/cache"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdentityFields are the profile fields owned by the identity provider.
// Empty strings leave the stored value untouched.
type IdentityFields struct {
	Username        string
	Email           string
	DisplayName     string
	ProfileImageURL string
	LastActive      time.Time
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	UserIDForSubject(ctx context.Context, subject string) (uuid.UUID, error)
	Create(ctx context.Context, user *models.User) error
	InsertIfAbsentByExternalID(ctx context.Context, user *models.User) (bool, error)
	UpdateIdentity(ctx context.Context, id uuid.UUID, fields IdentityFields) error
	Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error
	LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.User, error)
	RecountFollowers(ctx context.Context, id uuid.UUID) (int64, error)
	RecountFollowing(ctx context.Context, id uuid.UUID) (int64, error)
	RecountPosts(ctx context.Context, id uuid.UUID) (int64, error)
	ListFollowers(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.User, error)
	InvalidateCache(ctx context.Context, ids ...uuid.UUID)
}

type userRepository struct {
	db    *gorm.DB
	cache *cache.Store
}

// NewUserRepository returns a new UserRepository implementation. store may be
// nil, in which case profiles are always read from the database.
func NewUserRepository(db *gorm.DB, store *cache.Store) UserRepository {
	return &userRepository{db: db, cache: store}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	load := func() error {
		if err := conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
			return notFound(err, "User", id)
		}
		return nil
	}

	// Reads inside a transaction must see its own writes.
	if inTx(ctx) {
		if err := load(); err != nil {
			return nil, err
		}
		return &user, nil
	}
	if err := r.cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, load); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	var missing []uuid.UUID
	for _, id := range sortedIDs(ids...) {
		if !inTx(ctx) {
			var u models.User
			found, err := r.cache.GetJSON(ctx, cache.UserKey(id), &u)
			if err == nil && found {
				out[id] = &u
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var users []models.User
	if err := conn(ctx, r.db).Where("id IN ?", missing).Find(&users).Error; err != nil {
		return nil, err
	}
	for i := range users {
		u := &users[i]
		out[u.ID] = u
		if !inTx(ctx) {
			_ = r.cache.SetJSON(ctx, cache.UserKey(u.ID), u, cache.UserTTL)
		}
	}
	return out, nil
}

func (r *userRepository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	var user models.User
	if err := conn(ctx, r.db).First(&user, "external_id = ?", externalID).Error; err != nil {
		return nil, notFound(err, "User", externalID)
	}
	return &user, nil
}

// UserIDForSubject maps a token subject to an active account.
func (r *userRepository) UserIDForSubject(ctx context.Context, subject string) (uuid.UUID, error) {
	var user models.User
	err := conn(ctx, r.db).
		Select("id").
		Where("external_id = ? AND deactivated_at IS NULL", subject).
		Take(&user).Error
	if err != nil {
		return uuid.Nil, notFound(err, "User", subject)
	}
	return user.ID, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return conn(ctx, r.db).Create(user).Error
}

// InsertIfAbsentByExternalID inserts user unless a row with the same
// external id exists. It reports whether this call created the row.
func (r *userRepository) InsertIfAbsentByExternalID(ctx context.Context, user *models.User) (bool, error) {
	if user.ExternalID == nil || *user.ExternalID == "" {
		return false, errors.New("insert user: external id is required")
	}
	res := conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(user)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepository) UpdateIdentity(ctx context.Context, id uuid.UUID, fields IdentityFields) error {
	updates := map[string]interface{}{}
	if fields.Username != "" {
		updates["username"] = fields.Username
	}
	if fields.Email != "" {
		updates["email"] = fields.Email
	}
	if fields.DisplayName != "" {
		updates["display_name"] = fields.DisplayName
	}
	if fields.ProfileImageURL != "" {
		updates["profile_image_url"] = fields.ProfileImageURL
	}
	if !fields.LastActive.IsZero() {
		updates["last_active"] = fields.LastActive
	}
	if len(updates) == 0 {
		return nil
	}
	res := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

func (r *userRepository) Deactivate(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_private":     true,
		"deactivated_at": at,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// LockForUpdate locks the given users in id order and returns them.
func (r *userRepository) LockForUpdate(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(ids))
	db := conn(ctx, r.db)
	for _, id := range sortedIDs(ids...) {
		var user models.User
		if err := forUpdate(db).First(&user, "id = ?", id).Error; err != nil {
			return nil, notFound(err, "User", id)
		}
		out[id] = &user
	}
	return out, nil
}

func (r *userRepository) RecountFollowers(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.recount(ctx, id, "followers_count",
		conn(ctx, r.db).Model(&models.Follow{}).Where("following_id = ? AND state = ?", id, models.EdgeActive))
}

func (r *userRepository) RecountFollowing(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.recount(ctx, id, "following_count",
		conn(ctx, r.db).Model(&models.Follow{}).Where("follower_id = ? AND state = ?", id, models.EdgeActive))
}

func (r *userRepository) RecountPosts(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.recount(ctx, id, "posts_count",
		conn(ctx, r.db).Model(&models.Post{}).Where("user_id = ?", id))
}

func (r *userRepository) recount(ctx context.Context, id uuid.UUID, column string, source *gorm.DB) (int64, error) {
	defer observability.TrackQuery("recount_"+column, "users")()
	var n int64
	if err := source.Count(&n).Error; err != nil {
		return 0, err
	}
	if err := conn(ctx, r.db).Model(&models.User{}).Where("id = ?", id).UpdateColumn(column, n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *userRepository) ListFollowers(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.User, error) {
	return r.listByFollow(ctx, "follows.follower_id", "follows.following_id", id, limit, offset)
}

func (r *userRepository) ListFollowing(ctx context.Context, id uuid.UUID, limit, offset int) ([]models.User, error) {
	return r.listByFollow(ctx, "follows.following_id", "follows.follower_id", id, limit, offset)
}

func (r *userRepository) listByFollow(ctx context.Context, joinCol, filterCol string, id uuid.UUID, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := conn(ctx, r.db).
		Select("users.*").
		Joins("JOIN follows ON "+joinCol+" = users.id").
		Where(filterCol+" = ? AND follows.state = ? AND users.deactivated_at IS NULL", id, models.EdgeActive).
		Order("follows.updated_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	return users, err
}

func (r *userRepository) InvalidateCache(ctx context.Context, ids ...uuid.UUID) {
	r.cache.InvalidateUsers(ctx, ids...)
}
