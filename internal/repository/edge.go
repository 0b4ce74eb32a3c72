package repository

import (
	"context"
	"errors"

	"wanderfeed/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository persists follow edges.
type FollowRepository interface {
	FindForUpdate(ctx context.Context, followerID, followingID uuid.UUID) (*models.Follow, error)
	InsertIfAbsent(ctx context.Context, follow *models.Follow) (bool, error)
	SetState(ctx context.Context, id uuid.UUID, state models.EdgeState) error
	CountActiveFollowing(ctx context.Context, followerID uuid.UUID) (int64, error)
}

// LikeRepository persists like edges.
type LikeRepository interface {
	FindForUpdate(ctx context.Context, userID, postID uuid.UUID) (*models.Like, error)
	InsertIfAbsent(ctx context.Context, like *models.Like) (bool, error)
	SetState(ctx context.Context, id uuid.UUID, state models.EdgeState) error
	ActivePostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// SavedFilter narrows a saved-post listing.
type SavedFilter struct {
	Collection string
	Location   string
}

// SaveRepository persists saved-post edges.
type SaveRepository interface {
	FindForUpdate(ctx context.Context, userID, postID uuid.UUID) (*models.SavedPost, error)
	InsertIfAbsent(ctx context.Context, save *models.SavedPost) (bool, error)
	Update(ctx context.Context, save *models.SavedPost) error
	ActivePostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error)
	ListActive(ctx context.Context, userID uuid.UUID, filter SavedFilter, limit, offset int) ([]models.SavedPost, error)
	Collections(ctx context.Context, userID uuid.UUID) ([]models.CollectionSummary, error)
	Locations(ctx context.Context, userID uuid.UUID) ([]models.LocationSummary, error)
}

// findLocked loads the edge matching where under a row lock. It returns
// (false, nil) when no row exists.
func findLocked(db *gorm.DB, dest interface{}, where string, args ...interface{}) (bool, error) {
	err := forUpdate(db).Where(where, args...).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// insertIfAbsent inserts row unless its natural key exists and reports
// whether the insert happened.
func insertIfAbsent(db *gorm.DB, row interface{}, keys ...string) (bool, error) {
	cols := make([]clause.Column, 0, len(keys))
	for _, k := range keys {
		cols = append(cols, clause.Column{Name: k})
	}
	res := db.Clauses(clause.OnConflict{Columns: cols, DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func setEdgeState(db *gorm.DB, model interface{}, id uuid.UUID, state models.EdgeState) error {
	return db.Model(model).Where("id = ?", id).Update("state", state).Error
}

func activePostIDs(db *gorm.DB, model interface{}, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	if len(postIDs) == 0 {
		return map[uuid.UUID]bool{}, nil
	}
	var ids []uuid.UUID
	err := db.Model(model).
		Where("user_id = ? AND post_id IN ? AND state = ?", userID, postIDs, models.EdgeActive).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return activeSet(ids), nil
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a FollowRepository over db.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) FindForUpdate(ctx context.Context, followerID, followingID uuid.UUID) (*models.Follow, error) {
	var f models.Follow
	found, err := findLocked(conn(ctx, r.db), &f, "follower_id = ? AND following_id = ?", followerID, followingID)
	if err != nil || !found {
		return nil, err
	}
	return &f, nil
}

func (r *followRepository) InsertIfAbsent(ctx context.Context, follow *models.Follow) (bool, error) {
	return insertIfAbsent(conn(ctx, r.db), follow, "follower_id", "following_id")
}

func (r *followRepository) SetState(ctx context.Context, id uuid.UUID, state models.EdgeState) error {
	return setEdgeState(conn(ctx, r.db), &models.Follow{}, id, state)
}

func (r *followRepository) CountActiveFollowing(ctx context.Context, followerID uuid.UUID) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&models.Follow{}).
		Where("follower_id = ? AND state = ?", followerID, models.EdgeActive).
		Count(&n).Error
	return n, err
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a LikeRepository over db.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) FindForUpdate(ctx context.Context, userID, postID uuid.UUID) (*models.Like, error) {
	var l models.Like
	found, err := findLocked(conn(ctx, r.db), &l, "user_id = ? AND post_id = ?", userID, postID)
	if err != nil || !found {
		return nil, err
	}
	return &l, nil
}

func (r *likeRepository) InsertIfAbsent(ctx context.Context, like *models.Like) (bool, error) {
	return insertIfAbsent(conn(ctx, r.db), like, "user_id", "post_id")
}

func (r *likeRepository) SetState(ctx context.Context, id uuid.UUID, state models.EdgeState) error {
	return setEdgeState(conn(ctx, r.db), &models.Like{}, id, state)
}

func (r *likeRepository) ActivePostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return activePostIDs(conn(ctx, r.db), &models.Like{}, userID, postIDs)
}

type saveRepository struct {
	db *gorm.DB
}

// NewSaveRepository returns a SaveRepository over db.
func NewSaveRepository(db *gorm.DB) SaveRepository {
	return &saveRepository{db: db}
}

func (r *saveRepository) FindForUpdate(ctx context.Context, userID, postID uuid.UUID) (*models.SavedPost, error) {
	var s models.SavedPost
	found, err := findLocked(conn(ctx, r.db), &s, "user_id = ? AND post_id = ?", userID, postID)
	if err != nil || !found {
		return nil, err
	}
	return &s, nil
}

func (r *saveRepository) InsertIfAbsent(ctx context.Context, save *models.SavedPost) (bool, error) {
	return insertIfAbsent(conn(ctx, r.db), save, "user_id", "post_id")
}

// Update writes the state and organizational metadata of an existing save.
func (r *saveRepository) Update(ctx context.Context, save *models.SavedPost) error {
	return conn(ctx, r.db).Model(&models.SavedPost{}).Where("id = ?", save.ID).Updates(map[string]interface{}{
		"state":           save.State,
		"collection_name": save.CollectionName,
		"personal_notes":  save.PersonalNotes,
		"trip_plan_id":    save.TripPlanID,
	}).Error
}

func (r *saveRepository) ActivePostIDs(ctx context.Context, userID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return activePostIDs(conn(ctx, r.db), &models.SavedPost{}, userID, postIDs)
}

func (r *saveRepository) ListActive(ctx context.Context, userID uuid.UUID, filter SavedFilter, limit, offset int) ([]models.SavedPost, error) {
	q := conn(ctx, r.db).Where("user_id = ? AND state = ?", userID, models.EdgeActive)
	if filter.Collection != "" {
		q = q.Where("collection_name = ?", filter.Collection)
	}
	if filter.Location != "" {
		q = q.Where("location_category = ?", filter.Location)
	}
	var saves []models.SavedPost
	err := q.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&saves).Error
	return saves, err
}

func (r *saveRepository) Collections(ctx context.Context, userID uuid.UUID) ([]models.CollectionSummary, error) {
	var out []models.CollectionSummary
	err := conn(ctx, r.db).Model(&models.SavedPost{}).
		Select("collection_name AS name, COUNT(*) AS count").
		Where("user_id = ? AND state = ? AND collection_name IS NOT NULL AND collection_name <> ''", userID, models.EdgeActive).
		Group("collection_name").
		Order("count DESC, name ASC").
		Scan(&out).Error
	return out, err
}

func (r *saveRepository) Locations(ctx context.Context, userID uuid.UUID) ([]models.LocationSummary, error) {
	var out []models.LocationSummary
	err := conn(ctx, r.db).Model(&models.SavedPost{}).
		Select("location_category AS category, COUNT(*) AS count").
		Where("user_id = ? AND state = ? AND location_category IS NOT NULL AND location_category <> ''", userID, models.EdgeActive).
		Group("location_category").
		Order("count DESC, category ASC").
		Scan(&out).Error
	return out, err
}
