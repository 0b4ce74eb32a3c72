package repository

import (
	"context"
	"time"

	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error)
	ListFollowingFeed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.Post, error)
	ListTrending(ctx context.Context, since time.Time, limit, offset int) ([]models.Post, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Post, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error)
	RecountLikes(ctx context.Context, id uuid.UUID) (int64, error)
	RecountSaves(ctx context.Context, id uuid.UUID) (int64, error)
	SetReviewStats(ctx context.Context, id uuid.UUID, rating *float64, count int64) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return conn(ctx, r.db).Create(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := conn(ctx, r.db).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := forUpdate(conn(ctx, r.db)).First(&post, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Post", id)
	}
	return &post, nil
}

// ListFollowingFeed returns published posts by users the viewer actively
// follows, newest first.
func (r *postRepository) ListFollowingFeed(ctx context.Context, viewerID uuid.UUID, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("feed_following", "posts")()
	db := conn(ctx, r.db)
	followed := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Follow{}).
		Select("following_id").
		Where("follower_id = ? AND state = ?", viewerID, models.EdgeActive)

	var posts []models.Post
	err := db.
		Where("is_published = ? AND user_id IN (?)", true, followed).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// ListTrending returns published posts that are featured or newer than
// since, ordered by likes then recency.
func (r *postRepository) ListTrending(ctx context.Context, since time.Time, limit, offset int) ([]models.Post, error) {
	defer observability.TrackQuery("feed_trending", "posts")()
	var posts []models.Post
	err := conn(ctx, r.db).
		Where("is_published = ? AND (is_featured = ? OR created_at > ?)", true, true, since).
		Order("likes_count DESC").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	err := conn(ctx, r.db).
		Where("user_id = ? AND is_published = ?", userID, true).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// ListByIDs returns the posts with the given ids in no particular order.
func (r *postRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Post, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var posts []models.Post
	err := conn(ctx, r.db).Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

func (r *postRepository) RecountLikes(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.recount(ctx, id, "likes_count", &models.Like{})
}

func (r *postRepository) RecountSaves(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.recount(ctx, id, "saves_count", &models.SavedPost{})
}

func (r *postRepository) recount(ctx context.Context, id uuid.UUID, column string, edge interface{}) (int64, error) {
	defer observability.TrackQuery("recount_"+column, "posts")()
	db := conn(ctx, r.db)
	var n int64
	if err := db.Model(edge).Where("post_id = ? AND state = ?", id, models.EdgeActive).Count(&n).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Post{}).Where("id = ?", id).UpdateColumn(column, n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// SetReviewStats stores the aggregate rating and active review count.
func (r *postRepository) SetReviewStats(ctx context.Context, id uuid.UUID, rating *float64, count int64) error {
	return conn(ctx, r.db).Model(&models.Post{}).Where("id = ?", id).UpdateColumns(map[string]interface{}{
		"experience_rating": rating,
		"comments_count":    count,
	}).Error
}
