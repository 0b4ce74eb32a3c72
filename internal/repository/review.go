package repository

import (
	"context"

	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewStats aggregates the active reviews of one post.
type ReviewStats struct {
	Average float64
	Count   int64
}

// ReviewRepository persists reviews and their helpfulness votes.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	HasActive(ctx context.Context, userID, postID uuid.UUID) (bool, error)
	GetActiveForUpdate(ctx context.Context, id uuid.UUID) (*models.Review, error)
	Update(ctx context.Context, review *models.Review) error
	ActiveStats(ctx context.Context, postID uuid.UUID) (ReviewStats, error)
	ListActiveByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int64, error)
	FindVoteForUpdate(ctx context.Context, userID, reviewID uuid.UUID) (*models.ReviewVote, error)
	InsertVoteIfAbsent(ctx context.Context, vote *models.ReviewVote) (bool, error)
	UpdateVote(ctx context.Context, vote *models.ReviewVote) error
	RecountHelpful(ctx context.Context, reviewID uuid.UUID) (int64, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository returns a ReviewRepository over db.
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	return conn(ctx, r.db).Create(review).Error
}

func (r *reviewRepository) HasActive(ctx context.Context, userID, postID uuid.UUID) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&models.Review{}).
		Where("user_id = ? AND post_id = ? AND status = ?", userID, postID, models.ReviewActive).
		Count(&n).Error
	return n > 0, err
}

// GetActiveForUpdate locks an active review. Deleted reviews are reported
// as not found.
func (r *reviewRepository) GetActiveForUpdate(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	err := forUpdate(conn(ctx, r.db)).
		Where("id = ? AND status = ?", id, models.ReviewActive).
		Take(&review).Error
	if err != nil {
		return nil, notFound(err, "Review", id)
	}
	return &review, nil
}

func (r *reviewRepository) Update(ctx context.Context, review *models.Review) error {
	return conn(ctx, r.db).Model(&models.Review{}).Where("id = ?", review.ID).Updates(map[string]interface{}{
		"rating":  review.Rating,
		"comment": review.Comment,
		"status":  review.Status,
	}).Error
}

func (r *reviewRepository) ActiveStats(ctx context.Context, postID uuid.UUID) (ReviewStats, error) {
	var stats ReviewStats
	err := conn(ctx, r.db).Model(&models.Review{}).
		Select("COALESCE(AVG(CAST(rating AS DOUBLE PRECISION)), 0) AS average, COUNT(*) AS count").
		Where("post_id = ? AND status = ?", postID, models.ReviewActive).
		Scan(&stats).Error
	return stats, err
}

func (r *reviewRepository) ListActiveByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.ReviewWithAuthor, int64, error) {
	db := conn(ctx, r.db)
	var total int64
	if err := db.Model(&models.Review{}).
		Where("post_id = ? AND status = ?", postID, models.ReviewActive).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var out []models.ReviewWithAuthor
	err := db.Model(&models.Review{}).
		Select("reviews.*, users.username, users.display_name, users.profile_image_url, users.is_verified").
		Joins("JOIN users ON users.id = reviews.user_id").
		Where("reviews.post_id = ? AND reviews.status = ?", postID, models.ReviewActive).
		Order("reviews.helpful_count DESC").
		Order("reviews.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&out).Error
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *reviewRepository) FindVoteForUpdate(ctx context.Context, userID, reviewID uuid.UUID) (*models.ReviewVote, error) {
	var v models.ReviewVote
	found, err := findLocked(conn(ctx, r.db), &v, "user_id = ? AND review_id = ?", userID, reviewID)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

func (r *reviewRepository) InsertVoteIfAbsent(ctx context.Context, vote *models.ReviewVote) (bool, error) {
	return insertIfAbsent(conn(ctx, r.db), vote, "user_id", "review_id")
}

func (r *reviewRepository) UpdateVote(ctx context.Context, vote *models.ReviewVote) error {
	return conn(ctx, r.db).Model(&models.ReviewVote{}).Where("id = ?", vote.ID).Updates(map[string]interface{}{
		"state":      vote.State,
		"is_helpful": vote.IsHelpful,
	}).Error
}

func (r *reviewRepository) RecountHelpful(ctx context.Context, reviewID uuid.UUID) (int64, error) {
	defer observability.TrackQuery("recount_helpful_count", "reviews")()
	db := conn(ctx, r.db)
	var n int64
	if err := db.Model(&models.ReviewVote{}).
		Where("review_id = ? AND state = ? AND is_helpful = ?", reviewID, models.EdgeActive, true).
		Count(&n).Error; err != nil {
		return 0, err
	}
	if err := db.Model(&models.Review{}).Where("id = ?", reviewID).UpdateColumn("helpful_count", n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
