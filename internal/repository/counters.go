package repository

import (
	"context"
	"fmt"

	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"

	"gorm.io/gorm"
)

type counterSpec struct {
	name   string
	table  string
	column string
	source string
}

// Each source is a correlated subquery yielding the live value of column.
var counterSpecs = []counterSpec{
	{"followers_count", "users", "followers_count",
		"SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id AND follows.state = @active"},
	{"following_count", "users", "following_count",
		"SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id AND follows.state = @active"},
	{"posts_count", "users", "posts_count",
		"SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id"},
	{"likes_count", "posts", "likes_count",
		"SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id AND likes.state = @active"},
	{"saves_count", "posts", "saves_count",
		"SELECT COUNT(*) FROM saved_posts WHERE saved_posts.post_id = posts.id AND saved_posts.state = @active"},
	{"comments_count", "posts", "comments_count",
		"SELECT COUNT(*) FROM reviews WHERE reviews.post_id = posts.id AND reviews.status = @review_active"},
	{"experience_rating", "posts", "experience_rating",
		"SELECT COALESCE(ROUND(CAST(AVG(reviews.rating) AS NUMERIC), 1), 0) FROM reviews WHERE reviews.post_id = posts.id AND reviews.status = @review_active"},
	{"helpful_count", "reviews", "helpful_count",
		"SELECT COUNT(*) FROM review_votes WHERE review_votes.review_id = reviews.id AND review_votes.state = @active AND review_votes.is_helpful = @helpful"},
}

// CounterRepository repairs denormalized counters from their source rows.
type CounterRepository interface {
	// Reconcile rewrites every drifted counter and returns, per counter,
	// how many rows were corrected.
	Reconcile(ctx context.Context) (map[string]int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a CounterRepository over db.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

func (r *counterRepository) Reconcile(ctx context.Context) (map[string]int64, error) {
	args := map[string]interface{}{
		"active":        models.EdgeActive,
		"review_active": models.ReviewActive,
		"helpful":       true,
	}
	fixed := make(map[string]int64, len(counterSpecs))
	for _, spec := range counterSpecs {
		stmt := fmt.Sprintf(
			"UPDATE %[1]s SET %[2]s = (%[3]s) WHERE COALESCE(%[2]s, -1) <> (%[3]s)",
			spec.table, spec.column, spec.source,
		)
		done := observability.TrackQuery("reconcile_"+spec.name, spec.table)
		res := conn(ctx, r.db).Exec(stmt, args)
		done()
		if res.Error != nil {
			return fixed, fmt.Errorf("reconcile %s: %w", spec.name, res.Error)
		}
		fixed[spec.name] = res.RowsAffected
	}
	return fixed, nil
}
