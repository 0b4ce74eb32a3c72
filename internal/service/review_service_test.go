package service

import (
	"strings"
	"testing"

	"wanderfeed/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCreateReview_RatingBounds(t *testing.T) {
	env := newTestEnv(t)
	author, reviewer := env.user(t), env.user(t)
	post := env.post(t, author.ID)

	for _, rating := range []int{0, 6, -1} {
		_, err := env.reviews.CreateReview(bg, reviewer.ID, post.ID, rating, nil)
		assertCode(t, err, models.CodeValidation)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Review{}).Count(&count).Error)
	assert.Zero(t, count, "rejected reviews must not be persisted")

	_, err := env.reviews.CreateReview(bg, reviewer.ID, post.ID, 4, strPtr(strings.Repeat("x", maxCommentLen+1)))
	assertCode(t, err, models.CodeValidation)
}

func TestCreateReview_StatsAndConflict(t *testing.T) {
	env := newTestEnv(t)
	author, r1, r2 := env.user(t), env.user(t), env.user(t)
	post := env.post(t, author.ID)

	_, err := env.reviews.CreateReview(bg, r1.ID, post.ID, 5, strPtr("  superb  "))
	require.NoError(t, err)
	review, err := env.reviews.CreateReview(bg, r2.ID, post.ID, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewActive, review.Status)

	p := env.reloadPost(t, post.ID)
	require.NotNil(t, p.ExperienceRating)
	assert.Equal(t, 4.5, *p.ExperienceRating)
	assert.Equal(t, int64(2), p.CommentsCount)

	_, err = env.reviews.CreateReview(bg, r1.ID, post.ID, 3, nil)
	assertCode(t, err, models.CodeConflict)

	_, err = env.reviews.CreateReview(bg, r1.ID, uuid.New(), 3, nil)
	assertCode(t, err, models.CodeNotFound)
}

func TestUpdateAndDeleteReview(t *testing.T) {
	env := newTestEnv(t)
	author, owner, other := env.user(t), env.user(t), env.user(t)
	post := env.post(t, author.ID)

	review, err := env.reviews.CreateReview(bg, owner.ID, post.ID, 2, nil)
	require.NoError(t, err)

	rating := 4
	_, err = env.reviews.UpdateReview(bg, other.ID, review.ID, UpdateReviewInput{Rating: &rating})
	assertCode(t, err, models.CodeNotFound)

	updated, err := env.reviews.UpdateReview(bg, owner.ID, review.ID, UpdateReviewInput{Rating: &rating, Comment: strPtr("better on day two")})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Rating)
	assert.Equal(t, 4.0, *env.reloadPost(t, post.ID).ExperienceRating)

	require.NoError(t, env.reviews.DeleteReview(bg, owner.ID, review.ID))
	p := env.reloadPost(t, post.ID)
	assert.Equal(t, 0.0, *p.ExperienceRating)
	assert.Equal(t, int64(0), p.CommentsCount)

	assertCode(t, env.reviews.DeleteReview(bg, owner.ID, review.ID), models.CodeNotFound)

	_, err = env.reviews.CreateReview(bg, owner.ID, post.ID, 5, nil)
	require.NoError(t, err, "a deleted review frees the slot")
}

func TestVoteReview(t *testing.T) {
	env := newTestEnv(t)
	author, reviewer, voter := env.user(t), env.user(t), env.user(t)
	post := env.post(t, author.ID)
	review, err := env.reviews.CreateReview(bg, reviewer.ID, post.ID, 5, nil)
	require.NoError(t, err)

	res, err := env.reviews.VoteReview(bg, voter.ID, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ActionVoted, res.Action)
	assert.Equal(t, int64(1), res.HelpfulCount)

	res, err = env.reviews.VoteReview(bg, voter.ID, review.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ActionVoteRemoved, res.Action)
	assert.Equal(t, int64(0), res.HelpfulCount)

	res, err = env.reviews.VoteReview(bg, voter.ID, review.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ActionVoted, res.Action)
	assert.False(t, res.IsHelpful)
	assert.Equal(t, int64(0), res.HelpfulCount)

	res, err = env.reviews.VoteReview(bg, voter.ID, review.ID, true)
	require.NoError(t, err)
	assert.True(t, res.IsHelpful)
	assert.Equal(t, int64(1), res.HelpfulCount)

	_, err = env.reviews.VoteReview(bg, voter.ID, uuid.New(), true)
	assertCode(t, err, models.CodeNotFound)
}

func TestListPostReviews(t *testing.T) {
	env := newTestEnv(t)
	author, a, b, voter := env.user(t), env.user(t), env.user(t), env.user(t)
	post := env.post(t, author.ID)

	_, err := env.reviews.CreateReview(bg, a.ID, post.ID, 3, nil)
	require.NoError(t, err)
	helpful, err := env.reviews.CreateReview(bg, b.ID, post.ID, 5, nil)
	require.NoError(t, err)
	_, err = env.reviews.VoteReview(bg, voter.ID, helpful.ID, true)
	require.NoError(t, err)

	page, err := env.reviews.ListPostReviews(bg, post.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 4.0, page.AverageRating)
	require.Len(t, page.Reviews, 2)
	assert.Equal(t, helpful.ID, page.Reviews[0].ID)
	assert.Equal(t, b.Username, page.Reviews[0].Username)

	empty := env.post(t, author.ID)
	page, err = env.reviews.ListPostReviews(bg, empty.ID, 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, page.Reviews)
	assert.Zero(t, page.AverageRating)

	_, err = env.reviews.ListPostReviews(bg, uuid.New(), 0, 10)
	assertCode(t, err, models.CodeNotFound)
}
