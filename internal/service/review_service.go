package service

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"wanderfeed/internal/database"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"
	"wanderfeed/internal/repository"

	"github.com/google/uuid"
)

const maxCommentLen = 5000

// ReviewService owns reviews, helpfulness votes and post rating stats.
type ReviewService struct {
	tx      repository.Transactor
	posts   repository.PostRepository
	reviews repository.ReviewRepository
}

func NewReviewService(tx repository.Transactor, posts repository.PostRepository, reviews repository.ReviewRepository) *ReviewService {
	return &ReviewService{tx: tx, posts: posts, reviews: reviews}
}

// UpdateReviewInput is a partial update; nil fields are left unchanged.
type UpdateReviewInput struct {
	Rating  *int    `json:"rating"`
	Comment *string `json:"comment"`
}

type VoteResult struct {
	Action       models.ToggleAction `json:"action"`
	IsHelpful    bool                `json:"is_helpful"`
	HelpfulCount int64               `json:"helpful_count"`
}

type ReviewPage struct {
	Reviews       []models.ReviewWithAuthor `json:"reviews"`
	Total         int64                     `json:"total"`
	AverageRating float64                   `json:"average_rating"`
	Page          int                       `json:"page"`
	Limit         int                       `json:"limit"`
}

func validateRating(rating int) error {
	if !models.ValidRating(rating) {
		return models.NewValidationError("Rating must be between 1 and 5")
	}
	return nil
}

func normalizeComment(comment *string) (*string, error) {
	if comment == nil {
		return nil, nil
	}
	c := strings.TrimSpace(*comment)
	if len(c) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 5000 characters)")
	}
	if c == "" {
		return nil, nil
	}
	return &c, nil
}

func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

func recordReviewOp(op string, err error) {
	observability.ReviewOpsTotal.WithLabelValues(op, observability.OutcomeOf(err)).Inc()
}

// CreateReview adds the caller's review of a post. At most one active
// review may exist per (user, post).
func (s *ReviewService) CreateReview(ctx context.Context, userID, postID uuid.UUID, rating int, comment *string) (review *models.Review, err error) {
	defer func() { recordReviewOp("create", err) }()

	if err := validateRating(rating); err != nil {
		return nil, err
	}
	text, err := normalizeComment(comment)
	if err != nil {
		return nil, err
	}

	review = &models.Review{PostID: postID, UserID: userID, Rating: rating, Comment: text}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.posts.LockForUpdate(ctx, postID); err != nil {
			return err
		}
		exists, err := s.reviews.HasActive(ctx, userID, postID)
		if err != nil {
			return err
		}
		if exists {
			return models.NewConflictError("You have already reviewed this post")
		}
		if err := s.reviews.Create(ctx, review); err != nil {
			if database.IsUniqueViolation(err) {
				return models.NewConflictError("You have already reviewed this post")
			}
			return err
		}
		return s.recomputeStats(ctx, postID)
	})
	if err != nil {
		return nil, wrapErr(err)
	}

	middleware.Logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID.String()),
		slog.String("post_id", postID.String()),
	)
	return review, nil
}

// lockOwned locks an active review owned by userID. Reviews owned by others
// are reported as not found.
func (s *ReviewService) lockOwned(ctx context.Context, userID, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.reviews.GetActiveForUpdate(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.UserID != userID {
		return nil, models.NewNotFoundError("Review", reviewID)
	}
	if _, err := s.posts.LockForUpdate(ctx, review.PostID); err != nil {
		return nil, err
	}
	return review, nil
}

// UpdateReview changes the supplied fields of the caller's active review.
func (s *ReviewService) UpdateReview(ctx context.Context, userID, reviewID uuid.UUID, in UpdateReviewInput) (review *models.Review, err error) {
	defer func() { recordReviewOp("update", err) }()

	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return nil, err
		}
	}
	text, err := normalizeComment(in.Comment)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, userID, reviewID)
		if err != nil {
			return err
		}
		if in.Rating != nil {
			r.Rating = *in.Rating
		}
		if in.Comment != nil {
			r.Comment = text
		}
		if err := s.reviews.Update(ctx, r); err != nil {
			return err
		}
		review = r
		return s.recomputeStats(ctx, r.PostID)
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return review, nil
}

// DeleteReview soft-deletes the caller's active review.
func (s *ReviewService) DeleteReview(ctx context.Context, userID, reviewID uuid.UUID) (err error) {
	defer func() { recordReviewOp("delete", err) }()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.lockOwned(ctx, userID, reviewID)
		if err != nil {
			return err
		}
		r.Status = models.ReviewDeleted
		if err := s.reviews.Update(ctx, r); err != nil {
			return err
		}
		return s.recomputeStats(ctx, r.PostID)
	})
	return wrapErr(err)
}

// VoteReview casts, flips or retracts the caller's helpfulness vote.
func (s *ReviewService) VoteReview(ctx context.Context, userID, reviewID uuid.UUID, isHelpful bool) (result *VoteResult, err error) {
	defer func() { recordReviewOp("vote", err) }()

	result = &VoteResult{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.reviews.GetActiveForUpdate(ctx, reviewID); err != nil {
			return err
		}

		vote, err := s.reviews.FindVoteForUpdate(ctx, userID, reviewID)
		if err != nil {
			return err
		}
		if vote == nil {
			fresh := &models.ReviewVote{UserID: userID, ReviewID: reviewID, IsHelpful: isHelpful}
			inserted, err := s.reviews.InsertVoteIfAbsent(ctx, fresh)
			if err != nil {
				return err
			}
			if inserted {
				result.Action = models.ActionVoted
				result.IsHelpful = isHelpful
				result.HelpfulCount, err = s.reviews.RecountHelpful(ctx, reviewID)
				return err
			}
			if vote, err = s.reviews.FindVoteForUpdate(ctx, userID, reviewID); err != nil {
				return err
			}
			if vote == nil {
				return errEdgeVanished
			}
		}

		result.Action = vote.Apply(isHelpful)
		result.IsHelpful = vote.IsHelpful
		if err := s.reviews.UpdateVote(ctx, vote); err != nil {
			return err
		}
		result.HelpfulCount, err = s.reviews.RecountHelpful(ctx, reviewID)
		return err
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return result, nil
}

// RecomputePostReviewStats rewrites a post's rating and review count from
// its active reviews.
func (s *ReviewService) RecomputePostReviewStats(ctx context.Context, postID uuid.UUID) error {
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.posts.LockForUpdate(ctx, postID); err != nil {
			return err
		}
		return s.recomputeStats(ctx, postID)
	})
	return wrapErr(err)
}

func (s *ReviewService) recomputeStats(ctx context.Context, postID uuid.UUID) error {
	stats, err := s.reviews.ActiveStats(ctx, postID)
	if err != nil {
		return err
	}
	rating := 0.0
	if stats.Count > 0 {
		rating = roundRating(stats.Average)
	}
	return s.posts.SetReviewStats(ctx, postID, &rating, stats.Count)
}

// ListPostReviews pages through a post's active reviews, most helpful first.
func (s *ReviewService) ListPostReviews(ctx context.Context, postID uuid.UUID, page, limit int) (*ReviewPage, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, wrapErr(err)
	}
	p := NewPage(page, limit)
	reviews, total, err := s.reviews.ListActiveByPost(ctx, postID, p.Limit, p.Offset())
	if err != nil {
		return nil, wrapErr(err)
	}
	stats, err := s.reviews.ActiveStats(ctx, postID)
	if err != nil {
		return nil, wrapErr(err)
	}
	if reviews == nil {
		reviews = []models.ReviewWithAuthor{}
	}
	avg := 0.0
	if stats.Count > 0 {
		avg = roundRating(stats.Average)
	}
	return &ReviewPage{
		Reviews:       reviews,
		Total:         total,
		AverageRating: avg,
		Page:          p.Page,
		Limit:         p.Limit,
	}, nil
}
