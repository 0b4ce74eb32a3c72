package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReviewStatus tracks a review through absent -> active -> deleted.
// Deleted reviews never come back; a new review is created instead.
type ReviewStatus string

const (
	ReviewActive  ReviewStatus = "active"
	ReviewDeleted ReviewStatus = "deleted"
)

// Value implements driver.Valuer.
func (s ReviewStatus) Value() (driver.Value, error) {
	if s == "" {
		return string(ReviewActive), nil
	}
	return string(s), nil
}

// Scan implements sql.Scanner and rejects unknown statuses.
func (s *ReviewStatus) Scan(value interface{}) error {
	raw, ok := textValue(value)
	if !ok {
		return fmt.Errorf("review status: unsupported type %T", value)
	}
	switch ReviewStatus(raw) {
	case ReviewActive, ReviewDeleted:
		*s = ReviewStatus(raw)
		return nil
	}
	return fmt.Errorf("review status: unknown value %q", raw)
}

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a rated write-up of a post. At most one active review exists
// per (user, post); a partial unique index enforces it.
type Review struct {
	ID           uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	PostID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID       uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Rating       int          `gorm:"not null" json:"rating"`
	Comment      *string      `gorm:"type:text" json:"comment,omitempty"`
	HelpfulCount int64        `gorm:"not null;default:0" json:"helpful_count"`
	Status       ReviewStatus `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Review) TableName() string {
	return "reviews"
}

// BeforeCreate assigns an id and marks new reviews active.
func (r *Review) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReviewActive
	}
	return nil
}

// ValidRating reports whether rating is within the accepted scale.
func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}

// ReviewWithAuthor is a review joined with the author's display fields.
type ReviewWithAuthor struct {
	Review
	Username        string `json:"username"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
	IsVerified      bool   `json:"is_verified"`
}

// ReviewVote records whether a user found a review helpful.
type ReviewVote struct {
	Edge
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_votes_user_review" json:"user_id"`
	ReviewID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_review_votes_user_review;index:idx_review_votes_review" json:"review_id"`
	IsHelpful bool      `gorm:"not null" json:"is_helpful"`
}

// TableName specifies the table name for GORM
func (ReviewVote) TableName() string {
	return "review_votes"
}

// Apply casts a vote with the given polarity on an existing row. Repeating
// the active polarity retracts the vote; anything else sets the polarity
// and activates it. It returns the action taken.
func (v *ReviewVote) Apply(isHelpful bool) ToggleAction {
	if v.State.IsActive() && v.IsHelpful == isHelpful {
		v.State = EdgeInactive
		return ActionVoteRemoved
	}
	v.IsHelpful = isHelpful
	v.State = EdgeActive
	return ActionVoted
}
