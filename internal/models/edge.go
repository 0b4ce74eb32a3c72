package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EdgeState is the state of a reusable relationship row. Rows are never
// deleted; toggling moves them between active and inactive.
type EdgeState string

const (
	// EdgeActive marks a relationship that currently counts.
	EdgeActive EdgeState = "active"
	// EdgeInactive marks a relationship that was withdrawn.
	EdgeInactive EdgeState = "inactive"
)

// Toggle returns the state an edge moves to when its owner toggles it.
func (s EdgeState) Toggle() EdgeState {
	if s == EdgeActive {
		return EdgeInactive
	}
	return EdgeActive
}

// IsActive reports whether the edge counts toward denormalized counters.
func (s EdgeState) IsActive() bool {
	return s == EdgeActive
}

// Value implements driver.Valuer.
func (s EdgeState) Value() (driver.Value, error) {
	if s == "" {
		return string(EdgeActive), nil
	}
	return string(s), nil
}

// Scan implements sql.Scanner and rejects unknown states.
func (s *EdgeState) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("edge state: unsupported type %T", value)
	}
	switch EdgeState(raw) {
	case EdgeActive, EdgeInactive:
		*s = EdgeState(raw)
		return nil
	}
	return fmt.Errorf("edge state: unknown value %q", raw)
}

// ToggleAction is the outcome reported to callers after a toggle.
type ToggleAction string

const (
	ActionFollowed    ToggleAction = "followed"
	ActionUnfollowed  ToggleAction = "unfollowed"
	ActionLiked       ToggleAction = "liked"
	ActionUnliked     ToggleAction = "unliked"
	ActionSaved       ToggleAction = "saved"
	ActionUnsaved     ToggleAction = "unsaved"
	ActionVoted       ToggleAction = "voted"
	ActionVoteRemoved ToggleAction = "vote_removed"
)

// Edge holds the columns shared by every toggle relationship.
type Edge struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	State     EdgeState `gorm:"type:varchar(16);not null;default:'active';index" json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an id and defaults the state to active.
func (e *Edge) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.State == "" {
		e.State = EdgeActive
	}
	return nil
}

// Follow is a directed follower -> following edge.
type Follow struct {
	Edge
	FollowerID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair" json:"follower_id"`
	FollowingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair;index:idx_follows_following" json:"following_id"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "follows"
}

// Like is a user -> post edge.
type Like struct {
	Edge
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_likes_user_post;index:idx_likes_post" json:"post_id"`
}

// TableName specifies the table name for GORM
func (Like) TableName() string {
	return "likes"
}

// SavedPost is a user -> post edge with trip-planning metadata.
type SavedPost struct {
	Edge
	UserID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_saved_posts_user_post" json:"user_id"`
	PostID           uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_saved_posts_user_post;index:idx_saved_posts_post" json:"post_id"`
	CollectionName   *string    `gorm:"size:120" json:"collection_name,omitempty"`
	LocationCategory *string    `gorm:"size:200" json:"location_category,omitempty"`
	PersonalNotes    *string    `gorm:"type:text" json:"personal_notes,omitempty"`
	TripPlanID       *uuid.UUID `gorm:"type:uuid" json:"trip_plan_id,omitempty"`
}

// TableName specifies the table name for GORM
func (SavedPost) TableName() string {
	return "saved_posts"
}

// CollectionSummary counts a user's active saves in one collection.
type CollectionSummary struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// LocationSummary counts a user's active saves per location category.
type LocationSummary struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}
