package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a traveller account. Accounts are never hard deleted;
// deactivation hides the profile and stamps DeactivatedAt.
type User struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID           *string    `gorm:"size:191;uniqueIndex" json:"-"`
	Username             string     `gorm:"size:100;not null;index" json:"username"`
	Email                string     `gorm:"size:255;index" json:"email,omitempty"`
	DisplayName          string     `gorm:"size:200" json:"display_name"`
	Bio                  string     `gorm:"type:text" json:"bio"`
	ProfileImageURL      string     `json:"profile_image_url"`
	CoverImageURL        string     `json:"cover_image_url"`
	FollowersCount       int64      `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount       int64      `gorm:"not null;default:0" json:"following_count"`
	PostsCount           int64      `gorm:"not null;default:0" json:"posts_count"`
	IsVerified           bool       `gorm:"not null;default:false" json:"is_verified"`
	IsCreator            bool       `gorm:"not null;default:false" json:"is_creator"`
	CreatorTier          string     `gorm:"size:50" json:"creator_tier,omitempty"`
	Location             string     `gorm:"size:200" json:"location,omitempty"`
	TravelStyle          StringList `gorm:"type:text" json:"travel_style"`
	FavoriteDestinations StringList `gorm:"type:text" json:"favorite_destinations"`
	IsPrivate            bool       `gorm:"not null;default:false" json:"is_private"`
	AllowMessages        bool       `gorm:"not null" json:"allow_messages"`
	EmailNotifications   bool       `gorm:"not null" json:"email_notifications"`
	DeactivatedAt        *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	LastActive           time.Time  `json:"last_active"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns an id and initial activity timestamp.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.LastActive.IsZero() {
		u.LastActive = time.Now().UTC()
	}
	return nil
}

// IsDeactivated reports whether the account was removed by its owner.
func (u *User) IsDeactivated() bool {
	return u.DeactivatedAt != nil
}

// AuthorProfile is the public subset of a user embedded in feed items and reviews.
type AuthorProfile struct {
	ID              uuid.UUID `json:"id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	ProfileImageURL string    `json:"profile_image_url"`
	IsVerified      bool      `json:"is_verified"`
	IsCreator       bool      `json:"is_creator"`
	FollowersCount  int64     `json:"followers_count"`
}
