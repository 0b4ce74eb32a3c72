// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostType classifies what a post describes.
type PostType string

const (
	PostTypeExperience PostType = "experience"
	PostTypeFood       PostType = "food"
	PostTypeHotel      PostType = "hotel"
	PostTypeActivity   PostType = "activity"
	PostTypeTip        PostType = "tip"
)

// Valid reports whether t is a known post type.
func (t PostType) Valid() bool {
	switch t {
	case PostTypeExperience, PostTypeFood, PostTypeHotel, PostTypeActivity, PostTypeTip:
		return true
	}
	return false
}

// CategoryAIRecommendation marks posts produced by the recommendation generator.
const CategoryAIRecommendation = "AI_RECOMMENDATION"

// Post represents a piece of travel content.
type Post struct {
	ID                  uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Caption             string       `gorm:"type:text;not null" json:"caption"`
	Images              StringList   `gorm:"type:text" json:"images"`
	LocationName        string       `gorm:"size:255;not null" json:"location_name"`
	LocationCoordinates *Coordinates `gorm:"type:text" json:"location_coordinates,omitempty"`
	Country             string       `gorm:"size:120;not null;index" json:"country"`
	City                *string      `gorm:"size:120;index" json:"city,omitempty"`
	PostType            PostType     `gorm:"type:varchar(32);not null" json:"post_type"`
	Category            string       `gorm:"size:64;not null;index" json:"category"`
	Tags                StringList   `gorm:"type:text" json:"tags"`
	LikesCount          int64        `gorm:"not null;default:0;index" json:"likes_count"`
	SavesCount          int64        `gorm:"not null;default:0" json:"saves_count"`
	CommentsCount       int64        `gorm:"not null;default:0" json:"comments_count"`
	SharesCount         int64        `gorm:"not null;default:0" json:"shares_count"`
	BookingInfo         *BookingInfo `gorm:"type:text" json:"booking_info,omitempty"`
	ExperienceRating    *float64     `json:"experience_rating,omitempty"`
	PriceRange          *string      `gorm:"size:16" json:"price_range,omitempty"`
	IsPublished         bool         `gorm:"not null;index" json:"is_published"`
	IsFeatured          bool         `gorm:"not null;default:false;index" json:"is_featured"`
	IsSponsored         bool         `gorm:"not null;default:false" json:"is_sponsored"`
	CreatedAt           time.Time    `gorm:"index" json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns an id when the caller did not supply one.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// FeedItem is a post enriched for one viewer.
type FeedItem struct {
	Post
	Author  *AuthorProfile `json:"author,omitempty"`
	IsLiked bool           `json:"is_liked"`
	IsSaved bool           `json:"is_saved"`
}

// FeedSource tells clients which branch produced a feed page.
type FeedSource string

const (
	FeedSourceFollowing FeedSource = "following"
	FeedSourceTrending  FeedSource = "trending"
)
