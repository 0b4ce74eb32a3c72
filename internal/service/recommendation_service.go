package service

import (
	"context"
	"log/slog"
	"strings"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"
	"wanderfeed/internal/recommend"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// aiCountry is stored as the country of generated posts.
const aiCountry = "AI Generated"

// RecommendationInput is what the traveller asks for.
type RecommendationInput struct {
	Goals    []string `json:"goals" validate:"required,min=1,max=10,dive,required,max=100"`
	Location string   `json:"location" validate:"max=255"`
	Duration string   `json:"duration" validate:"max=64"`
}

// RecommendationService turns generator drafts into featured posts.
type RecommendationService struct {
	gen        recommend.Generator
	engagement *EngagementService
}

func NewRecommendationService(gen recommend.Generator, engagement *EngagementService) *RecommendationService {
	return &RecommendationService{gen: gen, engagement: engagement}
}

// Generate asks the generator for drafts and persists each as a published,
// featured post authored by userID. Generator failures yield an empty list.
func (s *RecommendationService) Generate(ctx context.Context, userID uuid.UUID, in RecommendationInput) ([]models.Post, error) {
	ctx, span := observability.StartSpan(ctx, "recommendations.generate", attribute.Int("goals", len(in.Goals)))
	defer span.End()

	drafts, err := s.gen.Generate(ctx, recommend.Request{
		UserID:   userID,
		Goals:    in.Goals,
		Location: in.Location,
		Duration: in.Duration,
	})
	if err != nil {
		span.Fail(err)
		observability.RecommendationsTotal.WithLabelValues(observability.OutcomeError).Inc()
		middleware.Logger.WarnContext(ctx, "recommendation generation failed", slog.String("error", err.Error()))
		return []models.Post{}, nil
	}
	if len(drafts) == 0 {
		observability.RecommendationsTotal.WithLabelValues(observability.OutcomeEmpty).Inc()
		return []models.Post{}, nil
	}

	posts := make([]models.Post, 0, len(drafts))
	for _, d := range drafts {
		post := draftToPost(userID, in.Location, d)
		if err := s.engagement.insertPost(ctx, post); err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}

	span.Set(attribute.Int("posts", len(posts)))
	observability.RecommendationsTotal.WithLabelValues(observability.OutcomeSuccess).Inc()
	middleware.Logger.InfoContext(ctx, "recommendations generated", slog.Int("count", len(posts)))
	return posts, nil
}

func draftToPost(userID uuid.UUID, location string, d recommend.Draft) *models.Post {
	caption := d.Description
	if caption == "" {
		caption = d.Title
	}

	locationName := strings.TrimSpace(location)
	if locationName == "" {
		locationName = "Unknown"
	}
	var city *string
	if head, _, ok := strings.Cut(locationName, ","); ok {
		city = nonEmpty(strings.TrimSpace(head))
	}

	images := models.StringList{}
	if img := d.Image(); img != "" {
		images = append(images, img)
	}
	tags := models.StringList{}
	if d.Tags != nil {
		tags = d.Tags
	}

	booking := &models.BookingInfo{
		Price:         d.BookingInfo.Price,
		AffiliateCode: d.BookingInfo.AffiliateCode,
		Duration:      firstNonEmpty(d.BookingInfo.Duration, d.Duration),
		Rating:        d.BookingInfo.Rating,
		PriceRange:    firstNonEmpty(d.BookingInfo.PriceRange, d.PriceRange),
	}
	if booking.Rating == 0 {
		booking.Rating = d.Rating
	}
	if booking.AffiliateCode == "" {
		booking.AffiliateCode = uuid.NewString()
	}

	zero := 0.0
	return &models.Post{
		UserID:           userID,
		Caption:          caption,
		Images:           images,
		LocationName:     locationName,
		Country:          aiCountry,
		City:             city,
		PostType:         models.PostTypeActivity,
		Category:         models.CategoryAIRecommendation,
		Tags:             tags,
		BookingInfo:      booking,
		ExperienceRating: &zero,
		PriceRange:       nonEmpty(truncate(d.PriceRange, 16)),
		IsPublished:      true,
		IsFeatured:       true,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
