// Package recommend produces AI-generated trip recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Request describes what the traveller is looking for.
type Request struct {
	UserID   uuid.UUID
	Goals    []string
	Location string
	Duration string
}

// DraftBooking is the booking block of a generated recommendation.
type DraftBooking struct {
	Price         string  `json:"price"`
	AffiliateCode string  `json:"affiliateCode"`
	Duration      string  `json:"duration"`
	Rating        float64 `json:"rating"`
	PriceRange    string  `json:"priceRange"`
}

// Draft is one generated recommendation, not yet persisted.
type Draft struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Thumbnail   string       `json:"thumbnail"`
	ImageURL    string       `json:"imageUrl"`
	Rating      float64      `json:"rating"`
	PriceRange  string       `json:"priceRange"`
	Duration    string       `json:"duration"`
	Tags        []string     `json:"tags"`
	BookingInfo DraftBooking `json:"bookingInfo"`
}

// Image returns the draft's image URL under either field name.
func (d Draft) Image() string {
	if d.ImageURL != "" {
		return d.ImageURL
	}
	return d.Thumbnail
}

// Generator turns a request into drafts.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Draft, error)
}

// ErrMalformed reports a provider response that is not a draft list.
var ErrMalformed = errors.New("recommend: malformed provider response")

// ParseDrafts decodes a provider reply. It accepts a bare JSON array or an
// object wrapping the array under "recommendations", optionally inside a
// markdown code fence.
func ParseDrafts(content string) ([]Draft, error) {
	body := stripFence(content)
	if body == "" {
		return nil, ErrMalformed
	}

	if strings.HasPrefix(body, "[") {
		var drafts []Draft
		if err := json.Unmarshal([]byte(body), &drafts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return drafts, nil
	}

	var wrapped struct {
		Recommendations []Draft `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return wrapped.Recommendations, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Unconfigured stands in when no provider is configured. Every call fails,
// which callers treat as "no recommendations".
type Unconfigured struct{}

func (Unconfigured) Generate(context.Context, Request) ([]Draft, error) {
	return nil, ErrUnavailable
}
