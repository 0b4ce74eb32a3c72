package service

import (
	"context"
	"errors"
	"testing"

	"wanderfeed/internal/models"
	"wanderfeed/internal/recommend"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	drafts []recommend.Draft
	err    error
	got    recommend.Request
}

func (g *stubGenerator) Generate(_ context.Context, req recommend.Request) ([]recommend.Draft, error) {
	g.got = req
	return g.drafts, g.err
}

func TestRecommendationService_PersistsDrafts(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t)
	gen := &stubGenerator{drafts: []recommend.Draft{
		{
			Title:       "Sunrise at Belem",
			Description: "Watch the sun come up over the Tagus",
			Thumbnail:   "https://img.example.com/belem.jpg",
			Rating:      4.7,
			PriceRange:  "$",
			Tags:        []string{"sunrise"},
			BookingInfo: recommend.DraftBooking{Price: "Free", AffiliateCode: "BELEM"},
		},
		{Title: "Fado night"},
	}}
	svc := NewRecommendationService(gen, env.engagement)

	posts, err := svc.Generate(bg, user.ID, RecommendationInput{Goals: []string{"culture"}, Location: "Lisbon, Portugal"})
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, []string{"culture"}, gen.got.Goals)
	assert.Equal(t, user.ID, gen.got.UserID)

	first := env.reloadPost(t, posts[0].ID)
	assert.Equal(t, "Watch the sun come up over the Tagus", first.Caption)
	assert.Equal(t, models.StringList{"https://img.example.com/belem.jpg"}, first.Images)
	assert.Equal(t, "Lisbon, Portugal", first.LocationName)
	assert.Equal(t, "AI Generated", first.Country)
	require.NotNil(t, first.City)
	assert.Equal(t, "Lisbon", *first.City)
	assert.Equal(t, models.PostTypeActivity, first.PostType)
	assert.Equal(t, models.CategoryAIRecommendation, first.Category)
	assert.True(t, first.IsPublished)
	assert.True(t, first.IsFeatured)
	require.NotNil(t, first.BookingInfo)
	assert.Equal(t, "BELEM", first.BookingInfo.AffiliateCode)

	second := env.reloadPost(t, posts[1].ID)
	assert.Equal(t, "Fado night", second.Caption)
	assert.Empty(t, second.Images)
	require.NotNil(t, second.BookingInfo)
	assert.NotEmpty(t, second.BookingInfo.AffiliateCode)

	assert.Equal(t, int64(2), env.reloadUser(t, user.ID).PostsCount)
}

func TestRecommendationService_LocationWithoutComma(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t)
	svc := NewRecommendationService(&stubGenerator{drafts: []recommend.Draft{{Title: "x"}}}, env.engagement)

	posts, err := svc.Generate(bg, user.ID, RecommendationInput{Goals: []string{"food"}, Location: "Tokyo"})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Nil(t, posts[0].City)
	assert.Equal(t, "Tokyo", posts[0].LocationName)

	posts, err = svc.Generate(bg, user.ID, RecommendationInput{Goals: []string{"food"}})
	require.NoError(t, err)
	assert.Equal(t, "Unknown", posts[0].LocationName)
}

func TestRecommendationService_GeneratorFailureYieldsEmpty(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t)

	for _, gen := range []*stubGenerator{
		{err: errors.New("provider timeout")},
		{drafts: nil},
	} {
		posts, err := NewRecommendationService(gen, env.engagement).Generate(bg, user.ID, RecommendationInput{Goals: []string{"x"}})
		require.NoError(t, err)
		assert.NotNil(t, posts)
		assert.Empty(t, posts)
	}

	var count int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}
