// Package seed creates demo data for development databases. It is never
// used by the request path.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"wanderfeed/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

var postTypes = []models.PostType{
	models.PostTypeExperience,
	models.PostTypeFood,
	models.PostTypeHotel,
	models.PostTypeActivity,
	models.PostTypeTip,
}

var priceRanges = []string{"$", "$$", "$$$", "$$$$"}

var collectionNames = []string{"Bucket list", "Next summer", "Weekend ideas", "Food spots"}

var travelStyles = []string{"backpacker", "luxury", "foodie", "adventure", "slow travel", "family"}

// Factory builds seed entities without persisting them.
type Factory struct {
	faker        *gofakeit.Faker
	rng          *rand.Rand
	destinations []Destination
	now          time.Time
	maxDays      int
}

// NewFactory returns a Factory. The same seed yields the same data.
func NewFactory(seed int64, destinations []Destination, maxDays int) *Factory {
	if len(destinations) == 0 {
		destinations = DefaultDestinations
	}
	if maxDays <= 0 {
		maxDays = 60
	}
	return &Factory{
		faker:        gofakeit.New(seed),
		rng:          rand.New(rand.NewSource(seed)), //nolint:gosec // demo data only
		destinations: destinations,
		now:          time.Now().UTC(),
		maxDays:      maxDays,
	}
}

// User builds a user with a synthetic external id so tokens can be minted
// for it during local testing.
func (f *Factory) User() *models.User {
	id := uuid.New()
	ext := "seed_" + id.String()[:12]
	first, last := f.faker.FirstName(), f.faker.LastName()
	home := f.pick()
	return &models.User{
		ID:                   id,
		ExternalID:           &ext,
		Username:             strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, f.rng.Intn(1000))),
		Email:                f.faker.Email(),
		DisplayName:          first + " " + last,
		Bio:                  f.faker.Sentence(12),
		ProfileImageURL:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", id),
		IsVerified:           f.rng.Intn(10) == 0,
		IsCreator:            f.rng.Intn(5) == 0,
		Location:             home.Country,
		TravelStyle:          models.StringList{travelStyles[f.rng.Intn(len(travelStyles))]},
		FavoriteDestinations: models.StringList{f.pick().Name, f.pick().Name},
		AllowMessages:        true,
		EmailNotifications:   true,
		CreatedAt:            f.past(),
		LastActive:           f.now,
	}
}

// Post builds a published post about a random destination.
func (f *Factory) Post(author *models.User) *models.Post {
	d := f.pick()
	category := "sightseeing"
	if len(d.Categories) > 0 {
		category = d.Categories[f.rng.Intn(len(d.Categories))]
	}
	var city *string
	if d.City != "" {
		c := d.City
		city = &c
	}
	price := priceRanges[f.rng.Intn(len(priceRanges))]
	var coords *models.Coordinates
	if d.Lat != 0 || d.Lng != 0 {
		coords = &models.Coordinates{Lat: d.Lat, Lng: d.Lng}
	}
	rating := 0.0
	created := f.past()

	post := &models.Post{
		ID:                  uuid.New(),
		UserID:              author.ID,
		Caption:             f.faker.Paragraph(1, 2, 12, " "),
		Images:              models.StringList{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())},
		LocationName:        d.Name,
		LocationCoordinates: coords,
		Country:             d.Country,
		City:                city,
		PostType:            postTypes[f.rng.Intn(len(postTypes))],
		Category:            category,
		Tags:                models.StringList{category, strings.ToLower(d.Country)},
		ExperienceRating:    &rating,
		PriceRange:          &price,
		IsPublished:         true,
		IsFeatured:          f.rng.Intn(15) == 0,
		CreatedAt:           created,
		UpdatedAt:           created,
	}
	if post.PostType == models.PostTypeActivity || post.PostType == models.PostTypeHotel {
		post.BookingInfo = &models.BookingInfo{
			Price:         fmt.Sprintf("$%.0f", f.faker.Price(20, 400)),
			BookingURL:    f.faker.URL(),
			AffiliateCode: f.faker.UUID(),
			PriceRange:    price,
		}
	}
	return post
}

// Save builds an active save, sometimes filed into a collection.
func (f *Factory) Save(user *models.User, post *models.Post) *models.SavedPost {
	s := &models.SavedPost{UserID: user.ID, PostID: post.ID}
	if f.rng.Intn(2) == 0 {
		name := collectionNames[f.rng.Intn(len(collectionNames))]
		s.CollectionName = &name
	}
	loc := post.Country
	if post.City != nil {
		loc = *post.City + ", " + post.Country
	}
	s.LocationCategory = &loc
	return s
}

// Review builds an active review with a rating skewed towards positive.
func (f *Factory) Review(user *models.User, post *models.Post) *models.Review {
	rating := models.MaxRating - f.rng.Intn(3)
	var comment *string
	if f.rng.Intn(3) > 0 {
		c := f.faker.Sentence(15)
		comment = &c
	}
	return &models.Review{UserID: user.ID, PostID: post.ID, Rating: rating, Comment: comment}
}

// sample returns up to n distinct indexes in [0, size) other than skip.
func (f *Factory) sample(size, n, skip int) []int {
	out := make([]int, 0, n)
	for _, i := range f.rng.Perm(size) {
		if i == skip {
			continue
		}
		if len(out) == n {
			break
		}
		out = append(out, i)
	}
	return out
}

func (f *Factory) pick() Destination {
	return f.destinations[f.rng.Intn(len(f.destinations))]
}

func (f *Factory) past() time.Time {
	back := time.Duration(f.rng.Intn(f.maxDays*24)) * time.Hour
	return f.now.Add(-back - time.Duration(f.rng.Intn(60))*time.Minute)
}
