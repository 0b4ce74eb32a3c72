package seed

import (
	"context"
	"fmt"
	"log/slog"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/service"

	"gorm.io/gorm"
)

// Options controls how much demo data is created.
type Options struct {
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	LikesPerUser   int
	SavesPerUser   int
	ReviewsPerUser int
	MaxDays        int
	Seed           int64
	Clean          bool
	Destinations   []Destination
}

// DefaultOptions seeds a small but well-connected graph.
func DefaultOptions() Options {
	return Options{
		Users:          25,
		PostsPerUser:   4,
		FollowsPerUser: 6,
		LikesPerUser:   12,
		SavesPerUser:   5,
		ReviewsPerUser: 3,
		MaxDays:        60,
		Seed:           42,
	}
}

// Reconciler recomputes denormalized counters after bulk inserts.
type Reconciler interface {
	ReconcileCounters(ctx context.Context) (*service.ReconcileReport, error)
}

// Result summarizes one seeding run.
type Result struct {
	Users   int `json:"users"`
	Posts   int `json:"posts"`
	Follows int `json:"follows"`
	Likes   int `json:"likes"`
	Saves   int `json:"saves"`
	Reviews int `json:"reviews"`
}

// Seeder writes demo data straight to the database and then lets the
// reconciler derive every counter from the inserted edges.
type Seeder struct {
	db         *gorm.DB
	reconciler Reconciler
}

func NewSeeder(db *gorm.DB, reconciler Reconciler) *Seeder {
	return &Seeder{db: db, reconciler: reconciler}
}

// Run seeds according to opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Users < 2 {
		return nil, fmt.Errorf("seed: at least 2 users are required, got %d", opts.Users)
	}
	f := NewFactory(opts.Seed, opts.Destinations, opts.MaxDays)
	db := s.db.WithContext(ctx)

	if opts.Clean {
		if err := s.Clear(ctx); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	users := make([]*models.User, opts.Users)
	for i := range users {
		users[i] = f.User()
	}
	if err := db.CreateInBatches(users, 100).Error; err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	res.Users = len(users)

	var follows []*models.Follow
	for i, u := range users {
		for _, j := range f.sample(len(users), opts.FollowsPerUser, i) {
			follows = append(follows, &models.Follow{FollowerID: u.ID, FollowingID: users[j].ID})
		}
	}
	if err := createAll(db, follows); err != nil {
		return nil, fmt.Errorf("seed follows: %w", err)
	}
	res.Follows = len(follows)

	var posts []*models.Post
	for _, u := range users {
		for n := 0; n < opts.PostsPerUser; n++ {
			posts = append(posts, f.Post(u))
		}
	}
	if err := createAll(db, posts); err != nil {
		return nil, fmt.Errorf("seed posts: %w", err)
	}
	res.Posts = len(posts)

	var (
		likes   []*models.Like
		saves   []*models.SavedPost
		reviews []*models.Review
	)
	for _, u := range users {
		for _, j := range f.sample(len(posts), opts.LikesPerUser, -1) {
			likes = append(likes, &models.Like{UserID: u.ID, PostID: posts[j].ID})
		}
		for _, j := range f.sample(len(posts), opts.SavesPerUser, -1) {
			saves = append(saves, f.Save(u, posts[j]))
		}
		for _, j := range f.sample(len(posts), opts.ReviewsPerUser, -1) {
			if posts[j].UserID == u.ID {
				continue
			}
			reviews = append(reviews, f.Review(u, posts[j]))
		}
	}
	if err := createAll(db, likes); err != nil {
		return nil, fmt.Errorf("seed likes: %w", err)
	}
	if err := createAll(db, saves); err != nil {
		return nil, fmt.Errorf("seed saves: %w", err)
	}
	if err := createAll(db, reviews); err != nil {
		return nil, fmt.Errorf("seed reviews: %w", err)
	}
	res.Likes, res.Saves, res.Reviews = len(likes), len(saves), len(reviews)

	report, err := s.reconciler.ReconcileCounters(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile counters: %w", err)
	}
	middleware.Logger.InfoContext(ctx, "seed complete",
		slog.Int("users", res.Users),
		slog.Int("posts", res.Posts),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes),
		slog.Int("saves", res.Saves),
		slog.Int("reviews", res.Reviews),
		slog.Int64("counters_fixed", report.Total),
	)
	return res, nil
}

func createAll[T any](db *gorm.DB, rows []*T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.CreateInBatches(rows, 200).Error
}

// Clear deletes every row the seeder can create, children first.
func (s *Seeder) Clear(ctx context.Context) error {
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []any{
		&models.ReviewVote{},
		&models.Review{},
		&models.SavedPost{},
		&models.Like{},
		&models.Follow{},
		&models.Post{},
		&models.User{},
	} {
		if err := db.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}
