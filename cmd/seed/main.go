// Command main fills a development database with demo travel data.
package main

import (
	"context"
	"flag"
	"log"

	"wanderfeed/internal/bootstrap"
	"wanderfeed/internal/config"
	"wanderfeed/internal/seed"
	"wanderfeed/internal/server"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.Users, "Number of users to create")
	postsPerUser := flag.Int("posts", defaults.PostsPerUser, "Posts per user")
	followsPerUser := flag.Int("follows", defaults.FollowsPerUser, "Follows per user")
	likesPerUser := flag.Int("likes", defaults.LikesPerUser, "Likes per user")
	savesPerUser := flag.Int("saves", defaults.SavesPerUser, "Saves per user")
	reviewsPerUser := flag.Int("reviews", defaults.ReviewsPerUser, "Reviews per user")
	randSeed := flag.Int64("seed", defaults.Seed, "Random seed")
	fixture := flag.String("destinations", "", "YAML file of destinations")
	shouldClean := flag.Bool("clean", false, "Delete existing data before seeding")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	destinations, err := seed.LoadDestinations(*fixture)
	if err != nil {
		log.Fatalf("Failed to load destinations: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.CloseAll(ctx) }()

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.External)
	if err != nil {
		log.Fatalf("Failed to build services: %v", err)
	}

	res, err := seed.NewSeeder(rt.DB, srv.Engagement()).Run(ctx, seed.Options{
		Users:          *numUsers,
		PostsPerUser:   *postsPerUser,
		FollowsPerUser: *followsPerUser,
		LikesPerUser:   *likesPerUser,
		SavesPerUser:   *savesPerUser,
		ReviewsPerUser: *reviewsPerUser,
		MaxDays:        defaults.MaxDays,
		Seed:           *randSeed,
		Clean:          *shouldClean,
		Destinations:   destinations,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
	log.Printf("Seeded %d users, %d posts, %d follows, %d likes, %d saves, %d reviews",
		res.Users, res.Posts, res.Follows, res.Likes, res.Saves, res.Reviews)
}
