// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "wanderfeed/docs" // swagger docs
	"wanderfeed/internal/cache"
	"wanderfeed/internal/config"
	"wanderfeed/internal/database"
	"wanderfeed/internal/events"
	"wanderfeed/internal/featureflags"
	"wanderfeed/internal/media"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/recommend"
	"wanderfeed/internal/repository"
	"wanderfeed/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// EventPublisher hands verified identity deliveries to the event bus.
type EventPublisher interface {
	PublishIdentityEvent(ctx context.Context, deliveryID string, payload []byte) error
}

// External carries clients for collaborators outside the database. Nil
// fields fall back to inert implementations.
type External struct {
	MediaStore media.Store
	Generator  recommend.Generator
	// Events, when nil, makes the webhook apply events synchronously.
	Events EventPublisher
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	auth           *middleware.Authenticator
	limiter        *middleware.RateLimiter
	featureFlags   *featureflags.Manager
	webhooks       *events.Verifier
	events         EventPublisher

	engagement      *service.EngagementService
	reviews         *service.ReviewService
	identity        *service.IdentityService
	media           *service.MediaService
	recommendations *service.RecommendationService
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// The bootstrap layer establishes DB, Redis and external clients.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, ext External) (*Server, error) {
	store := cache.NewStore(redisClient)
	tx := repository.NewTransactor(db)
	users := repository.NewUserRepository(db, store)
	posts := repository.NewPostRepository(db)

	engagement := service.NewEngagementService(service.EngagementDeps{
		Tx:       tx,
		Users:    users,
		Posts:    posts,
		Follows:  repository.NewFollowRepository(db),
		Likes:    repository.NewLikeRepository(db),
		Saves:    repository.NewSaveRepository(db),
		Counters: repository.NewCounterRepository(db),
	})

	mediaStore := ext.MediaStore
	if mediaStore == nil {
		local, err := media.NewLocalStore(cfg.MediaLocalDir, cfg.MediaPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("media store: %w", err)
		}
		mediaStore = local
	}
	generator := ext.Generator
	if generator == nil {
		generator = recommend.Unconfigured{}
	}

	var verifier *events.Verifier
	if cfg.WebhookSecret != "" {
		v, err := events.NewVerifier(cfg.WebhookSecret)
		if err != nil {
			return nil, err
		}
		verifier = v
	}

	return &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		promMiddleware:  middleware.InitMetrics("wanderfeed-api"),
		auth:            middleware.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, users),
		limiter:         middleware.NewRateLimiter(redisClient, redisClient != nil),
		featureFlags:    featureflags.NewManager(cfg.FeatureFlags),
		webhooks:        verifier,
		events:          ext.Events,
		engagement:      engagement,
		reviews:         service.NewReviewService(tx, posts, repository.NewReviewRepository(db)),
		identity:        service.NewIdentityService(users, nil),
		media:           service.NewMediaService(mediaStore, cfg.MediaMaxUploadBytes),
		recommendations: service.NewRecommendationService(generator, engagement),
	}, nil
}

// Engagement exposes the engagement service to background jobs.
func (s *Server) Engagement() *service.EngagementService {
	return s.engagement
}

// Identity exposes the identity service to the event bus.
func (s *Server) Identity() *service.IdentityService {
	return s.identity
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName:      "wanderfeed API",
		BodyLimit:    int(s.config.MediaMaxUploadBytes) + 1<<20,
		ErrorHandler: s.errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
	return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Request id into the request context for service logs.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry CORS headers.
	app.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: s.config.AllowedOrigins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{Title: "wanderfeed metrics"}))
	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Post("/webhooks/identity", s.IdentityWebhook)

	authed := s.auth.AuthRequired()
	withUser := middleware.ContextMiddleware()
	optional := s.auth.OptionalAuth()
	window := s.config.RateLimitWindow()

	users := api.Group("/users")
	users.Post("/me", s.auth.RequireToken(), s.ProvisionMe)
	users.Get("/:id/followers", s.GetFollowers)
	users.Get("/:id/following", s.GetFollowing)
	users.Get("/:id/posts", optional, s.GetUserPosts)
	users.Post("/:id/follow", authed, withUser, s.ToggleFollow)
	users.Get("/:id", optional, s.GetUserProfile)

	api.Get("/feed", authed, withUser, s.GetFeed)

	posts := api.Group("/posts")
	posts.Post("/", authed, withUser,
		s.limiter.Limit(middleware.Rule{Name: "create_post", Max: s.config.RateLimitPosts, Window: window}), s.CreatePost)
	posts.Get("/:id/reviews", s.GetPostReviews)
	posts.Post("/:id/reviews", authed, withUser,
		s.limiter.Limit(middleware.Rule{Name: "create_review", Max: s.config.RateLimitReviews, Window: window}), s.CreateReview)
	posts.Post("/:id/like", authed, withUser, s.ToggleLike)
	posts.Post("/:id/save", authed, withUser, s.ToggleSave)
	posts.Get("/:id", optional, s.GetPost)

	reviews := api.Group("/reviews", authed, withUser)
	reviews.Patch("/:id", s.UpdateReview)
	reviews.Delete("/:id", s.DeleteReview)
	reviews.Post("/:id/vote", s.VoteReview)

	saved := api.Group("/saved", authed, withUser)
	saved.Get("/collections", s.GetSavedCollections)
	saved.Get("/locations", s.GetSavedLocations)
	saved.Get("/", s.GetSavedPosts)

	api.Post("/recommendations", authed, withUser,
		s.requireFlag(featureflags.AIRecommendations),
		s.limiter.Limit(middleware.Rule{
			Name:   "recommendations",
			Max:    s.config.RateLimitAI,
			Window: window,
			Policy: middleware.FailClosed,
		}),
		s.GenerateRecommendations)

	api.Post("/media", authed, withUser,
		s.limiter.Limit(middleware.Rule{Name: "media_upload", Max: s.config.RateLimitUploads, Window: window}), s.UploadMedia)
	api.Get("/media/*", s.GetMedia)
	api.Delete("/media/*", authed, withUser, s.DeleteMedia)

	api.Get("/feature-flags", authed, s.GetFeatureFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: an
// unconfigured cache reports "disabled" without failing readiness.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// requireFlag rejects callers for whom flag is disabled.
func (s *Server) requireFlag(flag string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.featureFlags.Enabled(flag, currentUserID(c)) {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewPermissionError("This feature is not enabled for your account"))
		}
		return c.Next()
	}
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	middleware.Logger.Info("server starting", slog.String("port", s.config.Port))
	return s.App().Listen(":" + s.config.Port)
}

// Shutdown gracefully stops the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	middleware.Logger.Info("server shutdown complete")
	return errors.Join(errs...)
}
