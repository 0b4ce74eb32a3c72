// Package bootstrap connects the process-wide collaborators shared by the
// commands: database, cache, media store, recommendation provider and tracing.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"wanderfeed/internal/cache"
	"wanderfeed/internal/config"
	"wanderfeed/internal/database"
	"wanderfeed/internal/media"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/observability"
	"wanderfeed/internal/recommend"
	"wanderfeed/internal/server"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs migrations and AutoMigrate per DB_SCHEMA_MODE.
	ApplySchema bool
	// Tracing installs the OpenTelemetry provider when TRACING_ENABLED is set.
	Tracing bool
}

// Runtime is the set of initialized collaborators.
type Runtime struct {
	DB       *gorm.DB
	Redis    *redis.Client
	External server.External

	shutdownTracing func(context.Context) error
}

// InitRuntime connects to the database and Redis and builds the external
// clients. Redis is optional: a failed connection leaves Redis nil.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	rt := &Runtime{DB: db, shutdownTracing: func(context.Context) error { return nil }}

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			middleware.Logger.Warn("redis unavailable, continuing without cache and rate limits",
				slog.String("error", err.Error()))
		} else {
			rt.Redis = rdb
		}
	}

	store, err := newMediaStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.External.MediaStore = store

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	rt.External.Generator = gen

	if opts.Tracing {
		shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
			ServiceName:  cfg.TracingServiceName,
			Environment:  cfg.Env,
			Enabled:      cfg.TracingEnabled,
			Exporter:     cfg.TracingExporter,
			OTLPEndpoint: cfg.TracingEndpoint,
			SamplerRatio: cfg.TracingSampleRatio,
			Insecure:     cfg.TracingInsecureOTLP,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		rt.shutdownTracing = shutdown
	}

	return rt, nil
}

func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.MediaBackend {
	case "minio":
		store, err := media.NewMinioStore(ctx, media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("media store: %w", err)
		}
		return store, nil
	default:
		store, err := media.NewLocalStore(cfg.MediaLocalDir, cfg.MediaPublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("media store: %w", err)
		}
		return store, nil
	}
}

// newGenerator wires the LLM client behind the circuit breaker, or the
// inert generator when no API key is configured.
func newGenerator(cfg *config.Config) (recommend.Generator, error) {
	if cfg.LLMAPIKey == "" {
		middleware.Logger.Info("LLM_API_KEY not set, recommendations return empty lists")
		return recommend.Unconfigured{}, nil
	}
	model, err := recommend.NewOpenAIModel(recommend.OpenAIConfig{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
	})
	if err != nil {
		return nil, fmt.Errorf("recommendation provider: %w", err)
	}
	return recommend.NewGuarded(recommend.NewLLMGenerator(model), recommend.GuardConfig{
		Timeout:        cfg.LLMTimeout(),
		MaxConcurrency: cfg.LLMMaxConcurrency,
	}), nil
}

// Close releases the tracing provider. The server closes DB and Redis.
func (r *Runtime) Close(ctx context.Context) error {
	return r.shutdownTracing(ctx)
}

// CloseAll releases every connection; for commands that never start a server.
func (r *Runtime) CloseAll(ctx context.Context) error {
	var errs []error
	if err := r.shutdownTracing(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
