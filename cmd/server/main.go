// Command main is the entry point for the wanderfeed backend server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wanderfeed/internal/bootstrap"
	"wanderfeed/internal/config"
	"wanderfeed/internal/events"
	"wanderfeed/internal/job"
	"wanderfeed/internal/middleware"
	"wanderfeed/internal/server"
)

// @title wanderfeed API
// @version 1.0
// @description Travel social feed with follows, likes, saves, reviews and AI recommendations

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true, Tracing: true})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	// The bus needs the identity service, which only exists once the server
	// is built, so the publisher is attached through a late-bound proxy.
	proxy := &busProxy{}
	rt.External.Events = proxy

	srv, err := server.NewServerWithDeps(cfg, rt.DB, rt.Redis, rt.External)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	bus, err := events.NewBus(events.DefaultBusConfig(), srv.Identity())
	if err != nil {
		log.Fatalf("Failed to create event bus: %v", err)
	}
	proxy.bus = bus
	go func() {
		if err := bus.Run(ctx); err != nil {
			middleware.Logger.Error("event bus stopped", slog.String("error", err.Error()))
		}
	}()
	<-bus.Running()

	scheduler := job.NewScheduler()
	if cfg.ReconcileCron != "" {
		if err := scheduler.Register(cfg.ReconcileCron, job.NewReconcileJob(srv.Engagement(), 5*time.Minute)); err != nil {
			log.Fatalf("Invalid RECONCILE_CRON: %v", err)
		}
		scheduler.Start()
	}

	go func() {
		<-ctx.Done()
		middleware.Logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		scheduler.Stop(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			middleware.Logger.Error("server shutdown error", slog.String("error", err.Error()))
		}
		if err := bus.Close(); err != nil {
			middleware.Logger.Error("event bus close error", slog.String("error", err.Error()))
		}
		if err := rt.Close(shutdownCtx); err != nil {
			middleware.Logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil {
		middleware.Logger.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type busProxy struct {
	bus *events.Bus
}

func (p *busProxy) PublishIdentityEvent(ctx context.Context, deliveryID string, payload []byte) error {
	return p.bus.PublishIdentityEvent(ctx, deliveryID, payload)
}
