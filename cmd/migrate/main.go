// Command migrate manages the wanderfeed database schema.
//
//	migrate up             apply pending SQL migrations
//	migrate down [version] roll back the latest (or the given) migration
//	migrate status         show the schema plan and pending migrations
//	migrate auto           run GORM AutoMigrate regardless of DB_SCHEMA_MODE
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"wanderfeed/internal/config"
	"wanderfeed/internal/database"
	"wanderfeed/internal/middleware"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: migrate <up|down [version]|status|auto>")
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		flag.Usage()
		return errors.New("missing command")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	switch args[0] {
	case "up":
		migrator, err := database.NewMigrator(db)
		if err != nil {
			return err
		}
		n, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		middleware.Logger.Info("migrations applied", slog.Int("count", n))

	case "down":
		version := 0
		if len(args) > 1 {
			if version, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("invalid version %q", args[1])
			}
		}
		migrator, err := database.NewMigrator(db)
		if err != nil {
			return err
		}
		rolled, err := migrator.Down(ctx, version)
		if err != nil {
			return err
		}
		middleware.Logger.Info("migration rolled back", slog.String("migration", rolled.String()))

	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return err
		}
		middleware.Logger.Info("schema status",
			slog.String("mode", status.Mode),
			slog.String("env", status.Environment),
			slog.Bool("migrations", status.Migrations),
			slog.Bool("auto_migrate", status.AutoMigrate),
			slog.Int("applied", len(status.Applied)),
			slog.Int("pending", len(status.Pending)),
		)
		for _, m := range status.Pending {
			middleware.Logger.Info("pending migration", slog.String("migration", m.String()))
		}

	case "auto":
		if err := database.AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		middleware.Logger.Info("AutoMigrate complete")

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
