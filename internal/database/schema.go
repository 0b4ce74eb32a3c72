package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"wanderfeed/internal/config"
	"wanderfeed/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaPlan says which schema steps a configuration allows.
type SchemaPlan struct {
	Mode        string
	Environment string
	Migrations  bool
	AutoMigrate bool
}

// SchemaStatus is a SchemaPlan plus the migration bookkeeping it implies.
type SchemaStatus struct {
	SchemaPlan
	Applied []SchemaVersion
	Pending []Migration
}

// PlanSchema resolves DB_SCHEMA_MODE for the configured environment. hybrid
// runs SQL migrations everywhere and AutoMigrate only in development-like
// environments; auto is refused in staging or production unless
// DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE is set.
func PlanSchema(cfg *config.Config) (SchemaPlan, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		mode = SchemaModeHybrid
	}
	plan := SchemaPlan{Mode: mode, Environment: cfg.Env}

	switch env := strings.ToLower(strings.TrimSpace(cfg.Env)); mode {
	case SchemaModeSQL:
		plan.Migrations = true
	case SchemaModeAuto:
		if protectedEnv(env) && !cfg.DBAutoMigrateDestructive {
			return plan, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		plan.AutoMigrate = true
	case SchemaModeHybrid:
		plan.Migrations = true
		plan.AutoMigrate = !protectedEnv(env)
	default:
		return plan, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
	return plan, nil
}

func protectedEnv(env string) bool {
	switch env {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

// activeReviewIndexSQL backs the one-active-review-per-(user, post) rule.
// The statement is portable between PostgreSQL and SQLite.
const activeReviewIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_active_user_post
	ON reviews (user_id, post_id) WHERE status = 'active'`

// AutoMigrate creates or updates tables from the GORM models and adds the
// partial indexes struct tags cannot express.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(PersistentModels()...); err != nil {
		return err
	}
	return db.Exec(activeReviewIndexSQL).Error
}

// ApplySchema runs whatever PlanSchema allows for cfg.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return err
	}

	if plan.Migrations {
		migrator, err := NewMigrator(db)
		if err != nil {
			return err
		}
		n, err := migrator.Up(ctx)
		if err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
		middleware.Logger.Info("SQL migrations complete", slog.Int("applied", n))
	}

	if plan.AutoMigrate {
		if plan.Mode == SchemaModeAuto && cfg.DBAutoMigrateDestructive {
			middleware.Logger.Warn("AutoMigrate enabled with DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE; review schema diffs before deploying")
		}
		middleware.Logger.Info("Running GORM AutoMigrate", slog.String("mode", plan.Mode), slog.String("env", plan.Environment))
		if err := AutoMigrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}
	return nil
}

// GetSchemaStatus reports the plan for cfg and, when migrations are part of
// it, which versions are applied and pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	plan, err := PlanSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{SchemaPlan: plan}
	if !plan.Migrations {
		return status, nil
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		return nil, err
	}
	if status.Applied, err = migrator.Applied(ctx); err != nil {
		return nil, err
	}
	if status.Pending, err = migrator.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
