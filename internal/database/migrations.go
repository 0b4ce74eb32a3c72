package database

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"wanderfeed/internal/middleware"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is one versioned schema change and its rollback script.
type Migration struct {
	Version    int
	Name       string
	UpScript   string
	DownScript string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Checksum fingerprints the up script so edited migrations are detected.
func (m Migration) Checksum() string {
	sum := sha256.Sum256([]byte(m.UpScript))
	return hex.EncodeToString(sum[:])
}

// SchemaVersion is the bookkeeping row written for every applied migration.
type SchemaVersion struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	Checksum  string    `gorm:"size:64;not null"`
	AppliedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for GORM
func (SchemaVersion) TableName() string {
	return "schema_versions"
}

// LoadMigrations reads NNNNNN_name.up.sql / .down.sql pairs from dir in fsys.
// Every up script needs a matching down script.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		base := strings.TrimSuffix(name, ".up.sql")
		rawVersion, label, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected NNNNNN_name", name)
		}
		version, err := strconv.Atoi(rawVersion)
		if err != nil {
			return nil, fmt.Errorf("migration %s: version is not numeric", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by both %s and %s", version, prev, name)
		}
		seen[version] = name

		up, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		down, err := fs.ReadFile(fsys, path.Join(dir, base+".down.sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %s: missing down script: %w", name, err)
		}
		out = append(out, Migration{Version: version, Name: label, UpScript: string(up), DownScript: string(down)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

var (
	builtinOnce sync.Once
	builtin     []Migration
	builtinErr  error
)

// Migrations returns the migrations compiled into the binary.
func Migrations() ([]Migration, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = LoadMigrations(embeddedMigrations, "migrations")
	})
	return builtin, builtinErr
}

// Migrator applies and rolls back a fixed set of migrations against db.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator returns a Migrator over the embedded migrations.
func NewMigrator(db *gorm.DB) (*Migrator, error) {
	set, err := Migrations()
	if err != nil {
		return nil, err
	}
	return NewMigratorWith(db, set), nil
}

// NewMigratorWith returns a Migrator over an explicit migration set.
func NewMigratorWith(db *gorm.DB, set []Migration) *Migrator {
	return &Migrator{db: db, migrations: set}
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	if err := m.db.WithContext(ctx).AutoMigrate(&SchemaVersion{}); err != nil {
		return fmt.Errorf("ensure schema_versions: %w", err)
	}
	return nil
}

// Applied lists the recorded versions in ascending order.
func (m *Migrator) Applied(ctx context.Context) ([]SchemaVersion, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	var rows []SchemaVersion
	if err := m.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	return rows, nil
}

// Pending lists migrations not yet applied. It fails when the database holds
// versions this binary does not know or when an applied script was edited.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[int]Migration, len(m.migrations))
	for _, mig := range m.migrations {
		known[mig.Version] = mig
	}

	done := make(map[int]bool, len(applied))
	var unknown []string
	for _, row := range applied {
		mig, ok := known[row.Version]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("%06d", row.Version))
			continue
		}
		if row.Checksum != "" && row.Checksum != mig.Checksum() {
			return nil, fmt.Errorf("migration %s was modified after it was applied", mig)
		}
		done[row.Version] = true
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("database has migrations this build does not know: %s", strings.Join(unknown, ", "))
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return 0, err
	}
	for i, mig := range pending {
		middleware.Logger.Info("Applying migration", slog.String("migration", mig.String()))
		err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.UpScript).Error; err != nil {
				return err
			}
			return tx.Create(&SchemaVersion{
				Version:   mig.Version,
				Name:      mig.Name,
				Checksum:  mig.Checksum(),
				AppliedAt: time.Now().UTC(),
			}).Error
		})
		if err != nil {
			return i, fmt.Errorf("apply %s: %w", mig, err)
		}
	}
	return len(pending), nil
}

// ErrNothingToRollback is returned by Down when no migration is recorded.
var ErrNothingToRollback = errors.New("no applied migrations")

// Down rolls back one migration. A zero version means the latest applied one.
func (m *Migrator) Down(ctx context.Context, version int) (Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return Migration{}, err
	}
	if len(applied) == 0 {
		return Migration{}, ErrNothingToRollback
	}
	if version == 0 {
		version = applied[len(applied)-1].Version
	}

	var target *Migration
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			target = &m.migrations[i]
			break
		}
	}
	if target == nil {
		return Migration{}, fmt.Errorf("migration %d is not part of this build", version)
	}
	recorded := false
	for _, row := range applied {
		if row.Version == version {
			recorded = true
			break
		}
	}
	if !recorded {
		return Migration{}, fmt.Errorf("migration %s has not been applied", target)
	}

	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(target.DownScript).Error; err != nil {
			return err
		}
		return tx.Delete(&SchemaVersion{}, "version = ?", version).Error
	})
	if err != nil {
		return Migration{}, fmt.Errorf("roll back %s: %w", target, err)
	}
	middleware.Logger.Info("Rolled back migration", slog.String("migration", target.String()))
	return *target, nil
}

// RunMigrations applies all pending embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	migrator, err := NewMigrator(db)
	if err != nil {
		return err
	}
	_, err = migrator.Up(ctx)
	return err
}
