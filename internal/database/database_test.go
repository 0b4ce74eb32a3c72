package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"testing/fstest"
	"time"

	"wanderfeed/internal/config"
	"wanderfeed/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "n"})
	assert.Contains(t, dsn, "host=db")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestPlanSchema(t *testing.T) {
	tests := []struct {
		name        string
		cfg         config.Config
		wantSQL     bool
		wantAuto    bool
		expectError bool
	}{
		{"hybrid in development", config.Config{Env: "development"}, true, true, false},
		{"hybrid in production", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"hybrid in staging", config.Config{Env: "Staging", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto in development", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto refused in production", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto allowed with override", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateDestructive: true}, false, true, false},
		{"unknown mode", config.Config{DBSchemaMode: "yolo"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			plan, err := PlanSchema(&cfg)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, plan.Migrations)
			assert.Equal(t, tt.wantAuto, plan.AutoMigrate)
		})
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(all), 2)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "init_schema", all[0].Name)
	assert.Equal(t, "000001_init_schema", all[0].String())
	assert.Contains(t, all[1].UpScript, "WHERE status = 'active'")
	assert.NotEmpty(t, all[1].DownScript)
}

func sqliteMigrations() fstest.MapFS {
	return fstest.MapFS{
		"m/000001_places.up.sql":      {Data: []byte("CREATE TABLE places (id INTEGER PRIMARY KEY, name TEXT)")},
		"m/000001_places.down.sql":    {Data: []byte("DROP TABLE places")},
		"m/000002_place_idx.up.sql":   {Data: []byte("CREATE INDEX idx_places_name ON places (name)")},
		"m/000002_place_idx.down.sql": {Data: []byte("DROP INDEX idx_places_name")},
		"m/README.md":                 {Data: []byte("ignored")},
	}
}

func TestLoadMigrations(t *testing.T) {
	set, err := LoadMigrations(sqliteMigrations(), "m")
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "place_idx", set[1].Name)

	missingDown := fstest.MapFS{"m/000001_x.up.sql": {Data: []byte("SELECT 1")}}
	_, err = LoadMigrations(missingDown, "m")
	assert.Error(t, err)

	badName := fstest.MapFS{"m/first.up.sql": {Data: []byte("SELECT 1")}, "m/first.down.sql": {Data: []byte("SELECT 1")}}
	_, err = LoadMigrations(badName, "m")
	assert.Error(t, err)
}

func TestMigrator_UpDownRoundTrip(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	set, err := LoadMigrations(sqliteMigrations(), "m")
	require.NoError(t, err)
	m := NewMigratorWith(db, set)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "second run is a no-op")

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 2)
	assert.Equal(t, set[0].Checksum(), applied[0].Checksum)

	rolled, err := m.Down(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, rolled.Version)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	_, err = m.Down(ctx, 2)
	assert.Error(t, err, "version 2 is no longer applied")

	_, err = m.Down(ctx, 1)
	require.NoError(t, err)
	_, err = m.Down(ctx, 0)
	assert.ErrorIs(t, err, ErrNothingToRollback)
}

func TestMigrator_DetectsDrift(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	set, err := LoadMigrations(sqliteMigrations(), "m")
	require.NoError(t, err)
	_, err = NewMigratorWith(db, set).Up(ctx)
	require.NoError(t, err)

	edited := append([]Migration(nil), set...)
	edited[0].UpScript += " -- edited"
	_, err = NewMigratorWith(db, edited).Pending(ctx)
	assert.ErrorContains(t, err, "modified")

	_, err = NewMigratorWith(db, set[:1]).Pending(ctx)
	assert.ErrorContains(t, err, "000002")
}

func TestAutoMigrate_ActiveReviewIndex(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, AutoMigrate(db))

	ctx := context.Background()
	user := &models.User{Username: "ana"}
	require.NoError(t, db.WithContext(ctx).Create(user).Error)
	post := &models.Post{UserID: user.ID, Caption: "c", LocationName: "Rome", Country: "Italy", PostType: models.PostTypeFood, Category: "food"}
	require.NoError(t, db.WithContext(ctx).Create(post).Error)

	first := &models.Review{UserID: user.ID, PostID: post.ID, Rating: 4}
	require.NoError(t, db.Create(first).Error)

	dup := &models.Review{UserID: user.ID, PostID: post.ID, Rating: 2}
	err := db.Create(dup).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	require.NoError(t, db.Model(first).Update("status", models.ReviewDeleted).Error)
	again := &models.Review{UserID: user.ID, PostID: post.ID, Rating: 5}
	assert.NoError(t, db.Create(again).Error, "a deleted review must not block a new one")
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(assert.AnError))
}

func TestPersistentModels(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.ReviewVote); ok {
			found = true
		}
	}
	assert.True(t, found, "PersistentModels should include ReviewVote")
}

func TestGormConfigUsesUTC(t *testing.T) {
	now := GormConfig().NowFunc()
	assert.Equal(t, time.UTC, now.Location())
}

func TestSlogGormLogger_Trace(t *testing.T) {
	var buf bytes.Buffer
	l := NewGormLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	assert.Empty(t, buf.String(), "not-found is silent")

	l.Trace(ctx, time.Now(), stmt, nil)
	assert.Empty(t, buf.String(), "fast successful queries are silent at warn level")

	l.Trace(ctx, time.Now(), stmt, gorm.ErrDuplicatedKey)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)
	buf.Reset()

	l.Trace(ctx, time.Now(), stmt, errors.New("connection reset"))
	assert.Contains(t, buf.String(), "gorm: query failed")
	assert.Contains(t, buf.String(), "connection reset")
	buf.Reset()

	l.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	assert.Contains(t, buf.String(), "gorm: slow query")
	buf.Reset()

	l.LogMode(logger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	assert.Empty(t, buf.String())
}
