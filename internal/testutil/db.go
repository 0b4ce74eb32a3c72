// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"wanderfeed/internal/database"
	"wanderfeed/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewSQLiteDB opens a migrated in-memory SQLite database. The pool is pinned
// to one connection so every query sees the same database.
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// CreateUser inserts a user with a unique username and external id.
func CreateUser(t *testing.T, db *gorm.DB, mutate ...func(*models.User)) *models.User {
	t.Helper()
	id := uuid.New()
	ext := "ext_" + id.String()[:8]
	u := &models.User{
		ID:          id,
		ExternalID:  &ext,
		Username:    "user_" + id.String()[:8],
		Email:       fmt.Sprintf("%s@example.com", id.String()[:8]),
		DisplayName: "Test User",
	}
	for _, m := range mutate {
		m(u)
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreatePost inserts a published post owned by userID.
func CreatePost(t *testing.T, db *gorm.DB, userID uuid.UUID, mutate ...func(*models.Post)) *models.Post {
	t.Helper()
	city := "Rome"
	p := &models.Post{
		UserID:       userID,
		Caption:      "A day in Rome",
		Images:       models.StringList{"rome.jpg"},
		LocationName: "Colosseum",
		Country:      "Italy",
		City:         &city,
		PostType:     models.PostTypeExperience,
		Category:     "sightseeing",
		Tags:         models.StringList{"history"},
		IsPublished:  true,
		CreatedAt:    time.Now().UTC(),
	}
	for _, m := range mutate {
		m(p)
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
