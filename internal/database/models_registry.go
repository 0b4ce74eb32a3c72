package database

import "wanderfeed/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Follow{},
		&models.Like{},
		&models.SavedPost{},
		&models.Review{},
		&models.ReviewVote{},
	}
}
