package database

import "chatroom/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.UserProfile{},
		&models.Message{},
		&models.Report{},
		&models.ModerationLogEntry{},
	}
}
