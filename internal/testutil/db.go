// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"chatroom/internal/database"
	"chatroom/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTestDB returns a migrated, isolated in-memory sqlite database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// ProfileOption customizes a profile created by CreateProfile.
type ProfileOption func(*models.UserProfile)

// WithRole sets the profile role.
func WithRole(r models.Role) ProfileOption {
	return func(p *models.UserProfile) { p.Role = r }
}

// Banned marks the profile permanently banned.
func Banned() ProfileOption {
	return func(p *models.UserProfile) {
		p.Banned = true
		p.BanType = models.BanTypePermanent
	}
}

// TempBanned sets a temp ban ending at until.
func TempBanned(until time.Time) ProfileOption {
	return func(p *models.UserProfile) {
		p.Banned = true
		p.BannedUntil = &until
		p.BanType = models.BanTypeTemp
	}
}

// ShadowBanned marks the profile shadow-banned.
func ShadowBanned() ProfileOption {
	return func(p *models.UserProfile) { p.ShadowBanned = true }
}

// MutedUntil sets the mute window end.
func MutedUntil(until time.Time) ProfileOption {
	return func(p *models.UserProfile) { p.MutedUntil = &until }
}

// ForceRename sets the rename flag.
func ForceRename() ProfileOption {
	return func(p *models.UserProfile) { p.ForceRename = true }
}

// CreateProfile inserts a profile for id.
func CreateProfile(t *testing.T, db *gorm.DB, id string, opts ...ProfileOption) *models.UserProfile {
	t.Helper()
	p := models.NewUserProfile(id, "name-"+id, "")
	for _, opt := range opts {
		opt(p)
	}
	// Select("*") writes zero values so false flags are not replaced by column defaults.
	require.NoError(t, db.WithContext(context.Background()).Select("*").Create(p).Error)
	return p
}

// CreateMessages inserts n messages by authorID, one second apart.
func CreateMessages(t *testing.T, db *gorm.DB, authorID string, n int) []models.Message {
	t.Helper()
	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	msgs := make([]models.Message, n)
	for i := range msgs {
		msgs[i] = models.Message{
			ID:          uuid.NewString(),
			AuthorID:    authorID,
			DisplayName: "name-" + authorID,
			Text:        fmt.Sprintf("message %d", i),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
	}
	if n > 0 {
		require.NoError(t, db.CreateInBatches(msgs, 100).Error)
	}
	return msgs
}

// LoadProfile reads the profile for id straight from the database.
func LoadProfile(t *testing.T, db *gorm.DB, id string) *models.UserProfile {
	t.Helper()
	var p models.UserProfile
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return &p
}
