package repository

import (
	"context"
	"errors"
	"time"

	"chatroom/internal/cache"
	"chatroom/internal/models"
	"chatroom/internal/observability"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for user profiles.
type ProfileRepository interface {
	// Get reads the profile straight from the database. A missing profile
	// is (nil, nil).
	Get(ctx context.Context, id string) (*models.UserProfile, error)
	// GetCached is Get behind the profile cache. Moderation decisions must
	// use Get.
	GetCached(ctx context.Context, id string) (*models.UserProfile, error)
	// Create inserts p, reporting false if a profile with that id exists.
	Create(ctx context.Context, p *models.UserProfile) (bool, error)
	// UpdateFields applies fields to the profile in one UPDATE statement.
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]models.UserProfile, error)
}

type profileRepository struct {
	db    *gorm.DB
	cache *cache.Store
	ttl   time.Duration
}

// NewProfileRepository returns a new ProfileRepository implementation.
// store may be nil to disable caching.
func NewProfileRepository(db *gorm.DB, store *cache.Store, ttl time.Duration) ProfileRepository {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &profileRepository{db: db, cache: store, ttl: ttl}
}

func (r *profileRepository) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageError(err)
	}
	return &p, nil
}

func (r *profileRepository) GetCached(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	errMissing := errors.New("profile missing")

	err := r.cache.Aside(ctx, cache.ProfileKey(id), &p, r.ttl, func() error {
		fresh, err := r.Get(ctx, id)
		if err != nil {
			return err
		}
		if fresh == nil {
			return errMissing
		}
		p = *fresh
		return nil
	})
	if errors.Is(err, errMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) Create(ctx context.Context, p *models.UserProfile) (bool, error) {
	// Select("*") keeps explicit false/zero values instead of column defaults.
	if err := r.db.WithContext(ctx).Select("*").Create(p).Error; err != nil {
		if isUniqueConstraintError(err) {
			return false, nil
		}
		return false, storageError(err)
	}
	return true, nil
}

func (r *profileRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) error {
	ctx, span := observability.TraceRepositoryMethod(ctx, "UpdateFields", "user_profiles")
	defer span.End()

	result := r.db.WithContext(ctx).
		Model(&models.UserProfile{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return storageError(result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	r.cache.InvalidateProfile(ctx, id)
	return nil
}

func (r *profileRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&models.UserProfile{}, "id = ?", id)
	if result.Error != nil {
		return storageError(result.Error)
	}
	r.cache.InvalidateProfile(ctx, id)
	if result.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", id)
	}
	return nil
}

func (r *profileRepository) List(ctx context.Context, limit, offset int) ([]models.UserProfile, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	var profiles []models.UserProfile
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error; err != nil {
		return nil, storageError(err)
	}
	return profiles, nil
}
