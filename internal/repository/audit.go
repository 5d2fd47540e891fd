package repository

import (
	"context"
	"time"

	"chatroom/internal/models"

	"gorm.io/gorm"
)

// AuditQuery filters moderation log reads.
type AuditQuery struct {
	TargetID string
	Action   models.ModerationAction
	Before   *time.Time
	Limit    int
}

// AuditRepository is the append-only moderation log store.
type AuditRepository interface {
	Append(ctx context.Context, entry *models.ModerationLogEntry) error
	List(ctx context.Context, q AuditQuery) ([]models.ModerationLogEntry, error)
}

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository returns a new AuditRepository implementation.
func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *models.ModerationLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return storageError(err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, q AuditQuery) ([]models.ModerationLogEntry, error) {
	limit := q.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	query := r.db.WithContext(ctx).Model(&models.ModerationLogEntry{})
	if q.TargetID != "" {
		query = query.Where("target_id = ?", q.TargetID)
	}
	if q.Action != "" {
		query = query.Where("action = ?", q.Action)
	}
	if q.Before != nil {
		query = query.Where("created_at < ?", *q.Before)
	}
	var entries []models.ModerationLogEntry
	if err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}
