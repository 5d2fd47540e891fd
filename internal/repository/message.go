package repository

import (
	"context"
	"errors"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/observability"

	"gorm.io/gorm"
)

// MessageQuery selects a page of the message stream.
type MessageQuery struct {
	Before *time.Time
	Limit  int
	// ViewerID sees their own hidden messages.
	ViewerID string
	// IncludeHidden returns every hidden message.
	IncludeHidden bool
}

// MessageRepository defines persistence operations for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *models.Message) error
	GetByID(ctx context.Context, id string) (*models.Message, error)
	// List returns a page in chronological order, oldest first.
	List(ctx context.Context, q MessageQuery) ([]models.Message, error)
	// SetHidden reports false when the message no longer exists or already
	// had the requested visibility.
	SetHidden(ctx context.Context, id string, hidden bool) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	// Delete reports false when the message no longer exists.
	Delete(ctx context.Context, id string) (bool, error)
	// DeleteBatchByAuthor deletes up to limit messages by authorID in one
	// transaction and returns how many were removed.
	DeleteBatchByAuthor(ctx context.Context, authorID string, limit int) (int, error)
	CountByAuthor(ctx context.Context, authorID string) (int64, error)
}

type messageRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db, log: observability.NewRepoLogger("messages")}
}

func (r *messageRepository) Create(ctx context.Context, m *models.Message) error {
	if err := r.db.WithContext(ctx).Select("*").Create(m).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return storageError(err)
	}
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, storageError(err)
	}
	return &m, nil
}

func (r *messageRepository) List(ctx context.Context, q MessageQuery) ([]models.Message, error) {
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Model(&models.Message{})
	if q.Before != nil {
		query = query.Where("created_at < ?", *q.Before)
	}
	if !q.IncludeHidden {
		if q.ViewerID != "" {
			query = query.Where("hidden = ? OR author_id = ?", false, q.ViewerID)
		} else {
			query = query.Where("hidden = ?", false)
		}
	}

	var msgs []models.Message
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, storageError(err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (r *messageRepository) SetHidden(ctx context.Context, id string, hidden bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND hidden <> ?", id, hidden).
		Update("hidden", hidden)
	if result.Error != nil {
		return false, storageError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) Exists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, storageError(err)
	}
	return n > 0, nil
}

func (r *messageRepository) Delete(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id)
	if result.Error != nil {
		return false, storageError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *messageRepository) DeleteBatchByAuthor(ctx context.Context, authorID string, limit int) (int, error) {
	ctx, span := observability.TraceRepositoryMethod(ctx, "DeleteBatchByAuthor", "messages")
	defer span.End()

	var deleted int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Message{}).
			Where("author_id = ?", authorID).
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Message{})
		if result.Error != nil {
			return result.Error
		}
		deleted = int(result.RowsAffected)
		return nil
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete_batch")
		return 0, storageError(err)
	}
	if deleted > 0 {
		r.log.LogDelete(ctx, map[string]any{"author_id": authorID, "count": deleted})
	}
	return deleted, nil
}

func (r *messageRepository) CountByAuthor(ctx context.Context, authorID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Message{}).Where("author_id = ?", authorID).Count(&n).Error; err != nil {
		return 0, storageError(err)
	}
	return n, nil
}
