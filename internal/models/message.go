package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a single chat message in the shared stream. DisplayName and
// AvatarURL are a snapshot of the author's profile at send time.
type Message struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	AuthorID    string    `gorm:"size:128;not null;index" json:"author_id"`
	DisplayName string    `gorm:"size:64" json:"display_name"`
	AvatarURL   string    `gorm:"size:512" json:"avatar_url,omitempty"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	Hidden      bool      `gorm:"not null;default:false" json:"hidden,omitempty"`
}

// TableName specifies the table name for GORM.
func (Message) TableName() string {
	return "messages"
}

// BeforeCreate assigns an ID when the caller did not.
func (m *Message) BeforeCreate(_ *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Report statuses.
const (
	ReportStatusOpen      = "open"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// Report flags a message for moderator attention.
type Report struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	MessageID      string     `gorm:"size:36;not null;index" json:"message_id"`
	AuthorID       string     `gorm:"size:128;not null;index" json:"author_id"`
	ReporterID     string     `gorm:"size:128;not null;index" json:"reporter_id"`
	Reason         string     `gorm:"type:text;default:''" json:"reason"`
	Status         string     `gorm:"size:16;not null;default:'open';index" json:"status"`
	ResolvedBy     *string    `gorm:"size:128" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `gorm:"type:text;default:''" json:"resolution_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Report) TableName() string {
	return "reports"
}

// BeforeCreate assigns an ID when the caller did not.
func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
