package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ModerationAction names an entry in the moderation log.
type ModerationAction string

const (
	ActionToggleBan                  ModerationAction = "toggleBan"
	ActionTempBan                    ModerationAction = "tempBan"
	ActionShadowBan                  ModerationAction = "shadowBan"
	ActionMute                       ModerationAction = "mute"
	ActionForceRename                ModerationAction = "forceRename"
	ActionRevokeTokens               ModerationAction = "revokeTokens"
	ActionDeleteMessages             ModerationAction = "deleteMessages"
	ActionDeleteAccount              ModerationAction = "deleteAccount"
	ActionDeleteMessage              ModerationAction = "deleteMessage"
	ActionResolveReport              ModerationAction = "resolveReport"
	ActionSetRole                    ModerationAction = "setRole"
	ActionMessageRemovedBannedAuthor ModerationAction = "message removed — banned author"
	ActionMessageHiddenShadowBanned  ModerationAction = "message hidden — shadow-banned author"
)

// LogMetadata is free-form metadata attached to a moderation log entry,
// persisted as JSON text.
type LogMetadata map[string]any

// GormDataType implements gorm's data type hook.
func (LogMetadata) GormDataType() string {
	return "text"
}

// Value implements driver.Valuer.
func (m LogMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *LogMetadata) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = LogMetadata{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into LogMetadata", src)
	}
	out := LogMetadata{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// ModerationLogEntry is an append-only audit record. ActorID is nil for
// automated enforcement.
type ModerationLogEntry struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	Action    ModerationAction `gorm:"size:64;not null;index" json:"action"`
	TargetID  *string          `gorm:"size:128;index" json:"target_id"`
	ActorID   *string          `gorm:"size:128" json:"actor_id"`
	MessageID *string          `gorm:"size:36;index" json:"message_id,omitempty"`
	Metadata  LogMetadata      `json:"metadata"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for GORM.
func (ModerationLogEntry) TableName() string {
	return "moderation_logs"
}

// BeforeCreate assigns an ID when the caller did not.
func (e *ModerationLogEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
