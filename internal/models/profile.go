package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BanType describes the kind of ban a profile carries. The zero value means
// "no ban" and is persisted as NULL.
type BanType string

const (
	BanTypeNone      BanType = ""
	BanTypePermanent BanType = "permanent"
	BanTypeTemp      BanType = "temp"
)

// GormDataType implements gorm's data type hook.
func (BanType) GormDataType() string {
	return "varchar(16)"
}

// Value implements driver.Valuer.
func (b BanType) Value() (driver.Value, error) {
	if b == BanTypeNone {
		return nil, nil
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (b *BanType) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*b = BanTypeNone
	case string:
		*b = BanType(v)
	case []byte:
		*b = BanType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into BanType", src)
	}
	return nil
}

// MarshalJSON renders BanTypeNone as null.
func (b BanType) MarshalJSON() ([]byte, error) {
	if b == BanTypeNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(b))
}

// UnmarshalJSON accepts null or a ban type name.
func (b *BanType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = BanTypeNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = BanType(s)
	return nil
}

// UserProfile is the persisted moderation state of one identity.
//
// BanType is kept in sync with Banned and BannedUntil:
//
//	permanent <=> banned && bannedUntil == nil
//	temp      <=> banned && bannedUntil != nil
//	none      <=> !banned && bannedUntil == nil
type UserProfile struct {
	ID           string     `gorm:"primaryKey;size:128" json:"id"`
	DisplayName  string     `gorm:"size:64" json:"display_name"`
	AvatarURL    string     `gorm:"size:512" json:"avatar_url,omitempty"`
	Bio          string     `gorm:"type:text" json:"bio"`
	Role         Role       `gorm:"size:16;not null" json:"role"`
	Banned       bool       `gorm:"not null;default:false" json:"banned"`
	BannedUntil  *time.Time `json:"banned_until"`
	BanType      BanType    `json:"ban_type"`
	ShadowBanned bool       `gorm:"not null;default:false" json:"shadow_banned"`
	MutedUntil   *time.Time `json:"muted_until"`
	ForceRename  bool       `gorm:"not null;default:false" json:"force_rename"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (UserProfile) TableName() string {
	return "user_profiles"
}

// NewUserProfile returns the profile created at signup: role user and every
// moderation flag cleared.
func NewUserProfile(id, displayName, avatarURL string) *UserProfile {
	return &UserProfile{
		ID:          id,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Role:        RoleUser,
	}
}

// IsBannedAt reports whether the profile is banned at the given instant,
// either permanently or by an unexpired temporary ban.
func (p *UserProfile) IsBannedAt(now time.Time) bool {
	if p == nil {
		return false
	}
	// A temp ban self-expires: once BannedUntil has passed the profile is not
	// banned, even though Banned stays set until someone clears it.
	if p.BannedUntil != nil {
		return p.BannedUntil.After(now)
	}
	return p.Banned
}

// IsMutedAt reports whether the profile's mute window covers now.
func (p *UserProfile) IsMutedAt(now time.Time) bool {
	return p != nil && p.MutedUntil != nil && p.MutedUntil.After(now)
}
