package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"chatroom/internal/identity"
	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/repository"
)

// Profile field limits.
const (
	MaxDisplayNameLength = 64
	MaxBioLength         = 500
	MaxAvatarURLLength   = 512
)

// ProfileService manages the user-editable part of profiles. Moderation
// fields are only written by the moderation executor and SetRole.
type ProfileService struct {
	profiles repository.ProfileRepository
	audit    *moderation.AuditLog
}

// UpdateProfileInput holds the fields a user may change on their own
// profile. Nil fields are left unchanged.
type UpdateProfileInput struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

// NewProfileService returns a new ProfileService.
func NewProfileService(profiles repository.ProfileRepository, audit *moderation.AuditLog) *ProfileService {
	return &ProfileService{profiles: profiles, audit: audit}
}

// EnsureProfile returns the caller's profile, creating a default one on first
// sight: role user with every moderation flag cleared.
func (s *ProfileService) EnsureProfile(ctx context.Context, ident *identity.Identity) (*models.UserProfile, error) {
	p, err := s.profiles.GetCached(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	name := strings.TrimSpace(ident.DisplayName)
	if name == "" {
		name = defaultDisplayName(ident.ID)
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = string([]rune(name)[:MaxDisplayNameLength])
	}

	fresh := models.NewUserProfile(ident.ID, name, ident.AvatarURL)
	if _, err := s.profiles.Create(ctx, fresh); err != nil {
		return nil, err
	}
	// A concurrent request may have won the insert.
	return s.Get(ctx, ident.ID)
}

// Get returns the profile for id.
func (s *ProfileService) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	p, err := s.profiles.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, models.NewNotFoundError("Profile", id)
	}
	return p, nil
}

// UpdateMyProfile applies in to the caller's own profile. Choosing a new
// display name satisfies a pending force-rename.
func (s *ProfileService) UpdateMyProfile(ctx context.Context, id string, in UpdateProfileInput) (*models.UserProfile, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return nil, models.NewValidationError("Display name is required")
		}
		if utf8.RuneCountInString(name) > MaxDisplayNameLength {
			return nil, models.NewValidationError("Display name must be 64 characters or fewer")
		}
		if name != current.DisplayName {
			fields["display_name"] = name
			fields["force_rename"] = false
		}
	}
	if in.AvatarURL != nil {
		avatar := strings.TrimSpace(*in.AvatarURL)
		if len(avatar) > MaxAvatarURLLength {
			return nil, models.NewValidationError("Avatar URL is too long")
		}
		fields["avatar_url"] = avatar
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > MaxBioLength {
			return nil, models.NewValidationError("Bio must be 500 characters or fewer")
		}
		fields["bio"] = bio
	}

	if len(fields) == 0 {
		return current, nil
	}
	if err := s.profiles.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// SetRole assigns role to id, creating the profile if needed. It is an
// operator path with no caller and is the only way to grant GrandWizard.
func (s *ProfileService) SetRole(ctx context.Context, id string, role models.Role) (*models.UserProfile, error) {
	if strings.TrimSpace(id) == "" {
		return nil, models.NewValidationError("user id is required")
	}
	if !role.Valid() {
		return nil, models.NewValidationError("unknown role")
	}

	if _, err := s.profiles.Create(ctx, models.NewUserProfile(id, defaultDisplayName(id), "")); err != nil {
		return nil, err
	}
	if err := s.profiles.UpdateFields(ctx, id, map[string]any{"role": role}); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, models.ActionSetRole, "", id, "", models.LogMetadata{"role": role.String()})
	}
	return s.Get(ctx, id)
}

func defaultDisplayName(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "user-" + id
}
