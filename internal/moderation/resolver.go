package moderation

import (
	"context"

	"chatroom/internal/models"
)

// ProfileReader loads a profile by identity. A missing profile is (nil, nil).
type ProfileReader interface {
	Get(ctx context.Context, id string) (*models.UserProfile, error)
}

// RoleResolver maps an identity to its moderation role.
type RoleResolver struct {
	profiles ProfileReader
}

// NewRoleResolver creates a RoleResolver.
func NewRoleResolver(profiles ProfileReader) *RoleResolver {
	return &RoleResolver{profiles: profiles}
}

// Resolve returns the role persisted for id. Identities without a profile
// are ordinary users.
func (r *RoleResolver) Resolve(ctx context.Context, id string) (models.Role, error) {
	p, err := r.profiles.Get(ctx, id)
	if err != nil {
		if models.ErrorCode(err) == "" {
			err = models.NewBackendUnavailableError(err)
		}
		return models.RoleUser, err
	}
	if p == nil {
		return models.RoleUser, nil
	}
	return p.Role, nil
}
