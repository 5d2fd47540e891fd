package moderation

import (
	"context"
	"testing"

	"chatroom/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorize_AllRolePairs(t *testing.T) {
	for _, caller := range models.Roles() {
		for _, required := range models.Roles() {
			t.Run(caller.String()+"_requires_"+required.String(), func(t *testing.T) {
				err := Authorize(caller, required)

				var want bool
				switch {
				case caller == models.RoleGrandWizard:
					want = true
				case required == models.RoleGrandWizard:
					want = false
				default:
					want = caller.Rank() >= required.Rank()
				}

				if want {
					assert.NoError(t, err)
					return
				}
				require.Error(t, err)
				assert.True(t, models.IsCode(err, models.CodeAuthorizationDenied))
			})
		}
	}
}

func TestAuthorize_GrandWizardRequirementNeedsGrandWizard(t *testing.T) {
	err := Authorize(models.RoleAdmin, models.RoleGrandWizard)
	require.Error(t, err)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ReasonInsufficientRank, appErr.Reason)
}

func TestCheckTargetImmunity(t *testing.T) {
	tests := []struct {
		caller, target models.Role
		allowed        bool
	}{
		{models.RoleAdmin, models.RoleGrandWizard, false},
		{models.RoleModerator, models.RoleGrandWizard, false},
		{models.RoleGrandWizard, models.RoleGrandWizard, true},
		{models.RoleAdmin, models.RoleAdmin, true},
		{models.RoleModerator, models.RoleUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.caller.String()+"_on_"+tt.target.String(), func(t *testing.T) {
			err := CheckTargetImmunity(tt.caller, tt.target)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.ReasonTargetImmune, appErr.Reason)
		})
	}
}

func TestRoleResolver(t *testing.T) {
	h := newHarness(t)
	h.profile("mod", models.RoleModerator)

	role, err := h.exec.Resolver().Resolve(h.ctx, "mod")
	require.NoError(t, err)
	assert.Equal(t, models.RoleModerator, role)

	role, err = h.exec.Resolver().Resolve(h.ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, role)
}

func TestRoleResolver_BackendFailure(t *testing.T) {
	r := NewRoleResolver(failingProfiles{})
	role, err := r.Resolve(context.Background(), "anyone")
	assert.Equal(t, models.RoleUser, role)
	assert.True(t, models.IsCode(err, models.CodeBackendUnavailable))
}
