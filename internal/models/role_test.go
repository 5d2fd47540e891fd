package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRole_RankIsStrictlyIncreasing(t *testing.T) {
	roles := Roles()
	for i := 1; i < len(roles); i++ {
		assert.Greater(t, roles[i].Rank(), roles[i-1].Rank(), "%s should outrank %s", roles[i], roles[i-1])
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"user", RoleUser, false},
		{"moderator", RoleModerator, false},
		{"admin", RoleAdmin, false},
		{"GrandWizard", RoleGrandWizard, false},
		{"grandwizard", RoleGrandWizard, false},
		{" admin ", RoleAdmin, false},
		{"superuser", RoleUser, true},
		{"", RoleUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_UnknownValueIsNeverElevated(t *testing.T) {
	var r Role
	require.NoError(t, r.Scan("root"))
	assert.Equal(t, RoleUser, r)

	assert.Equal(t, RoleUser.Rank(), Role(42).Rank())
	assert.Equal(t, "user", Role(42).String())
}

func TestRole_JSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{RoleGrandWizard})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"GrandWizard"}`, string(b))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"moderator"}`), &out))
	assert.Equal(t, RoleModerator, out.Role)
}

func TestUserProfile_IsBannedAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name    string
		profile UserProfile
		want    bool
	}{
		{"clean", UserProfile{}, false},
		{"permanent", UserProfile{Banned: true, BanType: BanTypePermanent}, true},
		{"active temp", UserProfile{Banned: true, BannedUntil: &future, BanType: BanTypeTemp}, true},
		{"expired temp", UserProfile{Banned: true, BannedUntil: &past, BanType: BanTypeTemp}, false},
		{"expired temp without flag", UserProfile{BannedUntil: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.IsBannedAt(now))
		})
	}

	var missing *UserProfile
	assert.False(t, missing.IsBannedAt(now))
}

func TestUserProfile_IsMutedAt(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.True(t, (&UserProfile{MutedUntil: &future}).IsMutedAt(now))
	assert.False(t, (&UserProfile{MutedUntil: &past}).IsMutedAt(now))
	assert.False(t, (&UserProfile{}).IsMutedAt(now))
}

func TestBanType_JSONNull(t *testing.T) {
	b, err := json.Marshal(UserProfile{ID: "u1"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Nil(t, raw["ban_type"])
	assert.Nil(t, raw["banned_until"])
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, 401, HTTPStatus(NewAuthenticationMissingError("no token")))
	assert.Equal(t, 403, HTTPStatus(NewAuthorizationDeniedError(ReasonTargetImmune, "immune")))
	assert.Equal(t, 400, HTTPStatus(NewValidationError("missing")))
	assert.Equal(t, 403, HTTPStatus(NewMutedError(time.Now())))
	assert.Equal(t, 503, HTTPStatus(NewBackendUnavailableError(assert.AnError)))
	assert.Equal(t, 500, HTTPStatus(assert.AnError))
}
