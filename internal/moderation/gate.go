// Package moderation decides who may act on whom and carries out moderation
// actions and automatic enforcement on new messages.
package moderation

import (
	"fmt"

	"chatroom/internal/models"
	"chatroom/internal/observability"
)

// Authorize reports whether a caller holding caller may perform an action
// that requires required. A nil error means allowed.
//
// GrandWizard is always allowed. GrandWizard as a requirement cannot be met
// by rank alone. Everything else compares ranks.
func Authorize(caller, required models.Role) error {
	if caller == models.RoleGrandWizard {
		return nil
	}
	if required == models.RoleGrandWizard {
		return deny(models.ReasonInsufficientRank, "GrandWizard required")
	}
	if caller.AtLeast(required) {
		return nil
	}
	return deny(models.ReasonInsufficientRank,
		fmt.Sprintf("%s role required", required))
}

// CheckTargetImmunity applies the target-role override for actions that name
// a user: a GrandWizard can only be acted on by another GrandWizard.
func CheckTargetImmunity(caller, target models.Role) error {
	if target == models.RoleGrandWizard && caller != models.RoleGrandWizard {
		return deny(models.ReasonTargetImmune, "Cannot act on a GrandWizard")
	}
	return nil
}

func deny(reason models.DenyReason, msg string) error {
	observability.AuthorizationDenials.WithLabelValues(string(reason)).Inc()
	return models.NewAuthorizationDeniedError(reason, msg)
}
