// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the HTTP surface.
package middleware

import (
	"context"
	"strings"

	"chatroom/internal/identity"
	"chatroom/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by AuthRequired.
const (
	LocalUserID   = "userID"
	LocalIdentity = "identity"
)

// AuthHook runs after a token has been verified, before the handler.
type AuthHook func(ctx context.Context, id *identity.Identity) error

// AuthRequired verifies the bearer token with v and stores the caller in
// c.Locals. When allowQueryToken is set a ?token= parameter is accepted, which
// browsers need for WebSocket upgrades.
func AuthRequired(v identity.Verifier, allowQueryToken bool, hooks ...AuthHook) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c.Get("Authorization"))
		if token == "" && allowQueryToken {
			token = c.Query("token")
		}
		if token == "" {
			return models.RespondWithAppError(c,
				models.NewAuthenticationMissingError("Authorization required"))
		}

		id, err := v.Verify(c.UserContext(), token)
		if err != nil {
			return models.RespondWithAppError(c, err)
		}

		ctx := WithUserID(c.UserContext(), id.ID)
		c.SetUserContext(ctx)

		for _, hook := range hooks {
			if err := hook(ctx, id); err != nil {
				return models.RespondWithAppError(c, err)
			}
		}

		c.Locals(LocalUserID, id.ID)
		c.Locals(LocalIdentity, id)
		return c.Next()
	}
}

// UserID returns the authenticated caller set by AuthRequired, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
