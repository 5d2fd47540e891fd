package server

import (
	"time"

	"chatroom/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit   = 50
	maxPaginationLimit = 100
)

// parseLimit reads ?limit=, clamped to [1, maxPaginationLimit].
func parseLimit(c *fiber.Ctx, defaultLimit int) int {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}
	return limit
}

// parseBefore reads an RFC 3339 ?before= cursor. A missing cursor is nil.
func parseBefore(c *fiber.Ctx) (*time.Time, error) {
	raw := c.Query("before")
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, models.NewValidationError("before must be an RFC 3339 timestamp")
	}
	return &t, nil
}
