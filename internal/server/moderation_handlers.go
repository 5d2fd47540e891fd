package server

import (
	"chatroom/internal/middleware"
	"chatroom/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ToggleBanRequest sets or clears a permanent ban.
type ToggleBanRequest struct {
	Banned *bool `json:"banned"`
}

// DurationRequest carries a duration in milliseconds.
type DurationRequest struct {
	DurationMs *int64 `json:"durationMs"`
}

// ShadowBanRequest sets or clears a shadow ban.
type ShadowBanRequest struct {
	ShadowBanned *bool `json:"shadowBanned"`
}

// ToggleBan bans or unbans a user.
// @Summary Ban or unban a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Target user ID"
// @Param request body ToggleBanRequest true "Ban state"
// @Success 200 {object} moderation.ToggleBanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/ban [post]
func (s *Server) ToggleBan(c *fiber.Ctx) error {
	var req ToggleBanRequest
	if err := c.BodyParser(&req); err != nil || req.Banned == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("banned is required"))
	}

	res, err := s.executor.ToggleBan(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.Banned)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "banned": res.Banned})
}

// TempBan bans a user for a fixed duration.
// @Summary Temporarily ban a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Target user ID"
// @Param request body DurationRequest true "Ban duration"
// @Success 200 {object} moderation.TempBanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/temp-ban [post]
func (s *Server) TempBan(c *fiber.Ctx) error {
	var req DurationRequest
	if err := c.BodyParser(&req); err != nil || req.DurationMs == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("durationMs is required"))
	}

	res, err := s.executor.TempBan(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.DurationMs)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "until": res.Until})
}

// ShadowBan hides a user's future messages from everyone else.
// @Summary Shadow-ban or restore a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Target user ID"
// @Param request body ShadowBanRequest true "Shadow ban state"
// @Success 200 {object} moderation.ShadowBanResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/shadow-ban [post]
func (s *Server) ShadowBan(c *fiber.Ctx) error {
	var req ShadowBanRequest
	if err := c.BodyParser(&req); err != nil || req.ShadowBanned == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("shadowBanned is required"))
	}

	res, err := s.executor.ShadowBan(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.ShadowBanned)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "shadowBanned": res.ShadowBanned})
}

// Mute silences a user. A zero duration lifts the mute.
// @Summary Mute or unmute a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Target user ID"
// @Param request body DurationRequest true "Mute duration, 0 to unmute"
// @Success 200 {object} moderation.MuteResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/mute [post]
func (s *Server) Mute(c *fiber.Ctx) error {
	var req DurationRequest
	if err := c.BodyParser(&req); err != nil || req.DurationMs == nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("durationMs is required"))
	}

	res, err := s.executor.Mute(c.UserContext(), middleware.UserID(c), c.Params("id"), *req.DurationMs)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "mutedUntil": res.MutedUntil})
}

// ForceRename requires a user to pick a new display name.
// @Summary Force a user to rename
// @Tags admin
// @Produce json
// @Param id path string true "Target user ID"
// @Success 200 {object} moderation.ForceRenameResult
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/force-rename [post]
func (s *Server) ForceRename(c *fiber.Ctx) error {
	res, err := s.executor.ForceRename(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "forceRename": res.ForceRename})
}

// RevokeTokens signs a user out of every session.
// @Summary Revoke all sessions of a user
// @Tags admin
// @Produce json
// @Param id path string true "Target user ID"
// @Success 200 {object} moderation.RevokeTokensResult
// @Failure 403 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/revoke-tokens [post]
func (s *Server) RevokeTokens(c *fiber.Ctx) error {
	res, err := s.executor.RevokeTokens(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": res.OK})
}

// BulkDeleteMessages removes every message a user has sent.
// @Summary Delete all messages of a user
// @Tags admin
// @Produce json
// @Param id path string true "Target user ID"
// @Success 200 {object} moderation.BulkDeleteResult
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id}/delete-messages [post]
func (s *Server) BulkDeleteMessages(c *fiber.Ctx) error {
	res, err := s.executor.BulkDeleteMessages(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "deletedCount": res.DeletedCount})
}

// DeleteAccount removes a user's identity, profile and messages.
// @Summary Delete a user account
// @Tags admin
// @Produce json
// @Param id path string true "Target user ID"
// @Success 200 {object} moderation.DeleteAccountResult
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	res, err := s.executor.DeleteAccount(c.UserContext(), middleware.UserID(c), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"success":         true,
		"deletedMessages": res.DeletedMessages,
		"warnings":        res.Warnings,
	})
}
