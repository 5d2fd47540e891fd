package server

import (
	"chatroom/internal/middleware"
	"chatroom/internal/models"
	"chatroom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile returns the caller's full profile, moderation state included.
// @Summary Get my profile
// @Tags profile
// @Produce json
// @Success 200 {object} models.UserProfile
// @Security BearerAuth
// @Router /profile/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	p, err := s.profileService.Get(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": p})
}

// UpdateMyProfile changes the caller's display fields.
// @Summary Update my profile
// @Tags profile
// @Accept json
// @Produce json
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} models.UserProfile
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /profile/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	p, err := s.profileService.UpdateMyProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "profile": p})
}

// GetProfile returns the public part of another user's profile.
// @Summary Get a user's public profile
// @Tags profile
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	p, err := s.profileService.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"profile": fiber.Map{
			"id":           p.ID,
			"display_name": p.DisplayName,
			"avatar_url":   p.AvatarURL,
			"bio":          p.Bio,
			"role":         p.Role,
		},
	})
}
