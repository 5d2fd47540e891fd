package server

import (
	"chatroom/internal/middleware"
	"chatroom/internal/models"
	"chatroom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// SendMessageRequest is the body of a new chat message.
type SendMessageRequest struct {
	Text string `json:"text"`
}

// ReportMessageRequest is the body of a message report.
type ReportMessageRequest struct {
	Reason string `json:"reason"`
}

// ListMessages returns the newest messages visible to the caller.
// @Summary List chat messages
// @Tags messages
// @Produce json
// @Param limit query int false "Page size" default(50)
// @Param before query string false "RFC 3339 cursor"
// @Success 200 {array} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages [get]
func (s *Server) ListMessages(c *fiber.Ctx) error {
	before, err := parseBefore(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	msgs, err := s.chatService.ListMessages(c.UserContext(), service.ListMessagesInput{
		ViewerID: middleware.UserID(c),
		Limit:    parseLimit(c, defaultPageLimit),
		Before:   before,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "messages": msgs})
}

// SendMessage posts a message to the room.
// @Summary Send a chat message
// @Tags messages
// @Accept json
// @Produce json
// @Param request body SendMessageRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages [post]
func (s *Server) SendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.chatService.SendMessage(c.UserContext(), service.SendMessageInput{
		AuthorID: middleware.UserID(c),
		Text:     req.Text,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg})
}

// DeleteMessage removes one message. Authors may delete their own;
// moderators may delete any.
// @Summary Delete a chat message
// @Tags messages
// @Produce json
// @Param id path string true "Message ID"
// @Success 200 {object} map[string]bool
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/{id} [delete]
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	if err := s.chatService.DeleteMessage(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// ReportMessage flags a message for moderator review.
// @Summary Report a chat message
// @Tags messages
// @Accept json
// @Produce json
// @Param id path string true "Message ID"
// @Param request body ReportMessageRequest false "Reason"
// @Success 201 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /messages/{id}/report [post]
func (s *Server) ReportMessage(c *fiber.Ctx) error {
	var req ReportMessageRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
	}

	report, err := s.chatService.ReportMessage(c.UserContext(), service.ReportMessageInput{
		ReporterID: middleware.UserID(c),
		MessageID:  c.Params("id"),
		Reason:     req.Reason,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "report": report})
}
