package server

import (
	"chatroom/internal/middleware"
	"chatroom/internal/models"
	"chatroom/internal/repository"
	"chatroom/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ResolveReportRequest closes a report.
type ResolveReportRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// ListReports returns reports, newest first.
// @Summary List message reports
// @Tags admin
// @Produce json
// @Param status query string false "open, resolved or dismissed" default(open)
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} models.Report
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports [get]
func (s *Server) ListReports(c *fiber.Ctx) error {
	status := c.Query("status", models.ReportStatusOpen)
	reports, err := s.reportService.ListReports(c.UserContext(), middleware.UserID(c), status, parseLimit(c, defaultPageLimit))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "reports": reports})
}

// ResolveReport marks a report resolved or dismissed.
// @Summary Resolve a message report
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param request body ResolveReportRequest true "Resolution"
// @Success 200 {object} models.Report
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/reports/{id}/resolve [post]
func (s *Server) ResolveReport(c *fiber.Ctx) error {
	var req ResolveReportRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	report, err := s.reportService.ResolveReport(c.UserContext(), service.ResolveReportInput{
		CallerID: middleware.UserID(c),
		ReportID: c.Params("id"),
		Status:   req.Status,
		Note:     req.Note,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "report": report})
}

// ListModerationLogs reads the audit log.
// @Summary List moderation log entries
// @Tags admin
// @Produce json
// @Param targetId query string false "Filter by target user"
// @Param action query string false "Filter by action"
// @Param before query string false "RFC 3339 cursor"
// @Param limit query int false "Page size" default(50)
// @Success 200 {array} models.ModerationLogEntry
// @Failure 403 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /admin/moderation-logs [get]
func (s *Server) ListModerationLogs(c *fiber.Ctx) error {
	before, err := parseBefore(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	entries, err := s.reportService.ListModerationLogs(c.UserContext(), middleware.UserID(c), repository.AuditQuery{
		TargetID: c.Query("targetId"),
		Action:   models.ModerationAction(c.Query("action")),
		Before:   before,
		Limit:    parseLimit(c, defaultPageLimit),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "logs": entries})
}
