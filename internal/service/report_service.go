package service

import (
	"context"
	"strings"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/repository"
)

// ReportService lets moderators triage reports and admins read the
// moderation log.
type ReportService struct {
	reports  repository.ReportRepository
	audits   repository.AuditRepository
	resolver *moderation.RoleResolver
	audit    *moderation.AuditLog
	now      func() time.Time
}

// ResolveReportInput is the input for closing a report.
type ResolveReportInput struct {
	CallerID string
	ReportID string
	Status   string
	Note     string
}

// NewReportService returns a new ReportService.
func NewReportService(
	reports repository.ReportRepository,
	audits repository.AuditRepository,
	profiles moderation.ProfileReader,
	audit *moderation.AuditLog,
) *ReportService {
	return &ReportService{
		reports:  reports,
		audits:   audits,
		resolver: moderation.NewRoleResolver(profiles),
		audit:    audit,
		now:      time.Now,
	}
}

func (s *ReportService) require(ctx context.Context, callerID string, role models.Role) error {
	if callerID == "" {
		return models.NewAuthenticationMissingError("Authorization required")
	}
	callerRole, err := s.resolver.Resolve(ctx, callerID)
	if err != nil {
		return err
	}
	return moderation.Authorize(callerRole, role)
}

// ListReports returns reports with the given status, newest first.
func (s *ReportService) ListReports(ctx context.Context, callerID, status string, limit int) ([]models.Report, error) {
	if err := s.require(ctx, callerID, models.RoleModerator); err != nil {
		return nil, err
	}
	switch status {
	case "", models.ReportStatusOpen, models.ReportStatusResolved, models.ReportStatusDismissed:
	default:
		return nil, models.NewValidationError("status must be open, resolved or dismissed")
	}
	return s.reports.List(ctx, status, limit)
}

// ResolveReport closes an open report.
func (s *ReportService) ResolveReport(ctx context.Context, in ResolveReportInput) (*models.Report, error) {
	if err := s.require(ctx, in.CallerID, models.RoleModerator); err != nil {
		return nil, err
	}
	if in.Status != models.ReportStatusResolved && in.Status != models.ReportStatusDismissed {
		return nil, models.NewValidationError("status must be resolved or dismissed")
	}

	report, err := s.reports.GetByID(ctx, in.ReportID)
	if err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusOpen {
		return nil, models.NewValidationError("report is already closed")
	}

	now := s.now().UTC()
	if err := s.reports.UpdateFields(ctx, report.ID, map[string]any{
		"status":          in.Status,
		"resolved_by":     in.CallerID,
		"resolved_at":     now,
		"resolution_note": strings.TrimSpace(in.Note),
	}); err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, models.ActionResolveReport, in.CallerID, report.AuthorID, report.MessageID,
			models.LogMetadata{"reportId": report.ID, "status": in.Status})
	}
	return s.reports.GetByID(ctx, report.ID)
}

// ListModerationLogs returns audit entries, newest first. Admin only.
func (s *ReportService) ListModerationLogs(ctx context.Context, callerID string, q repository.AuditQuery) ([]models.ModerationLogEntry, error) {
	if err := s.require(ctx, callerID, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.audits.List(ctx, q)
}
