package services

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/EduBridge-2025/advisory-service/internal/auth"
	"github.com/EduBridge-2025/advisory-service/internal/repositories"
	"github.com/EduBridge-2025/advisory-service/internal/utils"
	"github.com/xuri/excelize/v2"
)

const reportRowLimit = 10000

// ReportService produces the admin operations workbook: one sheet of cases,
// one of applications, one of users.
type ReportService interface {
	OperationsReport(ctx context.Context, admin *auth.Actor) ([]byte, string, error)
}

type reportService struct {
	repo   repositories.Repository
	logger utils.Logger
}

func NewReportService(repo repositories.Repository, logger utils.Logger) ReportService {
	return &reportService{repo: repo, logger: logger}
}

func (s *reportService) OperationsReport(ctx context.Context, admin *auth.Actor) ([]byte, string, error) {
	if !admin.IsSuperAdmin() {
		return nil, "", ErrForbidden
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", "error", err)
		}
	}()

	if err := s.writeServiceRequests(ctx, f); err != nil {
		return nil, "", err
	}
	if err := s.writeApplications(ctx, f); err != nil {
		return nil, "", err
	}
	if err := s.writeUsers(ctx, f); err != nil {
		return nil, "", err
	}

	// Drop the default sheet so the workbook opens on the case list.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		s.logger.Warn("failed to drop default sheet", "error", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, "", fmt.Errorf("failed to serialize workbook: %w", err)
	}

	name := fmt.Sprintf("operations-report-%s.xlsx", time.Now().Format("2006-01-02"))
	return buf.Bytes(), name, nil
}

func (s *reportService) writeServiceRequests(ctx context.Context, f *excelize.File) error {
	const sheet = "Service Requests"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []interface{}{"ID", "Student", "Service Type", "Status", "Progress", "Priority", "Counselor", "Agent", "Created"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	items, _, err := s.repo.ServiceRequests().List(ctx, repositories.ServiceRequestFilters{Limit: reportRowLimit})
	if err != nil {
		return fmt.Errorf("failed to list service requests: %w", err)
	}

	for i, sr := range items {
		student := sr.StudentID
		if sr.Student != nil && sr.Student.User != nil {
			student = sr.Student.User.FullName
		}
		row := []interface{}{
			sr.ID, student, string(sr.ServiceType), string(sr.Status), sr.Progress,
			string(sr.Priority), deref(sr.AssignedCounselor), deref(sr.AssignedAgent),
			sr.CreatedAt.Format(time.RFC3339),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func (s *reportService) writeApplications(ctx context.Context, f *excelize.File) error {
	const sheet = "Applications"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []interface{}{"ID", "Student", "Agent", "University", "Program", "Country", "Status", "Created"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	items, _, err := s.repo.Applications().List(ctx, repositories.ApplicationFilters{Limit: reportRowLimit})
	if err != nil {
		return fmt.Errorf("failed to list applications: %w", err)
	}

	for i, app := range items {
		row := []interface{}{
			app.ID, app.StudentID, app.AgentID, app.UniversityName, app.ProgramName,
			app.Country, string(app.Status), app.CreatedAt.Format(time.RFC3339),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func (s *reportService) writeUsers(ctx context.Context, f *excelize.File) error {
	const sheet = "Users"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []interface{}{"ID", "Name", "Email", "Role", "Active", "Country", "Last Login", "Joined"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	users, _, err := s.repo.Users().List(ctx, repositories.UserFilters{Limit: reportRowLimit})
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	for i, user := range users {
		lastLogin := ""
		if user.LastLoginAt != nil {
			lastLogin = user.LastLoginAt.Format(time.RFC3339)
		}
		row := []interface{}{
			user.ID, user.FullName, user.Email, string(user.Role), user.IsActive,
			deref(user.Country), lastLogin, user.CreatedAt.Format(time.RFC3339),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
