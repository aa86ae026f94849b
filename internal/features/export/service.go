package export

import (
	"context"
	"fmt"

	"crmflow/internal/features/automation"

	"github.com/xuri/excelize/v2"
)

// ExportService builds operator-facing spreadsheets of automation
// definitions and their execution stats.
type ExportService interface {
	BuildAutomationWorkbook(ctx context.Context, organizationID string) (*excelize.File, error)
}

type ExportServiceImpl struct {
	Repo automation.AutomationRepository
}

func NewExportService(repo automation.AutomationRepository) ExportService {
	return &ExportServiceImpl{Repo: repo}
}

func (s *ExportServiceImpl) BuildAutomationWorkbook(ctx context.Context, organizationID string) (*excelize.File, error) {
	automations, err := s.Repo.List(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Automations"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Name", "Trigger", "Active", "Actions", "Total Runs", "Successful", "Failed", "Last Executed"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for row, a := range automations {
		lastExecuted := ""
		if a.LastExecutedAt != nil {
			lastExecuted = a.LastExecutedAt.Format("2006-01-02 15:04:05")
		}
		values := []interface{}{
			a.Name,
			string(a.Trigger.Type),
			a.IsActive,
			len(a.Actions),
			a.TotalExecutions,
			a.SuccessfulExecutions,
			a.FailedExecutions,
			lastExecuted,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	if err := f.AutoFilter(sheet, fmt.Sprintf("A1:H%d", len(automations)+1), nil); err != nil {
		return nil, err
	}
	return f, nil
}
