package http

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alerts "coldchain-cloud/internal/alerts/domain"
)

// BuildAlertsPDF renders an alert history report.
func BuildAlertsPDF(list []alerts.Alert, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert History")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(list)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Equipment", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Type", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(28, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Message", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alert := range list {
		pdf.CellFormat(45, 6, alert.CreatedAt.Format(time.RFC3339), "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, alert.EquipmentID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(35, 6, string(alert.Type), "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, string(alert.Severity), "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, 6, alert.Status, "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, formatTriggerValue(alert.TriggerValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(70, 6, alert.Message, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders an alert history workbook.
func BuildAlertsXLSX(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Equipment", "Company", "Rule", "Type", "Severity", "Status", "Trigger Value", "Message", "Created", "Acknowledged By", "Resolved"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, alert := range list {
		row := i + 2
		values := []any{
			alert.ID,
			alert.EquipmentID,
			alert.CompanyID,
			alert.RuleID,
			string(alert.Type),
			string(alert.Severity),
			alert.Status,
			formatTriggerValue(alert.TriggerValue),
			alert.Message,
			alert.CreatedAt.Format(time.RFC3339),
			alert.AcknowledgedBy,
			formatOptionalTime(alert.ResolvedAt),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatTriggerValue(value *float64) string {
	if value == nil {
		return ""
	}
	return strconv.FormatFloat(*value, 'f', -1, 64)
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
