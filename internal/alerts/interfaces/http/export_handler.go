package http

import (
	"encoding/csv"
	"errors"
	"net/http"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	alerts "coldchain-cloud/internal/alerts/domain"
	"coldchain-cloud/internal/observability/metrics"
)

const exportPageSize = 1000

// ExportHandler serves alert history downloads.
type ExportHandler struct {
	service *alertapp.Service
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service *alertapp.Service) (*ExportHandler, error) {
	if service == nil {
		return nil, errors.New("export handler: nil service")
	}
	return &ExportHandler{service: service}, nil
}

// ServeHTTP handles GET /api/v1/exports/alerts.{csv,xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/exports/alerts.csv":
		h.export(w, r, "csv")
	case "/api/v1/exports/alerts.xlsx":
		h.export(w, r, "xlsx")
	case "/api/v1/exports/alerts.pdf":
		h.export(w, r, "pdf")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ExportHandler) export(w http.ResponseWriter, r *http.Request, format string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveExport(format, result, time.Since(start))
	}()

	filter := alerts.ListFilter{
		BranchID:    r.URL.Query().Get("branch_id"),
		EquipmentID: r.URL.Query().Get("equipment_id"),
		Status:      r.URL.Query().Get("status"),
		Severity:    r.URL.Query().Get("severity"),
		Limit:       exportPageSize,
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.From = from
	filter.To = to

	list, err := h.service.ListAlerts(r.Context(), filter)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export query error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "csv":
		h.writeCSV(w, list)
	case "xlsx":
		data, err := BuildAlertsXLSX(list)
		if err != nil {
			result = metrics.ResultError
			http.Error(w, "export xlsx error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
		_, _ = w.Write(data)
	case "pdf":
		data, err := BuildAlertsPDF(list, time.Now().UTC())
		if err != nil {
			result = metrics.ResultError
			http.Error(w, "export pdf error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.pdf"`)
		_, _ = w.Write(data)
	}
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, list []alerts.Alert) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id",
		"equipment_id",
		"company_id",
		"alert_rule_id",
		"type",
		"severity",
		"status",
		"trigger_value",
		"message",
		"created_at",
		"acknowledged_at",
		"acknowledged_by",
		"resolved_at",
	})
	for _, alert := range list {
		_ = writer.Write([]string{
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
			formatOptionalTime(alert.AcknowledgedAt),
			alert.AcknowledgedBy,
			formatOptionalTime(alert.ResolvedAt),
		})
	}
	writer.Flush()
}
