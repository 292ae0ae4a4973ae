package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coldchain-cloud/internal/auth"
	telemetry "coldchain-cloud/internal/telemetry/domain"
)

// QueryHandler serves reading history for dashboards.
type QueryHandler struct {
	readings telemetry.ReadingRepository
	checker  *auth.CompanyChecker
}

// NewQueryHandler constructs a query handler.
func NewQueryHandler(readings telemetry.ReadingRepository, checker *auth.CompanyChecker) (*QueryHandler, error) {
	if readings == nil {
		return nil, errors.New("telemetry query: nil reading repository")
	}
	if checker == nil {
		return nil, errors.New("telemetry query: nil company checker")
	}
	return &QueryHandler{readings: readings, checker: checker}, nil
}

// ServeHTTP handles GET /api/v1/readings.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	equipmentID := r.URL.Query().Get("equipment_id")
	if equipmentID == "" {
		http.Error(w, "equipment_id is required", http.StatusBadRequest)
		return
	}

	companyID := auth.CompanyIDFromContext(r.Context())
	if err := h.checker.EnsureEquipmentCompany(r.Context(), companyID, equipmentID); err != nil {
		switch {
		case errors.Is(err, auth.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, auth.ErrCompanyMismatch):
			http.Error(w, "forbidden", http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = parsed.UTC()
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = parsed.UTC()
	}
	if !to.After(from) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	list, err := h.readings.ListByEquipment(r.Context(), equipmentID, from, to, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}
