package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"coldchain-cloud/internal/auth"
	fleetapp "coldchain-cloud/internal/fleet/application"
	fleet "coldchain-cloud/internal/fleet/domain"
)

// Handler provides fleet HTTP endpoints.
type Handler struct {
	service *fleetapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *fleetapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("fleet handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles fleet routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/companies":
		h.handleCompanies(w, r)
	case strings.HasPrefix(path, "/api/v1/companies/"):
		h.handleCompany(w, r, strings.TrimPrefix(path, "/api/v1/companies/"))
	case path == "/api/v1/branches":
		h.handleBranches(w, r)
	case strings.HasPrefix(path, "/api/v1/branches/"):
		h.handleBranch(w, r, strings.TrimPrefix(path, "/api/v1/branches/"))
	case path == "/api/v1/equipments":
		h.handleEquipments(w, r)
	case strings.HasPrefix(path, "/api/v1/equipments/"):
		h.handleEquipment(w, r, strings.TrimPrefix(path, "/api/v1/equipments/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleCompanies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" {
			company, err := h.service.GetCompany(r.Context(), companyID)
			if err != nil {
				respondError(w, err)
				return
			}
			respondJSON(w, []any{company})
			return
		}
		limit, offset := pageParams(r)
		list, err := h.service.ListCompanies(r.Context(), limit, offset)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, list)
	case http.MethodPost:
		var input fleetapp.CompanyInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		company, err := h.service.CreateCompany(r.Context(), input)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(company)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCompany(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" && companyID != id {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		company, err := h.service.GetCompany(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, company)
	case http.MethodPut:
		var input fleetapp.CompanyInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		company, err := h.service.UpdateCompany(r.Context(), id, input)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, company)
	case http.MethodDelete:
		if err := h.service.DeleteCompany(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBranches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		companyID, ok := scopedCompanyID(w, r)
		if !ok {
			return
		}
		limit, offset := pageParams(r)
		list, err := h.service.ListBranches(r.Context(), companyID, limit, offset)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, list)
	case http.MethodPost:
		var input fleetapp.BranchInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" {
			if input.CompanyID != "" && input.CompanyID != companyID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			input.CompanyID = companyID
		}
		branch, err := h.service.CreateBranch(r.Context(), input)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(branch)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleBranch(w http.ResponseWriter, r *http.Request, id string) {
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	branch, err := h.service.GetBranch(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" && branch.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		respondJSON(w, branch)
	case http.MethodPut:
		var input fleetapp.BranchInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		updated, err := h.service.UpdateBranch(r.Context(), id, input)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, updated)
	case http.MethodDelete:
		if err := h.service.DeleteBranch(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleEquipments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		companyID, ok := scopedCompanyID(w, r)
		if !ok {
			return
		}
		limit, offset := pageParams(r)
		list, err := h.service.ListEquipments(r.Context(), companyID, limit, offset)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, list)
	case http.MethodPost:
		var input fleetapp.EquipmentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" {
			branch, err := h.service.GetBranch(r.Context(), input.BranchID)
			if err != nil {
				respondError(w, err)
				return
			}
			if branch.CompanyID != companyID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		created, err := h.service.CreateEquipment(r.Context(), input)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(created)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleEquipment(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	equipment, err := h.service.GetEquipment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if companyID := auth.CompanyIDFromContext(r.Context()); companyID != "" && equipment.CompanyID != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if len(parts) == 2 {
		switch parts[1] {
		case "maintenance":
			h.handleMaintenance(w, r, id)
		case "rotate-key":
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			rotated, err := h.service.RotateAPIKey(r.Context(), id)
			if err != nil {
				respondError(w, err)
				return
			}
			respondJSON(w, rotated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}
	if len(parts) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		respondJSON(w, equipment)
	case http.MethodPut:
		var input fleetapp.EquipmentInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		updated, err := h.service.UpdateEquipment(r.Context(), id, input)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, updated)
	case http.MethodDelete:
		if err := h.service.DeleteEquipment(r.Context(), id); err != nil {
			respondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleMaintenance(w http.ResponseWriter, r *http.Request, equipmentID string) {
	switch r.Method {
	case http.MethodGet:
		limit, offset := pageParams(r)
		list, err := h.service.ListMaintenance(r.Context(), equipmentID, limit, offset)
		if err != nil {
			respondError(w, err)
			return
		}
		respondJSON(w, list)
	case http.MethodPost:
		var input fleetapp.MaintenanceInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		record, err := h.service.RecordMaintenance(r.Context(), equipmentID, input)
		if err != nil {
			respondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(record)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// scopedCompanyID resolves the company a list request is scoped to. Company
// users are pinned to their own company; global admins must name one.
func scopedCompanyID(w http.ResponseWriter, r *http.Request) (string, bool) {
	requested := r.URL.Query().Get("company_id")
	companyID := auth.CompanyIDFromContext(r.Context())
	if companyID == "" {
		if requested == "" {
			http.Error(w, "company_id is required", http.StatusBadRequest)
			return "", false
		}
		return requested, true
	}
	if requested != "" && requested != companyID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return companyID, true
}

func pageParams(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, fleet.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
