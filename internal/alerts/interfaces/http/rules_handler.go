package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	alertapp "coldchain-cloud/internal/alerts/application"
	alerts "coldchain-cloud/internal/alerts/domain"
)

// RulesHandler provides the alert rule catalog endpoints. Role
// enforcement happens in the auth middleware; only global admins reach
// this handler.
type RulesHandler struct {
	admin *alertapp.RuleAdmin
}

// NewRulesHandler constructs a handler.
func NewRulesHandler(admin *alertapp.RuleAdmin) (*RulesHandler, error) {
	if admin == nil {
		return nil, errors.New("rules handler: nil rule admin")
	}
	return &RulesHandler{admin: admin}, nil
}

// ServeHTTP handles /api/v1/alert-rules and subroutes.
func (h *RulesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alert-rules":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/alert-rules/"):
		id := strings.TrimPrefix(r.URL.Path, "/api/v1/alert-rules/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, r, id)
		case http.MethodPatch:
			h.handleUpdate(w, r, id)
		case http.MethodDelete:
			h.handleDelete(w, r, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *RulesHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	offset := intQuery(r, "offset", 0)
	rules, err := h.admin.ListRules(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rules == nil {
		rules = []alerts.AlertRule{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rules)
}

func (h *RulesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input alertapp.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rule, err := h.admin.CreateRule(r.Context(), input)
	if err != nil {
		respondRuleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := h.admin.GetRule(r.Context(), id)
	if err != nil {
		respondRuleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var input alertapp.RuleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rule, err := h.admin.UpdateRule(r.Context(), id, input)
	if err != nil {
		respondRuleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rule)
}

func (h *RulesHandler) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.admin.DeleteRule(r.Context(), id); err != nil {
		respondRuleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, alerts.ErrInvalidRule):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
