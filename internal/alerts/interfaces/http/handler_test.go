package http

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "coldchain-cloud/internal/alerts/application"
	alerts "coldchain-cloud/internal/alerts/domain"
	"coldchain-cloud/internal/auth"
	fleet "coldchain-cloud/internal/fleet/domain"
)

type stubRuleRepo struct{}

func (stubRuleRepo) Get(context.Context, string) (*alerts.AlertRule, error) { return nil, nil }
func (stubRuleRepo) List(context.Context, int, int) ([]alerts.AlertRule, error) {
	return nil, nil
}
func (stubRuleRepo) ListActiveByScope(context.Context, alerts.ScopeKind, string) ([]alerts.AlertRule, error) {
	return nil, nil
}
func (stubRuleRepo) Save(context.Context, *alerts.AlertRule) error { return nil }
func (stubRuleRepo) Delete(context.Context, string) error          { return nil }

type stubStateRepo struct{}

func (stubStateRepo) Get(context.Context, string, string) (*alerts.DebounceState, error) {
	return nil, nil
}
func (stubStateRepo) Upsert(context.Context, *alerts.DebounceState) error { return nil }
func (stubStateRepo) Clear(context.Context, string, string) error         { return nil }

type stubEquipmentRepo struct{}

func (stubEquipmentRepo) Get(context.Context, string) (*fleet.Equipment, error) { return nil, nil }
func (stubEquipmentRepo) GetBySerial(context.Context, string) (*fleet.Equipment, error) {
	return nil, nil
}
func (stubEquipmentRepo) ListByCompany(context.Context, string, int, int) ([]fleet.Equipment, error) {
	return nil, nil
}
func (stubEquipmentRepo) ListAll(context.Context) ([]fleet.Equipment, error) { return nil, nil }
func (stubEquipmentRepo) Save(context.Context, *fleet.Equipment) error       { return nil }
func (stubEquipmentRepo) UpdateStatus(context.Context, string, fleet.EquipmentStatus) error {
	return nil
}
func (stubEquipmentRepo) TouchLastSeen(context.Context, string, time.Time) error { return nil }
func (stubEquipmentRepo) Delete(context.Context, string) error                   { return nil }

type stubAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]alerts.Alert
}

func newStubAlertRepo(seed ...alerts.Alert) *stubAlertRepo {
	repo := &stubAlertRepo{alerts: make(map[string]alerts.Alert)}
	for _, alert := range seed {
		repo.alerts[alert.ID] = alert
	}
	return repo
}

func (s *stubAlertRepo) Get(_ context.Context, id string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	return &alert, nil
}

func (s *stubAlertRepo) FindOpenByEquipmentRule(context.Context, string, string) (*alerts.Alert, error) {
	return nil, nil
}

func (s *stubAlertRepo) ListActiveByEquipment(context.Context, string) ([]alerts.Alert, error) {
	return nil, nil
}

func (s *stubAlertRepo) List(_ context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []alerts.Alert
	for _, alert := range s.alerts {
		if filter.CompanyID != "" && alert.CompanyID != filter.CompanyID {
			continue
		}
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		result = append(result, alert)
	}
	return result, nil
}

func (s *stubAlertRepo) Create(_ context.Context, alert *alerts.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.ID] = *alert
	return nil
}

func (s *stubAlertRepo) MarkAcknowledged(_ context.Context, id, userID, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AcknowledgedBy = userID
	alert.AcknowledgmentNotes = notes
	alert.AcknowledgedAt = at
	s.alerts[id] = alert
	return nil
}

func (s *stubAlertRepo) MarkResolved(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return alerts.ErrNotFound
	}
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = at
	s.alerts[id] = alert
	return nil
}

func testHandler(t *testing.T, repo *stubAlertRepo) *Handler {
	t.Helper()
	resolver, err := alertapp.NewResolver(stubRuleRepo{}, time.Minute)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	service, err := alertapp.NewService(resolver, repo, stubStateRepo{}, stubEquipmentRepo{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func seedAlert(id, companyID, status string) alerts.Alert {
	return alerts.Alert{
		ID:          id,
		EquipmentID: "eq-1",
		CompanyID:   companyID,
		RuleID:      "rule-1",
		Type:        alerts.RuleTemperatureHigh,
		Severity:    alerts.SeverityCritical,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestHandler_ListScopedToCompany(t *testing.T) {
	repo := newStubAlertRepo(
		seedAlert("alert-1", "company-a", alerts.StatusActive),
		seedAlert("alert-2", "company-b", alerts.StatusActive),
	)
	handler := testHandler(t, repo)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/alerts", nil)
	r = r.WithContext(auth.WithIdentity(r.Context(), "company-a", auth.RoleCompanyViewer, "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var list []alerts.Alert
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "alert-1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestHandler_AcknowledgeRecordsActor(t *testing.T) {
	repo := newStubAlertRepo(seedAlert("alert-1", "company-a", alerts.StatusActive))
	handler := testHandler(t, repo)

	body := strings.NewReader(`{"notes": "compressor inspected"}`)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", body)
	r = r.WithContext(auth.WithIdentity(r.Context(), "company-a", auth.RoleCompanyAdmin, "user-9"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var alert alerts.Alert
	if err := json.NewDecoder(w.Body).Decode(&alert); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if alert.Status != alerts.StatusAcknowledged || alert.AcknowledgedBy != "user-9" {
		t.Fatalf("unexpected alert: %+v", alert)
	}
	if alert.AcknowledgmentNotes != "compressor inspected" {
		t.Fatalf("notes not stored: %q", alert.AcknowledgmentNotes)
	}
}

func TestHandler_AcknowledgeCrossCompanyForbidden(t *testing.T) {
	repo := newStubAlertRepo(seedAlert("alert-1", "company-b", alerts.StatusActive))
	handler := testHandler(t, repo)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", nil)
	r = r.WithContext(auth.WithIdentity(r.Context(), "company-a", auth.RoleCompanyAdmin, "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", w.Code)
	}
}

func TestHandler_AcknowledgeResolvedConflicts(t *testing.T) {
	repo := newStubAlertRepo(seedAlert("alert-1", "company-a", alerts.StatusResolved))
	handler := testHandler(t, repo)

	r := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", nil)
	r = r.WithContext(auth.WithIdentity(r.Context(), "company-a", auth.RoleCompanyAdmin, "user-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestHandler_UnknownAlertNotFound(t *testing.T) {
	handler := testHandler(t, newStubAlertRepo())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/missing/resolve", nil)
	r = r.WithContext(auth.WithIdentity(r.Context(), "", auth.RoleGlobalAdmin, "admin"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
