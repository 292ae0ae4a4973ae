package http

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
	telemetry "coldchain-cloud/internal/telemetry/domain"
)

type stubReadingRepo struct {
	inserted []*telemetry.Reading
	err      error
}

func (s *stubReadingRepo) Insert(_ context.Context, reading *telemetry.Reading) error {
	if s.err != nil {
		return s.err
	}
	s.inserted = append(s.inserted, reading)
	return nil
}

func (s *stubReadingRepo) ListByEquipment(context.Context, string, time.Time, time.Time, int, int) ([]telemetry.Reading, error) {
	return nil, nil
}

func (s *stubReadingRepo) Latest(context.Context, string) (*telemetry.Reading, error) {
	return nil, nil
}

type stubEquipmentRepo struct {
	equipment *fleet.Equipment
	touched   []time.Time
}

func (s *stubEquipmentRepo) Get(context.Context, string) (*fleet.Equipment, error) {
	return s.equipment, nil
}

func (s *stubEquipmentRepo) GetBySerial(_ context.Context, serial string) (*fleet.Equipment, error) {
	if s.equipment == nil || s.equipment.Serial != serial {
		return nil, nil
	}
	return s.equipment, nil
}

func (s *stubEquipmentRepo) ListByCompany(context.Context, string, int, int) ([]fleet.Equipment, error) {
	return nil, nil
}

func (s *stubEquipmentRepo) ListAll(context.Context) ([]fleet.Equipment, error) {
	return nil, nil
}

func (s *stubEquipmentRepo) Save(context.Context, *fleet.Equipment) error { return nil }

func (s *stubEquipmentRepo) UpdateStatus(context.Context, string, fleet.EquipmentStatus) error {
	return nil
}

func (s *stubEquipmentRepo) TouchLastSeen(_ context.Context, _ string, seenAt time.Time) error {
	s.touched = append(s.touched, seenAt)
	return nil
}

func (s *stubEquipmentRepo) Delete(context.Context, string) error { return nil }

type stubPublisher struct {
	published []any
	err       error
}

func (s *stubPublisher) Publish(_ context.Context, event any) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, event)
	return nil
}

func testEquipment() *fleet.Equipment {
	return &fleet.Equipment{
		ID:        "eq-1",
		Serial:    "FRZ-001",
		Type:      fleet.EquipmentTypeFreezer,
		BranchID:  "branch-1",
		CompanyID: "company-1",
		APIKey:    "key-1",
	}
}

func TestIngestHandler_Accepts(t *testing.T) {
	readings := &stubReadingRepo{}
	equipments := &stubEquipmentRepo{equipment: testEquipment()}
	publisher := &stubPublisher{}
	handler, err := NewIngestHandler(readings, equipments, publisher, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"serial":"FRZ-001","recorded_at":"2026-01-10T05:00:00Z","temperature":-12.5,"door_open":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(readings.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(readings.inserted))
	}
	reading := readings.inserted[0]
	if reading.EquipmentID != "eq-1" || reading.CompanyID != "company-1" {
		t.Fatalf("unexpected ownership: %+v", reading)
	}
	if reading.Temperature == nil || *reading.Temperature != -12.5 {
		t.Fatalf("unexpected temperature: %v", reading.Temperature)
	}
	if reading.Pressure != nil {
		t.Fatalf("expected nil pressure for absent field")
	}
	if len(equipments.touched) != 1 {
		t.Fatalf("expected last seen touch, got %d", len(equipments.touched))
	}
	if len(publisher.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(publisher.published))
	}
}

func TestIngestHandler_RejectsBadKey(t *testing.T) {
	readings := &stubReadingRepo{}
	equipments := &stubEquipmentRepo{equipment: testEquipment()}
	handler, err := NewIngestHandler(readings, equipments, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"serial":"FRZ-001","temperature":-12.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-API-Key", "wrong-key")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
	if len(readings.inserted) != 0 {
		t.Fatalf("expected no inserts")
	}
}

func TestIngestHandler_RejectsUnknownSerial(t *testing.T) {
	readings := &stubReadingRepo{}
	equipments := &stubEquipmentRepo{equipment: testEquipment()}
	handler, err := NewIngestHandler(readings, equipments, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"serial":"FRZ-999","temperature":-12.5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestIngestHandler_PublishFailureStillAccepts(t *testing.T) {
	readings := &stubReadingRepo{}
	equipments := &stubEquipmentRepo{equipment: testEquipment()}
	publisher := &stubPublisher{err: errors.New("bus down")}
	handler, err := NewIngestHandler(readings, equipments, publisher, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"serial":"FRZ-001","temperature":-2.0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202 despite publish failure, got %d", resp.Code)
	}
	if len(readings.inserted) != 1 {
		t.Fatalf("expected reading persisted")
	}
}

func TestIngestHandler_RejectsBadBooleanFlag(t *testing.T) {
	readings := &stubReadingRepo{}
	equipments := &stubEquipmentRepo{equipment: testEquipment()}
	handler, err := NewIngestHandler(readings, equipments, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	body := `{"serial":"FRZ-001","door_open":2}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest/readings", strings.NewReader(body))
	req.Header.Set("X-API-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
