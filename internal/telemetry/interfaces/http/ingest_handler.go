package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"coldchain-cloud/internal/eventing"
	fleet "coldchain-cloud/internal/fleet/domain"
	"coldchain-cloud/internal/observability/metrics"
	"coldchain-cloud/internal/telemetry/application/events"
	telemetry "coldchain-cloud/internal/telemetry/domain"
)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// IngestHandler accepts telemetry readings from equipment agents.
// Agents authenticate with their serial plus the per-equipment API key;
// there is no JWT on this path.
type IngestHandler struct {
	readings   telemetry.ReadingRepository
	equipments fleet.EquipmentRepository
	publisher  EventPublisher
	logger     *log.Logger
	now        func() time.Time
}

// NewIngestHandler constructs an ingest handler.
func NewIngestHandler(
	readings telemetry.ReadingRepository,
	equipments fleet.EquipmentRepository,
	publisher EventPublisher,
	logger *log.Logger,
) (*IngestHandler, error) {
	if readings == nil {
		return nil, errors.New("telemetry ingest: nil reading repository")
	}
	if equipments == nil {
		return nil, errors.New("telemetry ingest: nil equipment repository")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IngestHandler{
		readings:   readings,
		equipments: equipments,
		publisher:  publisher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

type ingestRequest struct {
	Serial     string `json:"serial"`
	RecordedAt string `json:"recorded_at"`

	Temperature *float64 `json:"temperature"`
	Pressure    *float64 `json:"pressure"`

	DoorOpen     *int `json:"door_open"`
	HeaterOn     *int `json:"heater_on"`
	CompressorOn *int `json:"compressor_on"`
	FanOn        *int `json:"fan_on"`
}

// ServeHTTP ingests one reading.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	if r.Method != http.MethodPost {
		result = metrics.ResultError
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	apiKey := r.Header.Get("X-API-Key")
	if apiKey == "" {
		result = metrics.ResultError
		metrics.IncIngestError("missing_api_key")
		http.Error(w, "missing api key", http.StatusUnauthorized)
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_json")
		h.logger.Printf("telemetry ingest: decode error: %v", err)
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Serial == "" {
		result = metrics.ResultError
		metrics.IncIngestError("missing_serial")
		http.Error(w, "serial is required", http.StatusBadRequest)
		return
	}

	equipment, err := h.equipments.GetBySerial(r.Context(), req.Serial)
	if err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("lookup")
		h.logger.Printf("telemetry ingest: equipment lookup error: %v", err)
		http.Error(w, "lookup error", http.StatusInternalServerError)
		return
	}
	if equipment == nil || equipment.APIKey == "" || equipment.APIKey != apiKey {
		result = metrics.ResultError
		metrics.IncIngestError("bad_credentials")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	recordedAt := h.now()
	if req.RecordedAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.RecordedAt)
		if err != nil {
			result = metrics.ResultError
			metrics.IncIngestError("invalid_timestamp")
			http.Error(w, "invalid recorded_at", http.StatusBadRequest)
			return
		}
		recordedAt = parsed.UTC()
	}

	reading := &telemetry.Reading{
		ID:           uuid.NewString(),
		EquipmentID:  equipment.ID,
		CompanyID:    equipment.CompanyID,
		RecordedAt:   recordedAt,
		Temperature:  req.Temperature,
		Pressure:     req.Pressure,
		DoorOpen:     req.DoorOpen,
		HeaterOn:     req.HeaterOn,
		CompressorOn: req.CompressorOn,
		FanOn:        req.FanOn,
		ReceivedAt:   h.now(),
	}
	if err := reading.Validate(); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("invalid_payload")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.readings.Insert(r.Context(), reading); err != nil {
		result = metrics.ResultError
		metrics.IncIngestError("insert")
		h.logger.Printf("telemetry ingest: insert error: %v", err)
		http.Error(w, "insert error", http.StatusInternalServerError)
		return
	}

	if err := h.equipments.TouchLastSeen(r.Context(), equipment.ID, recordedAt); err != nil {
		h.logger.Printf("telemetry ingest: touch last seen error: %v", err)
	}

	// Rule evaluation runs from the event. A failure there must never
	// reject an already persisted reading.
	if h.publisher != nil {
		ctx := eventing.WithCompanyID(r.Context(), equipment.CompanyID)
		event := events.ReadingReceived{
			ReadingID:    reading.ID,
			EquipmentID:  reading.EquipmentID,
			CompanyID:    reading.CompanyID,
			OccurredAt:   reading.RecordedAt,
			Temperature:  reading.Temperature,
			Pressure:     reading.Pressure,
			DoorOpen:     reading.DoorOpen,
			HeaterOn:     reading.HeaterOn,
			CompressorOn: reading.CompressorOn,
			FanOn:        reading.FanOn,
		}
		if err := h.publisher.Publish(ctx, event); err != nil {
			h.logger.Printf("telemetry ingest: publish reading event: %v", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]any{"reading_id": reading.ID})
}
