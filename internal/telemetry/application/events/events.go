package events

import "time"

// ReadingReceived is raised after a telemetry reading has been persisted.
// The alert engine consumes it to evaluate rules against the new sample.
type ReadingReceived struct {
	ReadingID   string    `json:"reading_id"`
	EquipmentID string    `json:"equipment_id"`
	CompanyID   string    `json:"company_id"`
	OccurredAt  time.Time `json:"occurred_at"`

	Temperature *float64 `json:"temperature,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`

	DoorOpen     *int `json:"door_open,omitempty"`
	HeaterOn     *int `json:"heater_on,omitempty"`
	CompressorOn *int `json:"compressor_on,omitempty"`
	FanOn        *int `json:"fan_on,omitempty"`
}
