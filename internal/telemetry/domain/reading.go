package telemetry

import (
	"context"
	"errors"
	"time"
)

// Reading is a single telemetry sample reported by an equipment. Sensor
// fields are pointers: a nil field means the sensor did not report.
type Reading struct {
	ID          string    `json:"id"`
	EquipmentID string    `json:"equipment_id"`
	CompanyID   string    `json:"company_id"`
	RecordedAt  time.Time `json:"recorded_at"`

	Temperature *float64 `json:"temperature,omitempty"`
	Pressure    *float64 `json:"pressure,omitempty"`

	DoorOpen     *int `json:"door_open,omitempty"`
	HeaterOn     *int `json:"heater_on,omitempty"`
	CompressorOn *int `json:"compressor_on,omitempty"`
	FanOn        *int `json:"fan_on,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks reading invariants.
func (r Reading) Validate() error {
	if r.ID == "" {
		return errors.New("reading: empty id")
	}
	if r.EquipmentID == "" {
		return errors.New("reading: empty equipment id")
	}
	if r.RecordedAt.IsZero() {
		return errors.New("reading: zero recorded_at")
	}
	for _, flag := range []*int{r.DoorOpen, r.HeaterOn, r.CompressorOn, r.FanOn} {
		if flag != nil && *flag != 0 && *flag != 1 {
			return errors.New("reading: boolean field must be 0 or 1")
		}
	}
	return nil
}

// ReadingRepository persists telemetry readings.
type ReadingRepository interface {
	Insert(ctx context.Context, reading *Reading) error
	ListByEquipment(ctx context.Context, equipmentID string, from, to time.Time, limit, offset int) ([]Reading, error)
	Latest(ctx context.Context, equipmentID string) (*Reading, error)
}
