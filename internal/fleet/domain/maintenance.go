package fleet

import (
	"context"
	"errors"
	"time"
)

// MaintenanceRecord documents service performed on an equipment.
type MaintenanceRecord struct {
	ID                  string    `json:"id"`
	EquipmentID         string    `json:"equipment_id"`
	Type                string    `json:"type"`
	Description         string    `json:"description"`
	PerformedBy         string    `json:"performed_by"`
	PerformedAt         time.Time `json:"performed_at"`
	Notes               string    `json:"notes,omitempty"`
	NextMaintenanceDate time.Time `json:"next_maintenance_date,omitempty"`
	CreatedBy           string    `json:"created_by,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// Validate checks maintenance record invariants.
func (m MaintenanceRecord) Validate() error {
	if m.ID == "" {
		return errors.New("maintenance record: empty id")
	}
	if m.EquipmentID == "" {
		return errors.New("maintenance record: empty equipment id")
	}
	if m.Type == "" {
		return errors.New("maintenance record: empty type")
	}
	if m.Description == "" {
		return errors.New("maintenance record: empty description")
	}
	if m.PerformedBy == "" {
		return errors.New("maintenance record: empty performer")
	}
	return nil
}

// MaintenanceRepository manages maintenance record persistence.
type MaintenanceRepository interface {
	ListByEquipment(ctx context.Context, equipmentID string, limit, offset int) ([]MaintenanceRecord, error)
	Save(ctx context.Context, record *MaintenanceRecord) error
}
