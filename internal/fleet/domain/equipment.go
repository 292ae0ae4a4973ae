package fleet

import (
	"context"
	"errors"
	"time"
)

const (
	EquipmentTypeFreezer      = "freezer"
	EquipmentTypeRefrigerator = "refrigerator"
	EquipmentTypeColdRoom     = "cold_room"
)

// EquipmentStatus is the coarse health state derived from alerts and freshness.
type EquipmentStatus string

const (
	StatusOperational EquipmentStatus = "operational"
	StatusWarning     EquipmentStatus = "warning"
	StatusCritical    EquipmentStatus = "critical"
	StatusOffline     EquipmentStatus = "offline"
)

// Equipment is a monitored refrigeration unit.
type Equipment struct {
	ID           string          `json:"id"`
	Serial       string          `json:"serial"`
	Type         string          `json:"type"`
	BranchID     string          `json:"branch_id"`
	CompanyID    string          `json:"company_id"`
	Manufacturer string          `json:"manufacturer,omitempty"`
	Model        string          `json:"model,omitempty"`
	Status       EquipmentStatus `json:"status"`
	APIKey       string          `json:"-"`
	LastSeenAt   time.Time       `json:"last_seen_at,omitempty"`
	InstalledAt  time.Time       `json:"installed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks equipment invariants.
func (e Equipment) Validate() error {
	if e.ID == "" {
		return errors.New("equipment: empty id")
	}
	if e.Serial == "" {
		return errors.New("equipment: empty serial")
	}
	switch e.Type {
	case EquipmentTypeFreezer, EquipmentTypeRefrigerator, EquipmentTypeColdRoom:
	default:
		return errors.New("equipment: invalid type")
	}
	if e.BranchID == "" {
		return errors.New("equipment: empty branch id")
	}
	if e.CompanyID == "" {
		return errors.New("equipment: empty company id")
	}
	return nil
}

// EquipmentRepository manages equipment persistence.
type EquipmentRepository interface {
	Get(ctx context.Context, id string) (*Equipment, error)
	GetBySerial(ctx context.Context, serial string) (*Equipment, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Equipment, error)
	ListAll(ctx context.Context) ([]Equipment, error)
	Save(ctx context.Context, equipment *Equipment) error
	UpdateStatus(ctx context.Context, id string, status EquipmentStatus) error
	TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error
	Delete(ctx context.Context, id string) error
}
