package auth

import (
	"context"
	"errors"

	fleet "coldchain-cloud/internal/fleet/domain"
)

var (
	// ErrCompanyMismatch indicates the equipment belongs to another company.
	ErrCompanyMismatch = errors.New("auth: equipment belongs to another company")
	// ErrNotFound indicates the equipment does not exist.
	ErrNotFound = errors.New("auth: equipment not found")
)

// EquipmentReader is the subset of the fleet repository the checker needs.
type EquipmentReader interface {
	Get(ctx context.Context, id string) (*fleet.Equipment, error)
}

// CompanyChecker verifies that an equipment is owned by a company before
// a request is allowed to act on it. Global admins pass an empty company
// id and bypass the check.
type CompanyChecker struct {
	equipments EquipmentReader
}

// NewCompanyChecker constructs a checker.
func NewCompanyChecker(equipments EquipmentReader) (*CompanyChecker, error) {
	if equipments == nil {
		return nil, errors.New("company checker: nil equipment reader")
	}
	return &CompanyChecker{equipments: equipments}, nil
}

// EnsureEquipmentCompany returns nil when the equipment exists and is owned
// by companyID. An empty companyID bypasses ownership entirely.
func (c *CompanyChecker) EnsureEquipmentCompany(ctx context.Context, companyID, equipmentID string) error {
	if c == nil || c.equipments == nil {
		return errors.New("company checker: not initialized")
	}
	if equipmentID == "" {
		return ErrNotFound
	}
	equipment, err := c.equipments.Get(ctx, equipmentID)
	if err != nil {
		return err
	}
	if equipment == nil {
		return ErrNotFound
	}
	if companyID == "" {
		return nil
	}
	if equipment.CompanyID != companyID {
		return ErrCompanyMismatch
	}
	return nil
}
