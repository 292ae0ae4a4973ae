package fleet

import (
	"context"
	"errors"
	"time"
)

const (
	CompanyStatusActive   = "active"
	CompanyStatusInactive = "inactive"
)

// Company owns branches, users and equipment.
type Company struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Validate checks company invariants.
func (c Company) Validate() error {
	if c.ID == "" {
		return errors.New("company: empty id")
	}
	if c.Name == "" {
		return errors.New("company: empty name")
	}
	return nil
}

// CompanyRepository manages company persistence.
type CompanyRepository interface {
	Get(ctx context.Context, id string) (*Company, error)
	List(ctx context.Context, limit, offset int) ([]Company, error)
	Save(ctx context.Context, company *Company) error
	Delete(ctx context.Context, id string) error
}
