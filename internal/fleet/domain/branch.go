package fleet

import (
	"context"
	"errors"
	"time"
)

// Branch is a physical site belonging to a company.
type Branch struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"company_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks branch invariants.
func (b Branch) Validate() error {
	if b.ID == "" {
		return errors.New("branch: empty id")
	}
	if b.CompanyID == "" {
		return errors.New("branch: empty company id")
	}
	if b.Name == "" {
		return errors.New("branch: empty name")
	}
	if b.Address == "" {
		return errors.New("branch: empty address")
	}
	return nil
}

// BranchRepository manages branch persistence.
type BranchRepository interface {
	Get(ctx context.Context, id string) (*Branch, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]Branch, error)
	Save(ctx context.Context, branch *Branch) error
	Delete(ctx context.Context, id string) error
}
