package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

// CompanyRepository is a Postgres repository for companies.
type CompanyRepository struct {
	db *sql.DB
}

// NewCompanyRepository constructs a repository.
func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Get loads a company by id.
func (r *CompanyRepository) Get(ctx context.Context, id string) (*fleet.Company, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("company repo: nil db")
	}
	if id == "" {
		return nil, errors.New("company repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, contact_email, contact_phone, status, created_at, updated_at
FROM companies
WHERE id = $1
LIMIT 1`, id)
	return scanCompany(row)
}

// List returns companies ordered by name.
func (r *CompanyRepository) List(ctx context.Context, limit, offset int) ([]fleet.Company, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("company repo: nil db")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, contact_email, contact_phone, status, created_at, updated_at
FROM companies
ORDER BY name ASC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *company)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a company.
func (r *CompanyRepository) Save(ctx context.Context, company *fleet.Company) error {
	if r == nil || r.db == nil {
		return errors.New("company repo: nil db")
	}
	if company == nil {
		return errors.New("company repo: nil company")
	}
	if err := company.Validate(); err != nil {
		return err
	}
	if company.Status == "" {
		company.Status = fleet.CompanyStatusActive
	}
	now := time.Now().UTC()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
INSERT INTO companies (id, name, contact_email, contact_phone, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	contact_email = EXCLUDED.contact_email,
	contact_phone = EXCLUDED.contact_phone,
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at`,
		company.ID, company.Name, company.ContactEmail, company.ContactPhone,
		company.Status, company.CreatedAt, company.UpdatedAt)
	return err
}

// Delete removes a company.
func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("company repo: nil db")
	}
	if id == "" {
		return errors.New("company repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM companies WHERE id = $1`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (*fleet.Company, error) {
	var company fleet.Company
	var email, phone sql.NullString
	if err := row.Scan(
		&company.ID,
		&company.Name,
		&email,
		&phone,
		&company.Status,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	company.CreatedAt = company.CreatedAt.UTC()
	company.UpdatedAt = company.UpdatedAt.UTC()
	if email.Valid {
		company.ContactEmail = email.String
	}
	if phone.Valid {
		company.ContactPhone = phone.String
	}
	return &company, nil
}
