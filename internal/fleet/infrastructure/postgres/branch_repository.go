package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

// BranchRepository is a Postgres repository for branches.
type BranchRepository struct {
	db *sql.DB
}

// NewBranchRepository constructs a repository.
func NewBranchRepository(db *sql.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

// Get loads a branch by id.
func (r *BranchRepository) Get(ctx context.Context, id string) (*fleet.Branch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("branch repo: nil db")
	}
	if id == "" {
		return nil, errors.New("branch repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, company_id, name, address, created_at, updated_at
FROM branches
WHERE id = $1
LIMIT 1`, id)
	return scanBranch(row)
}

// ListByCompany returns a company's branches ordered by name.
func (r *BranchRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]fleet.Branch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("branch repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("branch repo: empty company id")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, company_id, name, address, created_at, updated_at
FROM branches
WHERE company_id = $1
ORDER BY name ASC
LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.Branch
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *branch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save upserts a branch.
func (r *BranchRepository) Save(ctx context.Context, branch *fleet.Branch) error {
	if r == nil || r.db == nil {
		return errors.New("branch repo: nil db")
	}
	if branch == nil {
		return errors.New("branch repo: nil branch")
	}
	if err := branch.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if branch.CreatedAt.IsZero() {
		branch.CreatedAt = now
	}
	branch.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
INSERT INTO branches (id, company_id, name, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	address = EXCLUDED.address,
	updated_at = EXCLUDED.updated_at`,
		branch.ID, branch.CompanyID, branch.Name, branch.Address,
		branch.CreatedAt, branch.UpdatedAt)
	return err
}

// Delete removes a branch.
func (r *BranchRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("branch repo: nil db")
	}
	if id == "" {
		return errors.New("branch repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, id)
	return err
}

func scanBranch(row rowScanner) (*fleet.Branch, error) {
	var branch fleet.Branch
	if err := row.Scan(
		&branch.ID,
		&branch.CompanyID,
		&branch.Name,
		&branch.Address,
		&branch.CreatedAt,
		&branch.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	branch.CreatedAt = branch.CreatedAt.UTC()
	branch.UpdatedAt = branch.UpdatedAt.UTC()
	return &branch, nil
}
