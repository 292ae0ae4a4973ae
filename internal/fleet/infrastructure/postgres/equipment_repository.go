package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

const equipmentColumns = `id, serial, type, branch_id, company_id, manufacturer, model, status, api_key, last_seen_at, installed_at, created_at, updated_at`

// EquipmentRepository is a Postgres repository for equipment.
type EquipmentRepository struct {
	db *sql.DB
}

// NewEquipmentRepository constructs a repository.
func NewEquipmentRepository(db *sql.DB) *EquipmentRepository {
	return &EquipmentRepository{db: db}
}

// Get loads an equipment by id.
func (r *EquipmentRepository) Get(ctx context.Context, id string) (*fleet.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if id == "" {
		return nil, errors.New("equipment repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+equipmentColumns+`
FROM equipments
WHERE id = $1
LIMIT 1`, id)
	return scanEquipment(row)
}

// GetBySerial loads an equipment by serial number.
func (r *EquipmentRepository) GetBySerial(ctx context.Context, serial string) (*fleet.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if serial == "" {
		return nil, errors.New("equipment repo: empty serial")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+equipmentColumns+`
FROM equipments
WHERE serial = $1
LIMIT 1`, serial)
	return scanEquipment(row)
}

// ListByCompany returns a company's equipment ordered by serial.
func (r *EquipmentRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]fleet.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	if companyID == "" {
		return nil, errors.New("equipment repo: empty company id")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+equipmentColumns+`
FROM equipments
WHERE company_id = $1
ORDER BY serial ASC
LIMIT $2 OFFSET $3`, companyID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEquipments(rows)
}

// ListAll returns every equipment. Used by the offline sweep.
func (r *EquipmentRepository) ListAll(ctx context.Context) ([]fleet.Equipment, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("equipment repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+equipmentColumns+`
FROM equipments
ORDER BY serial ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEquipments(rows)
}

// Save upserts an equipment.
func (r *EquipmentRepository) Save(ctx context.Context, equipment *fleet.Equipment) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if equipment == nil {
		return errors.New("equipment repo: nil equipment")
	}
	if err := equipment.Validate(); err != nil {
		return err
	}
	if equipment.Status == "" {
		equipment.Status = fleet.StatusOperational
	}
	now := time.Now().UTC()
	if equipment.CreatedAt.IsZero() {
		equipment.CreatedAt = now
	}
	equipment.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
INSERT INTO equipments (`+equipmentColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id)
DO UPDATE SET
	serial = EXCLUDED.serial,
	type = EXCLUDED.type,
	branch_id = EXCLUDED.branch_id,
	manufacturer = EXCLUDED.manufacturer,
	model = EXCLUDED.model,
	status = EXCLUDED.status,
	api_key = EXCLUDED.api_key,
	installed_at = EXCLUDED.installed_at,
	updated_at = EXCLUDED.updated_at`,
		equipment.ID, equipment.Serial, equipment.Type, equipment.BranchID,
		equipment.CompanyID, equipment.Manufacturer, equipment.Model,
		string(equipment.Status), equipment.APIKey,
		nullTime(equipment.LastSeenAt), nullTime(equipment.InstalledAt),
		equipment.CreatedAt, equipment.UpdatedAt)
	return err
}

// UpdateStatus sets the derived health status.
func (r *EquipmentRepository) UpdateStatus(ctx context.Context, id string, status fleet.EquipmentStatus) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if id == "" {
		return errors.New("equipment repo: empty id")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE equipments
SET status = $2, updated_at = NOW()
WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fleet.ErrNotFound
	}
	return nil
}

// TouchLastSeen records the latest observed telemetry time.
func (r *EquipmentRepository) TouchLastSeen(ctx context.Context, id string, seenAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if id == "" {
		return errors.New("equipment repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE equipments
SET last_seen_at = GREATEST(COALESCE(last_seen_at, 'epoch'::timestamptz), $2), updated_at = NOW()
WHERE id = $1`, id, seenAt.UTC())
	return err
}

// Delete removes an equipment.
func (r *EquipmentRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("equipment repo: nil db")
	}
	if id == "" {
		return errors.New("equipment repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM equipments WHERE id = $1`, id)
	return err
}

func collectEquipments(rows *sql.Rows) ([]fleet.Equipment, error) {
	var result []fleet.Equipment
	for rows.Next() {
		equipment, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *equipment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanEquipment(row rowScanner) (*fleet.Equipment, error) {
	var equipment fleet.Equipment
	var manufacturer, model sql.NullString
	var status string
	var lastSeen, installed sql.NullTime
	if err := row.Scan(
		&equipment.ID,
		&equipment.Serial,
		&equipment.Type,
		&equipment.BranchID,
		&equipment.CompanyID,
		&manufacturer,
		&model,
		&status,
		&equipment.APIKey,
		&lastSeen,
		&installed,
		&equipment.CreatedAt,
		&equipment.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	equipment.Status = fleet.EquipmentStatus(status)
	if manufacturer.Valid {
		equipment.Manufacturer = manufacturer.String
	}
	if model.Valid {
		equipment.Model = model.String
	}
	if lastSeen.Valid {
		equipment.LastSeenAt = lastSeen.Time.UTC()
	}
	if installed.Valid {
		equipment.InstalledAt = installed.Time.UTC()
	}
	equipment.CreatedAt = equipment.CreatedAt.UTC()
	equipment.UpdatedAt = equipment.UpdatedAt.UTC()
	return &equipment, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
