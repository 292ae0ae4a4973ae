package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "coldchain-cloud/internal/fleet/domain"
)

// MaintenanceRepository is a Postgres repository for maintenance records.
type MaintenanceRepository struct {
	db *sql.DB
}

// NewMaintenanceRepository constructs a repository.
func NewMaintenanceRepository(db *sql.DB) *MaintenanceRepository {
	return &MaintenanceRepository{db: db}
}

// ListByEquipment returns maintenance records, newest first.
func (r *MaintenanceRepository) ListByEquipment(ctx context.Context, equipmentID string, limit, offset int) ([]fleet.MaintenanceRecord, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("maintenance repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("maintenance repo: empty equipment id")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, equipment_id, type, description, performed_by, performed_at, notes, next_maintenance_date, created_by, created_at
FROM maintenance_records
WHERE equipment_id = $1
ORDER BY performed_at DESC
LIMIT $2 OFFSET $3`, equipmentID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []fleet.MaintenanceRecord
	for rows.Next() {
		var record fleet.MaintenanceRecord
		var notes, createdBy sql.NullString
		var nextDate sql.NullTime
		if err := rows.Scan(
			&record.ID,
			&record.EquipmentID,
			&record.Type,
			&record.Description,
			&record.PerformedBy,
			&record.PerformedAt,
			&notes,
			&nextDate,
			&createdBy,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		if notes.Valid {
			record.Notes = notes.String
		}
		if createdBy.Valid {
			record.CreatedBy = createdBy.String
		}
		if nextDate.Valid {
			record.NextMaintenanceDate = nextDate.Time.UTC()
		}
		record.PerformedAt = record.PerformedAt.UTC()
		record.CreatedAt = record.CreatedAt.UTC()
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Save inserts a maintenance record.
func (r *MaintenanceRepository) Save(ctx context.Context, record *fleet.MaintenanceRecord) error {
	if r == nil || r.db == nil {
		return errors.New("maintenance repo: nil db")
	}
	if record == nil {
		return errors.New("maintenance repo: nil record")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.PerformedAt.IsZero() {
		record.PerformedAt = time.Now().UTC()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO maintenance_records (id, equipment_id, type, description, performed_by, performed_at, notes, next_maintenance_date, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID, record.EquipmentID, record.Type, record.Description,
		record.PerformedBy, record.PerformedAt.UTC(), record.Notes,
		nullTime(record.NextMaintenanceDate), record.CreatedBy, record.CreatedAt.UTC())
	return err
}
