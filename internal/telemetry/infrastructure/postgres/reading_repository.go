package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "coldchain-cloud/internal/telemetry/domain"
)

const readingColumns = `id, equipment_id, company_id, recorded_at, temperature, pressure, door_open, heater_on, compressor_on, fan_on, received_at`

// ReadingRepository is a Postgres repository for telemetry readings.
type ReadingRepository struct {
	db *sql.DB
}

// NewReadingRepository constructs a repository.
func NewReadingRepository(db *sql.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert persists a reading.
func (r *ReadingRepository) Insert(ctx context.Context, reading *telemetry.Reading) error {
	if r == nil || r.db == nil {
		return errors.New("reading repo: nil db")
	}
	if reading == nil {
		return errors.New("reading repo: nil reading")
	}
	if err := reading.Validate(); err != nil {
		return err
	}
	if reading.ReceivedAt.IsZero() {
		reading.ReceivedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO readings (`+readingColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		reading.ID, reading.EquipmentID, reading.CompanyID, reading.RecordedAt.UTC(),
		nullFloat(reading.Temperature), nullFloat(reading.Pressure),
		nullInt(reading.DoorOpen), nullInt(reading.HeaterOn),
		nullInt(reading.CompressorOn), nullInt(reading.FanOn),
		reading.ReceivedAt.UTC())
	return err
}

// ListByEquipment returns readings within [from, to), newest first.
func (r *ReadingRepository) ListByEquipment(ctx context.Context, equipmentID string, from, to time.Time, limit, offset int) ([]telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("reading repo: empty equipment id")
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+readingColumns+`
FROM readings
WHERE equipment_id = $1 AND recorded_at >= $2 AND recorded_at < $3
ORDER BY recorded_at DESC
LIMIT $4 OFFSET $5`, equipmentID, from.UTC(), to.UTC(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []telemetry.Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *reading)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Latest returns the most recent reading for an equipment.
func (r *ReadingRepository) Latest(ctx context.Context, equipmentID string) (*telemetry.Reading, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("reading repo: nil db")
	}
	if equipmentID == "" {
		return nil, errors.New("reading repo: empty equipment id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+readingColumns+`
FROM readings
WHERE equipment_id = $1
ORDER BY recorded_at DESC
LIMIT 1`, equipmentID)
	return scanReading(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*telemetry.Reading, error) {
	var reading telemetry.Reading
	var temperature, pressure sql.NullFloat64
	var door, heater, compressor, fan sql.NullInt64
	if err := row.Scan(
		&reading.ID,
		&reading.EquipmentID,
		&reading.CompanyID,
		&reading.RecordedAt,
		&temperature,
		&pressure,
		&door,
		&heater,
		&compressor,
		&fan,
		&reading.ReceivedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	reading.RecordedAt = reading.RecordedAt.UTC()
	reading.ReceivedAt = reading.ReceivedAt.UTC()
	if temperature.Valid {
		v := temperature.Float64
		reading.Temperature = &v
	}
	if pressure.Valid {
		v := pressure.Float64
		reading.Pressure = &v
	}
	reading.DoorOpen = intPtr(door)
	reading.HeaterOn = intPtr(heater)
	reading.CompressorOn = intPtr(compressor)
	reading.FanOn = intPtr(fan)
	return &reading, nil
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	value := int(v.Int64)
	return &value
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
