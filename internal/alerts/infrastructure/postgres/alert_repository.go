package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	alerts "coldchain-cloud/internal/alerts/domain"
)

const alertColumns = `id, equipment_id, company_id, rule_id, type, severity, message, status, trigger_value, acknowledged_at, acknowledged_by, acknowledgment_notes, resolved_at, created_at, updated_at`

// AlertRepository is a Postgres repository for alerts.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Get loads an alert by id.
func (r *AlertRepository) Get(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if id == "" {
		return nil, errors.New("alert repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE id = $1
LIMIT 1`, id)
	return scanAlert(row)
}

// FindOpenByEquipmentRule returns the open alert for one (equipment,
// rule) pair, if any. At most one exists.
func (r *AlertRepository) FindOpenByEquipmentRule(ctx context.Context, equipmentID, ruleID string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE equipment_id = $1 AND rule_id = $2 AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC
LIMIT 1`, equipmentID, ruleID)
	return scanAlert(row)
}

// ListActiveByEquipment returns every open alert on one equipment.
func (r *AlertRepository) ListActiveByEquipment(ctx context.Context, equipmentID string) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE equipment_id = $1 AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC`, equipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter alerts.ListFilter) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	conditions := []string{"1 = 1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.CompanyID != "" {
		conditions = append(conditions, "company_id = "+arg(filter.CompanyID))
	}
	if filter.BranchID != "" {
		conditions = append(conditions, "equipment_id IN (SELECT id FROM equipments WHERE branch_id = "+arg(filter.BranchID)+")")
	}
	if filter.EquipmentID != "" {
		conditions = append(conditions, "equipment_id = "+arg(filter.EquipmentID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = "+arg(filter.Severity))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(filter.From.UTC()))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at < "+arg(filter.To.UTC()))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE ` + strings.Join(conditions, " AND ") + `
ORDER BY created_at DESC
LIMIT ` + arg(limit) + ` OFFSET ` + arg(filter.Offset)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// Create inserts a new alert row.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	now := time.Now().UTC()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alerts (`+alertColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		alert.ID, alert.EquipmentID, alert.CompanyID, alert.RuleID,
		string(alert.Type), string(alert.Severity), alert.Message, alert.Status,
		nullFloat(alert.TriggerValue), nullTime(alert.AcknowledgedAt),
		alert.AcknowledgedBy, alert.AcknowledgmentNotes,
		nullTime(alert.ResolvedAt), alert.CreatedAt, alert.UpdatedAt)
	return err
}

// MarkAcknowledged moves an alert to acknowledged. Re-acknowledging an
// already acknowledged alert refreshes the actor and notes.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id, userID, notes string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $2, acknowledged_at = $3, acknowledged_by = $4, acknowledgment_notes = $5, updated_at = $3
WHERE id = $1 AND status IN ('active', 'acknowledged')`,
		id, alerts.StatusAcknowledged, at.UTC(), userID, notes)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

// MarkResolved moves an alert to resolved.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET status = $2, resolved_at = $3, updated_at = $3
WHERE id = $1 AND status IN ('active', 'acknowledged')`,
		id, alerts.StatusResolved, at.UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	return nil
}

func collectAlerts(rows *sql.Rows) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanAlert(row rowScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var alertType, severity string
	var triggerValue sql.NullFloat64
	var acknowledgedAt, resolvedAt sql.NullTime
	var acknowledgedBy, notes sql.NullString
	if err := row.Scan(
		&alert.ID,
		&alert.EquipmentID,
		&alert.CompanyID,
		&alert.RuleID,
		&alertType,
		&severity,
		&alert.Message,
		&alert.Status,
		&triggerValue,
		&acknowledgedAt,
		&acknowledgedBy,
		&notes,
		&resolvedAt,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.Type = alerts.RuleType(alertType)
	alert.Severity = alerts.Severity(severity)
	if triggerValue.Valid {
		value := triggerValue.Float64
		alert.TriggerValue = &value
	}
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = acknowledgedAt.Time.UTC()
	}
	if acknowledgedBy.Valid {
		alert.AcknowledgedBy = acknowledgedBy.String
	}
	if notes.Valid {
		alert.AcknowledgmentNotes = notes.String
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	return &alert, nil
}
