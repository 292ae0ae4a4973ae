package postgres

import (
	"context"
	"database/sql"
	"errors"

	alerts "coldchain-cloud/internal/alerts/domain"
)

// StateRepository persists per-(equipment, rule) debounce state.
type StateRepository struct {
	db *sql.DB
}

// NewStateRepository constructs a repository.
func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get loads the debounce state for one pair, nil when none exists.
func (r *StateRepository) Get(ctx context.Context, equipmentID, ruleID string) (*alerts.DebounceState, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("state repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT equipment_id, rule_id, phase, since, last_value, updated_at
FROM debounce_states
WHERE equipment_id = $1 AND rule_id = $2
LIMIT 1`, equipmentID, ruleID)
	var state alerts.DebounceState
	var phase string
	var since sql.NullTime
	var lastValue sql.NullFloat64
	if err := row.Scan(
		&state.EquipmentID,
		&state.RuleID,
		&phase,
		&since,
		&lastValue,
		&state.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	state.Phase = alerts.Phase(phase)
	if since.Valid {
		state.Since = since.Time.UTC()
	}
	if lastValue.Valid {
		value := lastValue.Float64
		state.LastValue = &value
	}
	state.UpdatedAt = state.UpdatedAt.UTC()
	return &state, nil
}

// Upsert writes the state, keyed by (equipment_id, rule_id).
func (r *StateRepository) Upsert(ctx context.Context, state *alerts.DebounceState) error {
	if r == nil || r.db == nil {
		return errors.New("state repo: nil db")
	}
	if state == nil {
		return errors.New("state repo: nil state")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO debounce_states (equipment_id, rule_id, phase, since, last_value, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (equipment_id, rule_id)
DO UPDATE SET
	phase = EXCLUDED.phase,
	since = EXCLUDED.since,
	last_value = EXCLUDED.last_value,
	updated_at = EXCLUDED.updated_at`,
		state.EquipmentID, state.RuleID, string(state.Phase),
		nullTime(state.Since), nullFloat(state.LastValue),
		state.UpdatedAt.UTC())
	return err
}

// Clear drops the state for one pair.
func (r *StateRepository) Clear(ctx context.Context, equipmentID, ruleID string) error {
	if r == nil || r.db == nil {
		return errors.New("state repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
DELETE FROM debounce_states
WHERE equipment_id = $1 AND rule_id = $2`, equipmentID, ruleID)
	return err
}
