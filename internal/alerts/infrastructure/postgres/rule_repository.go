package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	alerts "coldchain-cloud/internal/alerts/domain"
)

const ruleColumns = `id, name, rule_type, threshold_value, operator, duration_seconds, severity, message_template, scope_kind, scope_id, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// RuleRepository is a Postgres repository for alert rules.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository constructs a repository.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Get loads a rule by id.
func (r *RuleRepository) Get(ctx context.Context, id string) (*alerts.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if id == "" {
		return nil, errors.New("rule repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+ruleColumns+`
FROM alert_rules
WHERE id = $1
LIMIT 1`, id)
	return scanRule(row)
}

// List returns rules ordered by name.
func (r *RuleRepository) List(ctx context.Context, limit, offset int) ([]alerts.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM alert_rules
ORDER BY name ASC, id ASC
LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListActiveByScope returns active rules attached to one scope. The
// global scope ignores scope_id.
func (r *RuleRepository) ListActiveByScope(ctx context.Context, kind alerts.ScopeKind, scopeID string) ([]alerts.AlertRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	var rows *sql.Rows
	var err error
	if kind == alerts.ScopeGlobal {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM alert_rules
WHERE scope_kind = $1 AND is_active = TRUE
ORDER BY id ASC`, string(kind))
	} else {
		rows, err = r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM alert_rules
WHERE scope_kind = $1 AND scope_id = $2 AND is_active = TRUE
ORDER BY id ASC`, string(kind), scopeID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// Save upserts a rule.
func (r *RuleRepository) Save(ctx context.Context, rule *alerts.AlertRule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if rule == nil {
		return errors.New("rule repo: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alert_rules (`+ruleColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	rule_type = EXCLUDED.rule_type,
	threshold_value = EXCLUDED.threshold_value,
	operator = EXCLUDED.operator,
	duration_seconds = EXCLUDED.duration_seconds,
	severity = EXCLUDED.severity,
	message_template = EXCLUDED.message_template,
	scope_kind = EXCLUDED.scope_kind,
	scope_id = EXCLUDED.scope_id,
	is_active = EXCLUDED.is_active,
	updated_at = EXCLUDED.updated_at`,
		rule.ID, rule.Name, string(rule.RuleType), nullFloat(rule.ThresholdValue),
		string(rule.Operator), rule.DurationSeconds, string(rule.Severity),
		rule.MessageTemplate, string(rule.Scope.Kind), rule.Scope.ScopeID,
		rule.IsActive, rule.CreatedAt, rule.UpdatedAt)
	return err
}

// Delete removes a rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if id == "" {
		return errors.New("rule repo: empty id")
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	return err
}

func collectRules(rows *sql.Rows) ([]alerts.AlertRule, error) {
	var result []alerts.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanRule(row rowScanner) (*alerts.AlertRule, error) {
	var rule alerts.AlertRule
	var ruleType, operator, severity, scopeKind string
	var threshold sql.NullFloat64
	var scopeID sql.NullString
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&ruleType,
		&threshold,
		&operator,
		&rule.DurationSeconds,
		&severity,
		&rule.MessageTemplate,
		&scopeKind,
		&scopeID,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule.RuleType = alerts.RuleType(ruleType)
	rule.Operator = alerts.Operator(operator)
	rule.Severity = alerts.Severity(severity)
	rule.Scope.Kind = alerts.ScopeKind(scopeKind)
	if scopeID.Valid {
		rule.Scope.ScopeID = scopeID.String
	}
	if threshold.Valid {
		value := threshold.Float64
		rule.ThresholdValue = &value
	}
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return &rule, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
