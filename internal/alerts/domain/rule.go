package alerts

import (
	"context"
	"fmt"
	"time"
)

// RuleType classifies what an alert rule watches.
type RuleType string

const (
	RuleTemperatureHigh  RuleType = "temperature_high"
	RuleTemperatureLow   RuleType = "temperature_low"
	RulePressureHigh     RuleType = "pressure_high"
	RulePressureLow      RuleType = "pressure_low"
	RuleDoorOpen         RuleType = "door_open"
	RuleEquipmentOffline RuleType = "equipment_offline"
)

// Valid returns true when the rule type is supported.
func (t RuleType) Valid() bool {
	switch t {
	case RuleTemperatureHigh, RuleTemperatureLow, RulePressureHigh, RulePressureLow, RuleDoorOpen, RuleEquipmentOffline:
		return true
	default:
		return false
	}
}

// NeedsThreshold reports whether the rule type compares against a numeric threshold.
func (t RuleType) NeedsThreshold() bool {
	switch t {
	case RuleTemperatureHigh, RuleTemperatureLow, RulePressureHigh, RulePressureLow:
		return true
	default:
		return false
	}
}

// Operator is a numeric comparison operator.
type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorLess           Operator = "<"
	OperatorEqual          Operator = "="
	OperatorGreaterOrEqual Operator = ">="
	OperatorLessOrEqual    Operator = "<="
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorEqual, OperatorGreaterOrEqual, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to value against threshold.
// Equality is exact; there is no tolerance on float comparison.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorLess:
		return value < threshold
	case OperatorEqual:
		return value == threshold
	case OperatorGreaterOrEqual:
		return value >= threshold
	case OperatorLessOrEqual:
		return value <= threshold
	default:
		return false
	}
}

// Severity grades an alert rule.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Valid returns true when the severity is supported.
func (s Severity) Valid() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// ScopeKind names the breadth at which a rule applies.
type ScopeKind string

const (
	ScopeGlobal    ScopeKind = "global"
	ScopeCompany   ScopeKind = "company"
	ScopeEquipment ScopeKind = "equipment"
)

// RuleScope is a closed sum over global, company and equipment scopes.
// ScopeID is empty exactly when Kind is global.
type RuleScope struct {
	Kind    ScopeKind `json:"kind"`
	ScopeID string    `json:"scope_id,omitempty"`
}

// EquipmentRef carries the equipment identity a scope is matched against.
type EquipmentRef struct {
	EquipmentID string
	CompanyID   string
}

// Matches reports whether the scope applies to the given equipment.
func (s RuleScope) Matches(ref EquipmentRef) bool {
	switch s.Kind {
	case ScopeGlobal:
		return true
	case ScopeCompany:
		return s.ScopeID != "" && s.ScopeID == ref.CompanyID
	case ScopeEquipment:
		return s.ScopeID != "" && s.ScopeID == ref.EquipmentID
	default:
		return false
	}
}

// Validate checks scope invariants.
func (s RuleScope) Validate() error {
	switch s.Kind {
	case ScopeGlobal:
		if s.ScopeID != "" {
			return fmt.Errorf("%w: global scope must not carry a scope id", ErrInvalidRule)
		}
	case ScopeCompany, ScopeEquipment:
		if s.ScopeID == "" {
			return fmt.Errorf("%w: %s scope requires a scope id", ErrInvalidRule, s.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidRule, s.Kind)
	}
	return nil
}

// AlertRule defines a configurable alert condition.
type AlertRule struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	RuleType        RuleType  `json:"rule_type"`
	ThresholdValue  *float64  `json:"threshold_value,omitempty"`
	Operator        Operator  `json:"comparison_operator,omitempty"`
	DurationSeconds int       `json:"duration_seconds"`
	Severity        Severity  `json:"severity"`
	MessageTemplate string    `json:"message_template"`
	Scope           RuleScope `json:"scope"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Duration returns the debounce window.
func (r AlertRule) Duration() time.Duration {
	if r.DurationSeconds <= 0 {
		return 0
	}
	return time.Duration(r.DurationSeconds) * time.Second
}

// Validate checks rule invariants.
func (r AlertRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRule)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidRule)
	}
	if !r.RuleType.Valid() {
		return fmt.Errorf("%w: unknown rule type %q", ErrInvalidRule, r.RuleType)
	}
	if r.RuleType.NeedsThreshold() {
		if r.ThresholdValue == nil {
			return fmt.Errorf("%w: %s requires a threshold", ErrInvalidRule, r.RuleType)
		}
		if !r.Operator.Valid() {
			return fmt.Errorf("%w: invalid operator %q", ErrInvalidRule, r.Operator)
		}
	}
	if r.DurationSeconds < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRule)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: invalid severity %q", ErrInvalidRule, r.Severity)
	}
	return r.Scope.Validate()
}

// RuleRepository manages alert rule persistence.
type RuleRepository interface {
	Get(ctx context.Context, id string) (*AlertRule, error)
	List(ctx context.Context, limit, offset int) ([]AlertRule, error)
	ListActiveByScope(ctx context.Context, kind ScopeKind, scopeID string) ([]AlertRule, error)
	Save(ctx context.Context, rule *AlertRule) error
	Delete(ctx context.Context, id string) error
}
