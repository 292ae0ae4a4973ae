package alerts

import (
	"context"
	"time"
)

const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
)

// Alert is one raised alert instance. Type and severity are copied from
// the rule at creation so the alert keeps its classification even if
// the rule is edited or deleted afterwards.
type Alert struct {
	ID          string   `json:"id"`
	EquipmentID string   `json:"equipment_id"`
	CompanyID   string   `json:"company_id"`
	RuleID      string   `json:"alert_rule_id,omitempty"`
	Type        RuleType `json:"type"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Status      string   `json:"status"`

	TriggerValue *float64 `json:"trigger_value,omitempty"`

	AcknowledgedAt      time.Time `json:"acknowledged_at,omitempty"`
	AcknowledgedBy      string    `json:"acknowledged_by,omitempty"`
	AcknowledgmentNotes string    `json:"acknowledgment_notes,omitempty"`
	ResolvedAt          time.Time `json:"resolved_at,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Open reports whether the alert still counts against the dedup key.
func (a Alert) Open() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// ListFilter narrows alert listings.
type ListFilter struct {
	CompanyID   string
	BranchID    string
	EquipmentID string
	Status      string
	Severity    string
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// AlertRepository manages alert persistence. FindOpenByEquipmentRule is
// the dedup index lookup: at most one open alert per (equipment, rule).
type AlertRepository interface {
	Get(ctx context.Context, id string) (*Alert, error)
	FindOpenByEquipmentRule(ctx context.Context, equipmentID, ruleID string) (*Alert, error)
	ListActiveByEquipment(ctx context.Context, equipmentID string) ([]Alert, error)
	List(ctx context.Context, filter ListFilter) ([]Alert, error)
	Create(ctx context.Context, alert *Alert) error
	MarkAcknowledged(ctx context.Context, id, userID, notes string, at time.Time) error
	MarkResolved(ctx context.Context, id string, at time.Time) error
}
