package application

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"

	alerts "coldchain-cloud/internal/alerts/domain"
	"coldchain-cloud/internal/audit"
	"coldchain-cloud/internal/auth"
)

// RuleInput carries rule fields for create and update.
type RuleInput struct {
	Name            string   `json:"name"`
	RuleType        string   `json:"rule_type"`
	ThresholdValue  *float64 `json:"threshold_value"`
	Operator        string   `json:"operator"`
	DurationSeconds *int     `json:"duration_seconds"`
	Severity        string   `json:"severity"`
	MessageTemplate string   `json:"message_template"`
	ScopeKind       string   `json:"scope_kind"`
	ScopeID         string   `json:"scope_id"`
	IsActive        *bool    `json:"is_active"`
}

// RuleAdmin manages the rule catalog. Mutations invalidate the
// resolver cache so evaluation picks them up immediately.
type RuleAdmin struct {
	rules    alerts.RuleRepository
	resolver *Resolver
	auditor  audit.Logger
	clock    Clock
	logger   *log.Logger
}

// NewRuleAdmin constructs a rule admin service.
func NewRuleAdmin(rules alerts.RuleRepository, resolver *Resolver, auditor audit.Logger, logger *log.Logger) (*RuleAdmin, error) {
	if rules == nil {
		return nil, errors.New("rule admin: nil rule repository")
	}
	if resolver == nil {
		return nil, errors.New("rule admin: nil resolver")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RuleAdmin{
		rules:    rules,
		resolver: resolver,
		auditor:  auditor,
		clock:    systemClock{},
		logger:   logger,
	}, nil
}

// CreateRule validates and stores a new rule.
func (a *RuleAdmin) CreateRule(ctx context.Context, input RuleInput) (*alerts.AlertRule, error) {
	rule := &alerts.AlertRule{
		ID:              uuid.NewString(),
		Name:            input.Name,
		RuleType:        alerts.RuleType(input.RuleType),
		ThresholdValue:  input.ThresholdValue,
		Operator:        alerts.Operator(input.Operator),
		Severity:        alerts.Severity(input.Severity),
		MessageTemplate: input.MessageTemplate,
		Scope: alerts.RuleScope{
			Kind:    alerts.ScopeKind(input.ScopeKind),
			ScopeID: input.ScopeID,
		},
		IsActive:  true,
		CreatedAt: a.clock.Now().UTC(),
	}
	if input.DurationSeconds != nil {
		rule.DurationSeconds = *input.DurationSeconds
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := a.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	a.resolver.Invalidate()
	a.recordAudit(ctx, "alert_rule.create", rule.ID, input)
	return rule, nil
}

// UpdateRule applies a partial update to an existing rule.
func (a *RuleAdmin) UpdateRule(ctx context.Context, id string, input RuleInput) (*alerts.AlertRule, error) {
	rule, err := a.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, alerts.ErrNotFound
	}
	if input.Name != "" {
		rule.Name = input.Name
	}
	if input.RuleType != "" {
		rule.RuleType = alerts.RuleType(input.RuleType)
	}
	if input.ThresholdValue != nil {
		rule.ThresholdValue = input.ThresholdValue
	}
	if input.Operator != "" {
		rule.Operator = alerts.Operator(input.Operator)
	}
	if input.DurationSeconds != nil {
		rule.DurationSeconds = *input.DurationSeconds
	}
	if input.Severity != "" {
		rule.Severity = alerts.Severity(input.Severity)
	}
	if input.MessageTemplate != "" {
		rule.MessageTemplate = input.MessageTemplate
	}
	if input.ScopeKind != "" {
		rule.Scope = alerts.RuleScope{
			Kind:    alerts.ScopeKind(input.ScopeKind),
			ScopeID: input.ScopeID,
		}
	}
	if input.IsActive != nil {
		rule.IsActive = *input.IsActive
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := a.rules.Save(ctx, rule); err != nil {
		return nil, err
	}
	a.resolver.Invalidate()
	a.recordAudit(ctx, "alert_rule.update", rule.ID, input)
	return rule, nil
}

// DeleteRule removes a rule. Open alerts raised by it keep their copied
// type and severity.
func (a *RuleAdmin) DeleteRule(ctx context.Context, id string) error {
	rule, err := a.rules.Get(ctx, id)
	if err != nil {
		return err
	}
	if rule == nil {
		return alerts.ErrNotFound
	}
	if err := a.rules.Delete(ctx, id); err != nil {
		return err
	}
	a.resolver.Invalidate()
	a.recordAudit(ctx, "alert_rule.delete", id, nil)
	return nil
}

// GetRule loads a rule.
func (a *RuleAdmin) GetRule(ctx context.Context, id string) (*alerts.AlertRule, error) {
	rule, err := a.rules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, alerts.ErrNotFound
	}
	return rule, nil
}

// ListRules pages through the catalog.
func (a *RuleAdmin) ListRules(ctx context.Context, limit, offset int) ([]alerts.AlertRule, error) {
	return a.rules.List(ctx, limit, offset)
}

func (a *RuleAdmin) recordAudit(ctx context.Context, action, ruleID string, payload any) {
	if a.auditor == nil {
		return
	}
	var metadata json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			metadata = data
		}
	}
	entry := audit.Entry{
		CompanyID:    auth.CompanyIDFromContext(ctx),
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: "alert_rule",
		ResourceID:   ruleID,
		Metadata:     metadata,
	}
	if err := a.auditor.Log(ctx, entry); err != nil {
		a.logger.Printf("alerts: audit log failed action=%s: %v", action, err)
	}
}
