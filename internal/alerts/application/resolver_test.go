package application

import (
	"context"
	"testing"
	"time"

	alerts "coldchain-cloud/internal/alerts/domain"
)

func offlineRule(id string, scope alerts.RuleScope, durationSeconds int) alerts.AlertRule {
	return alerts.AlertRule{
		ID:              id,
		Name:            id,
		RuleType:        alerts.RuleEquipmentOffline,
		DurationSeconds: durationSeconds,
		Severity:        alerts.SeverityCritical,
		Scope:           scope,
		IsActive:        true,
	}
}

func TestResolver_UnionsScopes(t *testing.T) {
	global := offlineRule("rule-a", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	company := offlineRule("rule-b", alerts.RuleScope{Kind: alerts.ScopeCompany, ScopeID: "company-1"}, 600)
	otherCompany := offlineRule("rule-c", alerts.RuleScope{Kind: alerts.ScopeCompany, ScopeID: "company-2"}, 600)
	equipment := offlineRule("rule-d", alerts.RuleScope{Kind: alerts.ScopeEquipment, ScopeID: "eq-1"}, 600)
	inactive := offlineRule("rule-e", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	inactive.IsActive = false

	resolver, err := NewResolver(newMemRuleRepo(global, company, otherCompany, equipment, inactive), time.Minute)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	ref := alerts.EquipmentRef{EquipmentID: "eq-1", CompanyID: "company-1"}
	resolved, err := resolver.Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved) != 3 {
		t.Fatalf("expected 3 rules, got %d", len(resolved))
	}
	// Sorted by id for deterministic evaluation order.
	for i, want := range []string{"rule-a", "rule-b", "rule-d"} {
		if resolved[i].ID != want {
			t.Fatalf("rule %d = %s, want %s", i, resolved[i].ID, want)
		}
	}
}

func TestResolver_CacheAndInvalidate(t *testing.T) {
	repo := newMemRuleRepo(offlineRule("rule-a", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600))
	resolver, err := NewResolver(repo, time.Hour)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	ctx := context.Background()
	ref := alerts.EquipmentRef{EquipmentID: "eq-1", CompanyID: "company-1"}
	first, err := resolver.Resolve(ctx, ref)
	if err != nil || len(first) != 1 {
		t.Fatalf("first resolve: %v, %d rules", err, len(first))
	}

	extra := offlineRule("rule-b", alerts.RuleScope{Kind: alerts.ScopeGlobal}, 600)
	if err := repo.Save(ctx, &extra); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Within the TTL the stale set is served.
	cached, err := resolver.Resolve(ctx, ref)
	if err != nil || len(cached) != 1 {
		t.Fatalf("cached resolve: %v, %d rules", err, len(cached))
	}

	resolver.Invalidate()
	fresh, err := resolver.Resolve(ctx, ref)
	if err != nil {
		t.Fatalf("fresh resolve: %v", err)
	}
	if len(fresh) != 2 {
		t.Fatalf("expected 2 rules after invalidate, got %d", len(fresh))
	}
}
