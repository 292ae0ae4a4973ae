package application

import (
	"context"
	"errors"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	alerts "coldchain-cloud/internal/alerts/domain"
)

// DefaultRuleCacheTTL bounds how stale a cached rule set may get.
// Admin edits become visible within this window at the latest.
const DefaultRuleCacheTTL = 30 * time.Second

// Resolver produces the ordered, deduplicated set of active rules that
// apply to one equipment: global rules, the owning company's rules and
// the equipment's own rules, all evaluated independently.
type Resolver struct {
	rules alerts.RuleRepository
	cache *gocache.Cache
	ttl   time.Duration
}

// NewResolver constructs a resolver.
func NewResolver(rules alerts.RuleRepository, ttl time.Duration) (*Resolver, error) {
	if rules == nil {
		return nil, errors.New("rule resolver: nil rule repository")
	}
	if ttl <= 0 {
		ttl = DefaultRuleCacheTTL
	}
	return &Resolver{
		rules: rules,
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}, nil
}

// Resolve returns the active rules applying to the equipment, sorted by
// id for deterministic evaluation order.
func (r *Resolver) Resolve(ctx context.Context, ref alerts.EquipmentRef) ([]alerts.AlertRule, error) {
	if r == nil || r.rules == nil {
		return nil, errors.New("rule resolver: not initialized")
	}
	if ref.EquipmentID == "" {
		return nil, errors.New("rule resolver: empty equipment id")
	}

	key := ref.EquipmentID + "|" + ref.CompanyID
	if cached, ok := r.cache.Get(key); ok {
		if rules, ok := cached.([]alerts.AlertRule); ok {
			return rules, nil
		}
	}

	global, err := r.rules.ListActiveByScope(ctx, alerts.ScopeGlobal, "")
	if err != nil {
		return nil, err
	}
	var company []alerts.AlertRule
	if ref.CompanyID != "" {
		company, err = r.rules.ListActiveByScope(ctx, alerts.ScopeCompany, ref.CompanyID)
		if err != nil {
			return nil, err
		}
	}
	equipment, err := r.rules.ListActiveByScope(ctx, alerts.ScopeEquipment, ref.EquipmentID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var resolved []alerts.AlertRule
	for _, rule := range append(append(global, company...), equipment...) {
		if !rule.IsActive {
			continue
		}
		if !rule.Scope.Matches(ref) {
			continue
		}
		if _, dup := seen[rule.ID]; dup {
			continue
		}
		seen[rule.ID] = struct{}{}
		resolved = append(resolved, rule)
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].ID < resolved[j].ID })

	r.cache.Set(key, resolved, r.ttl)
	return resolved, nil
}

// Invalidate drops all cached rule sets. Called after rule mutations so
// edits take effect before the TTL expires.
func (r *Resolver) Invalidate() {
	if r == nil || r.cache == nil {
		return
	}
	r.cache.Flush()
}
