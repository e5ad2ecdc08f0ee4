package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
)

// PricingRuleRepository keeps rules in a map keyed by id
type PricingRuleRepository struct {
	mu    sync.RWMutex
	rules map[uuid.UUID]*pricing.PricingRule
}

// NewPricingRuleRepository creates an empty repository
func NewPricingRuleRepository() *PricingRuleRepository {
	return &PricingRuleRepository{rules: make(map[uuid.UUID]*pricing.PricingRule)}
}

func (r *PricingRuleRepository) FindByID(_ context.Context, id uuid.UUID) (*pricing.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[id]
	if !ok {
		return nil, shared.NewNotFoundError("pricing rule", id.String())
	}
	return cloneRule(rule), nil
}

func (r *PricingRuleRepository) FindCandidates(_ context.Context, itemID string, date time.Time) ([]*pricing.PricingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*pricing.PricingRule, 0)
	for _, rule := range r.rules {
		if rule.IsActive && (rule.ItemID == itemID || rule.ItemID == "") && rule.InWindow(date) {
			out = append(out, cloneRule(rule))
		}
	}
	sortRules(out)
	return out, nil
}

func (r *PricingRuleRepository) FindAll(_ context.Context, filter pricing.RuleFilter) ([]*pricing.PricingRule, int64, error) {
	r.mu.RLock()
	out := make([]*pricing.PricingRule, 0)
	for _, rule := range r.rules {
		if filter.ItemID != "" && rule.ItemID != filter.ItemID {
			continue
		}
		if filter.RuleType != "" && rule.RuleType != filter.RuleType {
			continue
		}
		if filter.ActiveOnly && !rule.IsActive {
			continue
		}
		out = append(out, cloneRule(rule))
	}
	r.mu.RUnlock()

	sortRules(out)
	total := int64(len(out))
	if filter.PageSize > 0 {
		start := min(filter.Offset(), len(out))
		end := min(start+filter.PageSize, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (r *PricingRuleRepository) Create(_ context.Context, rule *pricing.PricingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = cloneRule(rule)
	return nil
}

func (r *PricingRuleRepository) Update(_ context.Context, rule *pricing.PricingRule, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.rules[rule.ID]
	if !ok {
		return shared.NewNotFoundError("pricing rule", rule.ID.String())
	}
	if stored.Version != expectedVersion {
		return shared.NewDomainError(shared.CodeConcurrencyConflict, "pricing rule was modified by another writer")
	}
	rule.Version = expectedVersion + 1
	r.rules[rule.ID] = cloneRule(rule)
	return nil
}

// sortRules orders by priority desc then id asc, matching the SQL ordering
func sortRules(rules []*pricing.PricingRule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].Key() < rules[j].Key()
	})
}

func cloneRule(rule *pricing.PricingRule) *pricing.PricingRule {
	c := *rule
	c.DrainEvents()
	c.DaysOfWeek = append(pricing.Weekdays(nil), rule.DaysOfWeek...)
	c.ApplicableRoutes = append([]pricing.Route(nil), rule.ApplicableRoutes...)
	return &c
}

var _ pricing.PricingRuleRepository = (*PricingRuleRepository)(nil)

// RateOverrideRepository keeps overrides keyed by item id and date
type RateOverrideRepository struct {
	mu        sync.RWMutex
	overrides map[string]*pricing.RateOverride
}

// NewRateOverrideRepository creates an empty repository
func NewRateOverrideRepository() *RateOverrideRepository {
	return &RateOverrideRepository{overrides: make(map[string]*pricing.RateOverride)}
}

func overrideKey(itemID string, date time.Time) string {
	return itemID + "/" + shared.NormalizeDate(date).Format(shared.DateLayout)
}

func (r *RateOverrideRepository) FindActive(ctx context.Context, itemID string, date time.Time) (*pricing.RateOverride, error) {
	o, err := r.FindByKey(ctx, itemID, date)
	if err != nil {
		return nil, err
	}
	if !o.IsActive {
		return nil, shared.NewNotFoundError("rate override", overrideKey(itemID, date))
	}
	return o, nil
}

func (r *RateOverrideRepository) FindByKey(_ context.Context, itemID string, date time.Time) (*pricing.RateOverride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.overrides[overrideKey(itemID, date)]
	if !ok {
		return nil, shared.NewNotFoundError("rate override", overrideKey(itemID, date))
	}
	c := *o
	return &c, nil
}

func (r *RateOverrideRepository) FindByItem(_ context.Context, itemID string, start, end time.Time) ([]*pricing.RateOverride, error) {
	start, end = shared.NormalizeDate(start), shared.NormalizeDate(end)
	r.mu.RLock()
	out := make([]*pricing.RateOverride, 0)
	for _, o := range r.overrides {
		if o.ItemID == itemID && inRange(o.Date, start, end) {
			c := *o
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *RateOverrideRepository) Upsert(_ context.Context, override *pricing.RateOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *override
	c.DrainEvents()
	k := overrideKey(override.ItemID, override.Date)
	if existing, ok := r.overrides[k]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	r.overrides[k] = &c
	return nil
}

var _ pricing.RateOverrideRepository = (*RateOverrideRepository)(nil)
