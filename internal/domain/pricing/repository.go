package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tripcore/backend/internal/domain/shared"
)

// RuleFilter narrows rule listings
type RuleFilter struct {
	shared.Filter
	ItemID     string
	RuleType   RuleType
	ActiveOnly bool
}

// PricingRuleRepository defines persistence for pricing rules
type PricingRuleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PricingRule, error)

	// FindCandidates returns active rules scoped to itemID or provider-wide
	// whose window may contain date. Type predicates are evaluated by RuleSet.
	FindCandidates(ctx context.Context, itemID string, date time.Time) ([]*PricingRule, error)

	FindAll(ctx context.Context, filter RuleFilter) ([]*PricingRule, int64, error)

	Create(ctx context.Context, rule *PricingRule) error

	// Update saves rule when the stored version equals expectedVersion
	Update(ctx context.Context, rule *PricingRule, expectedVersion int64) error
}

// RateOverrideRepository defines persistence for rate overrides
type RateOverrideRepository interface {
	// FindActive returns the active override for (itemID, date) or shared.ErrNotFound
	FindActive(ctx context.Context, itemID string, date time.Time) (*RateOverride, error)

	// FindByKey returns the override for (itemID, date) regardless of state
	FindByKey(ctx context.Context, itemID string, date time.Time) (*RateOverride, error)

	FindByItem(ctx context.Context, itemID string, start, end time.Time) ([]*RateOverride, error)

	// Upsert inserts the override or replaces the existing one for the same key
	Upsert(ctx context.Context, override *RateOverride) error
}
