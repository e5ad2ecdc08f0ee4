package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// QuoteContext carries the request attributes rule predicates look at
type QuoteContext struct {
	DayOfWeek      time.Weekday
	PassengerCount int
	Route          *Route
	// ProviderType narrows provider-wide rules; empty matches all
	ProviderType string
}

// RoundHalfUp rounds to 2 decimal places, ties away from zero
func RoundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// AppliedRule records one adjustment made while pricing
type AppliedRule struct {
	RuleID         string          `json:"rule_id"`
	Name           string          `json:"name"`
	AdjustmentType AdjustmentType  `json:"adjustment_type"`
	Value          decimal.Decimal `json:"value"`
	PriceBefore    decimal.Decimal `json:"price_before"`
	PriceAfter     decimal.Decimal `json:"price_after"`
}

// RuleSet is an immutable collection of candidate rules for one quote
type RuleSet struct {
	rules []*PricingRule
}

// NewRuleSet wraps rules
func NewRuleSet(rules []*PricingRule) RuleSet {
	return RuleSet{rules: rules}
}

// ApplicableRules returns the active rules for itemID on date whose type
// predicate matches qc, ordered by priority descending then id ascending.
func (s RuleSet) ApplicableRules(itemID string, date time.Time, qc QuoteContext) []*PricingRule {
	out := make([]*PricingRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r == nil || !r.IsActive {
			continue
		}
		if !r.AppliesToItem(itemID, qc.ProviderType) || !r.InWindow(date) || !r.Matches(qc) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}

// Apply adjusts base by each rule in order, rounding after every step.
// There is no clamping: a fixed discount can drive the price negative.
func Apply(base decimal.Decimal, rules []*PricingRule) (decimal.Decimal, []AppliedRule) {
	price := RoundHalfUp(base)
	applied := make([]AppliedRule, 0, len(rules))
	for _, r := range rules {
		before := price
		switch r.AdjustmentType {
		case AdjustmentPercentage:
			price = price.Add(price.Mul(r.AdjustmentValue).Div(hundred))
		case AdjustmentFixed:
			price = price.Add(r.AdjustmentValue)
		default:
			continue
		}
		price = RoundHalfUp(price)
		applied = append(applied, AppliedRule{
			RuleID:         r.Key(),
			Name:           r.Name,
			AdjustmentType: r.AdjustmentType,
			Value:          r.AdjustmentValue,
			PriceBefore:    before,
			PriceAfter:     price,
		})
	}
	return price, applied
}
