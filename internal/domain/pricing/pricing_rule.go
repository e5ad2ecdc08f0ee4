package pricing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// RuleType selects the predicate a rule is matched with
type RuleType string

const (
	RuleTypeDayOfWeek      RuleType = "day_of_week"
	RuleTypePassengerCount RuleType = "passenger_count"
	RuleTypeRouteSpecific  RuleType = "route_specific"
)

// IsValid checks if the rule type is known
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeDayOfWeek, RuleTypePassengerCount, RuleTypeRouteSpecific:
		return true
	}
	return false
}

// AdjustmentType selects how AdjustmentValue modifies a price
type AdjustmentType string

const (
	AdjustmentPercentage AdjustmentType = "percentage"
	AdjustmentFixed      AdjustmentType = "fixed"
)

// IsValid checks if the adjustment type is known
func (t AdjustmentType) IsValid() bool {
	return t == AdjustmentPercentage || t == AdjustmentFixed
}

// Route is an origin/destination pair, e.g. JED-RUH
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ParseRoute parses "FROM-TO"
func ParseRoute(s string) (Route, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return Route{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid route %q, expected FROM-TO", s))
	}
	return NewRoute(parts[0], parts[1]), nil
}

// NewRoute normalizes the endpoints to upper case
func NewRoute(from, to string) Route {
	return Route{
		From: strings.ToUpper(strings.TrimSpace(from)),
		To:   strings.ToUpper(strings.TrimSpace(to)),
	}
}

// String renders the route as FROM-TO
func (r Route) String() string {
	return r.From + "-" + r.To
}

// Weekdays is a set of days a day_of_week rule applies on
type Weekdays []time.Weekday

// Contains reports whether d is in the set
func (w Weekdays) Contains(d time.Weekday) bool {
	for _, x := range w {
		if x == d {
			return true
		}
	}
	return false
}

// PricingRule is a conditional price adjustment. An empty ItemID makes the
// rule provider-wide (optionally narrowed by ProviderType).
type PricingRule struct {
	shared.BaseAggregateRoot
	Name             string
	ItemID           string
	ProviderType     string
	RuleType         RuleType
	AdjustmentType   AdjustmentType
	AdjustmentValue  decimal.Decimal
	StartDate        *time.Time
	EndDate          *time.Time
	DaysOfWeek       Weekdays
	MinPassengers    int
	MaxPassengers    int
	ApplicableRoutes []Route
	Priority         int
	IsActive         bool
}

// NewPricingRule creates an active rule with a new id. Callers set the
// type-specific fields and then call Validate.
func NewPricingRule(name string, ruleType RuleType, adjustmentType AdjustmentType, value decimal.Decimal) *PricingRule {
	return &PricingRule{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(name),
		RuleType:          ruleType,
		AdjustmentType:    adjustmentType,
		AdjustmentValue:   value,
		IsActive:          true,
	}
}

// Validate checks the rule is well formed; failures are RuleValidationError
func (r *PricingRule) Validate() error {
	if r.Name == "" {
		return shared.NewRuleValidationError("name", "is required")
	}
	if !r.RuleType.IsValid() {
		return shared.NewRuleValidationError("rule_type", fmt.Sprintf("unknown value %q", r.RuleType))
	}
	if !r.AdjustmentType.IsValid() {
		return shared.NewRuleValidationError("adjustment_type", fmt.Sprintf("unknown value %q", r.AdjustmentType))
	}
	if r.AdjustmentType == AdjustmentPercentage && r.AdjustmentValue.LessThanOrEqual(decimal.NewFromInt(-100)) {
		return shared.NewRuleValidationError("adjustment_value", "percentage must be greater than -100")
	}
	if r.StartDate != nil && r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
		return shared.NewRuleValidationError("end_date", "must not be before start_date")
	}

	switch r.RuleType {
	case RuleTypeDayOfWeek:
		if len(r.DaysOfWeek) == 0 {
			return shared.NewRuleValidationError("days_of_week", "at least one day is required")
		}
		for _, d := range r.DaysOfWeek {
			if d < time.Sunday || d > time.Saturday {
				return shared.NewRuleValidationError("days_of_week", fmt.Sprintf("invalid day %d", d))
			}
		}
	case RuleTypePassengerCount:
		if r.MinPassengers < 0 || r.MaxPassengers < 0 {
			return shared.NewRuleValidationError("passengers", "bounds cannot be negative")
		}
		if r.MaxPassengers > 0 && r.MaxPassengers < r.MinPassengers {
			return shared.NewRuleValidationError("max_passengers", "must not be less than min_passengers")
		}
		if r.MinPassengers == 0 && r.MaxPassengers == 0 {
			return shared.NewRuleValidationError("passengers", "min_passengers or max_passengers is required")
		}
	case RuleTypeRouteSpecific:
		if len(r.ApplicableRoutes) == 0 {
			return shared.NewRuleValidationError("applicable_routes", "at least one route is required")
		}
		for _, route := range r.ApplicableRoutes {
			if route.From == "" || route.To == "" {
				return shared.NewRuleValidationError("applicable_routes", "route endpoints are required")
			}
		}
	}
	return nil
}

// InWindow reports whether date falls within [StartDate, EndDate]; a nil bound is open
func (r *PricingRule) InWindow(date time.Time) bool {
	date = shared.NormalizeDate(date)
	if r.StartDate != nil && date.Before(shared.NormalizeDate(*r.StartDate)) {
		return false
	}
	if r.EndDate != nil && date.After(shared.NormalizeDate(*r.EndDate)) {
		return false
	}
	return true
}

// AppliesToItem reports whether the rule is scoped to itemID or is provider-wide.
// providerType may be empty when the caller does not know it.
func (r *PricingRule) AppliesToItem(itemID, providerType string) bool {
	if r.ItemID != "" {
		return r.ItemID == itemID
	}
	return r.ProviderType == "" || providerType == "" || r.ProviderType == providerType
}

// Matches evaluates the type predicate against a quote context
func (r *PricingRule) Matches(qc QuoteContext) bool {
	switch r.RuleType {
	case RuleTypeDayOfWeek:
		return r.DaysOfWeek.Contains(qc.DayOfWeek)
	case RuleTypePassengerCount:
		if qc.PassengerCount < r.MinPassengers {
			return false
		}
		return r.MaxPassengers == 0 || qc.PassengerCount <= r.MaxPassengers
	case RuleTypeRouteSpecific:
		if qc.Route == nil {
			return false
		}
		for _, route := range r.ApplicableRoutes {
			if route == *qc.Route {
				return true
			}
		}
	}
	return false
}

// Deactivate turns the rule off; rules are never hard-deleted
func (r *PricingRule) Deactivate() {
	if !r.IsActive {
		return
	}
	r.IsActive = false
	r.MarkModified()
}

// Key returns the id used for deterministic tie-breaking
func (r *PricingRule) Key() string {
	return r.ID.String()
}
