package pricing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
)

// Price sources reported on a quote
const (
	SourceOverride = "override"
	SourceComputed = "computed"
)

// QuoteRequest identifies what is being priced. ProviderType is only needed
// when the same item id exists under several provider types.
type QuoteRequest struct {
	ItemID         string
	Date           time.Time
	PassengerCount int
	Route          *pricing.Route
	ProviderType   string
	// Tier prices the quote from a pricing tier instead of the base price
	Tier inventory.TierName
}

// QuoteQuery is the query string of the quote endpoint
type QuoteQuery struct {
	ItemID       string `form:"itemId" binding:"required"`
	Date         string `form:"date" binding:"required,iso_date"`
	Passengers   int    `form:"passengers" binding:"omitempty,min=1,max=500"`
	Route        string `form:"route" binding:"omitempty,route"`
	ProviderType string `form:"providerType" binding:"omitempty,provider_type"`
	Tier         string `form:"tier" binding:"omitempty,oneof=standard deluxe suite economy business first"`
}

// ToRequest converts the query to a QuoteRequest
func (q QuoteQuery) ToRequest() (QuoteRequest, error) {
	date, err := shared.ParseDate(q.Date)
	if err != nil {
		return QuoteRequest{}, err
	}
	req := QuoteRequest{
		ItemID:         strings.TrimSpace(q.ItemID),
		Date:           date,
		PassengerCount: q.Passengers,
		ProviderType:   strings.ToLower(q.ProviderType),
		Tier:           inventory.TierName(q.Tier),
	}
	if req.PassengerCount == 0 {
		req.PassengerCount = 1
	}
	if q.Route != "" {
		route, err := pricing.ParseRoute(q.Route)
		if err != nil {
			return QuoteRequest{}, err
		}
		req.Route = &route
	}
	return req, nil
}

// Quote is the effective price of an item on a date
type Quote struct {
	ItemID              string                `json:"item_id"`
	ProviderType        string                `json:"provider_type,omitempty"`
	Date                string                `json:"date"`
	Price               decimal.Decimal       `json:"price"`
	Currency            string                `json:"currency"`
	Source              string                `json:"source"`
	BasePrice           decimal.Decimal       `json:"base_price"`
	AppliedSeasonalName string                `json:"applied_seasonal_name"`
	SeasonMultiplier    decimal.Decimal       `json:"season_multiplier"`
	AppliedRules        []pricing.AppliedRule `json:"applied_rules"`
	AppliedRuleIDs      []string              `json:"applied_rule_ids"`
	Tier                string                `json:"tier,omitempty"`
}

// RuleRequest creates or replaces a pricing rule
type RuleRequest struct {
	Name             string          `json:"name" binding:"required,max=200"`
	ItemID           string          `json:"item_id" binding:"max=100"`
	ProviderType     string          `json:"provider_type" binding:"omitempty,provider_type"`
	RuleType         string          `json:"rule_type" binding:"required,oneof=day_of_week passenger_count route_specific"`
	AdjustmentType   string          `json:"adjustment_type" binding:"required,oneof=percentage fixed"`
	AdjustmentValue  decimal.Decimal `json:"adjustment_value"`
	StartDate        string          `json:"start_date" binding:"omitempty,iso_date"`
	EndDate          string          `json:"end_date" binding:"omitempty,iso_date"`
	DaysOfWeek       []int           `json:"days_of_week" binding:"omitempty,dive,min=0,max=6"`
	MinPassengers    int             `json:"min_passengers" binding:"min=0"`
	MaxPassengers    int             `json:"max_passengers" binding:"min=0"`
	ApplicableRoutes []string        `json:"applicable_routes" binding:"omitempty,dive,route"`
	Priority         int             `json:"priority"`
	IsActive         *bool           `json:"is_active"`
	// Version is the expected current version on update; 0 skips the check
	Version int64 `json:"version"`
}

// RuleListFilter is the query string of the rule listing
type RuleListFilter struct {
	ItemID     string `form:"item_id"`
	RuleType   string `form:"rule_type" binding:"omitempty,oneof=day_of_week passenger_count route_specific"`
	ActiveOnly bool   `form:"active_only"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RuleResponse is a pricing rule in API responses
type RuleResponse struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	ItemID           string          `json:"item_id,omitempty"`
	ProviderType     string          `json:"provider_type,omitempty"`
	RuleType         string          `json:"rule_type"`
	AdjustmentType   string          `json:"adjustment_type"`
	AdjustmentValue  decimal.Decimal `json:"adjustment_value"`
	StartDate        *string         `json:"start_date,omitempty"`
	EndDate          *string         `json:"end_date,omitempty"`
	DaysOfWeek       []int           `json:"days_of_week,omitempty"`
	MinPassengers    int             `json:"min_passengers,omitempty"`
	MaxPassengers    int             `json:"max_passengers,omitempty"`
	ApplicableRoutes []string        `json:"applicable_routes,omitempty"`
	Priority         int             `json:"priority"`
	IsActive         bool            `json:"is_active"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OverrideRequest pins the price of an item on a date
type OverrideRequest struct {
	ItemID   string          `json:"item_id" binding:"required,max=100"`
	Date     string          `json:"date" binding:"required,iso_date"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Reason   string          `json:"reason" binding:"max=500"`
}

// OverrideQuery addresses overrides of one item. Date selects a single day,
// StartDate/EndDate a range.
type OverrideQuery struct {
	ItemID    string `form:"itemId" binding:"required"`
	Date      string `form:"date" binding:"omitempty,iso_date"`
	StartDate string `form:"startDate" binding:"omitempty,iso_date"`
	EndDate   string `form:"endDate" binding:"omitempty,iso_date"`
}

// OverrideResponse is a rate override in API responses
type OverrideResponse struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    string          `json:"item_id"`
	Date      string          `json:"date"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Reason    string          `json:"reason,omitempty"`
	IsActive  bool            `json:"is_active"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RefreshStats summarizes one price refresh run
type RefreshStats struct {
	Scanned     int       `json:"scanned"`
	Updated     int       `json:"updated"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ToRuleResponse converts a rule to its API shape
func ToRuleResponse(r *pricing.PricingRule) RuleResponse {
	resp := RuleResponse{
		ID:              r.ID,
		Name:            r.Name,
		ItemID:          r.ItemID,
		ProviderType:    r.ProviderType,
		RuleType:        string(r.RuleType),
		AdjustmentType:  string(r.AdjustmentType),
		AdjustmentValue: r.AdjustmentValue,
		MinPassengers:   r.MinPassengers,
		MaxPassengers:   r.MaxPassengers,
		Priority:        r.Priority,
		IsActive:        r.IsActive,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.StartDate != nil {
		s := r.StartDate.Format(shared.DateLayout)
		resp.StartDate = &s
	}
	if r.EndDate != nil {
		e := r.EndDate.Format(shared.DateLayout)
		resp.EndDate = &e
	}
	for _, d := range r.DaysOfWeek {
		resp.DaysOfWeek = append(resp.DaysOfWeek, int(d))
	}
	for _, route := range r.ApplicableRoutes {
		resp.ApplicableRoutes = append(resp.ApplicableRoutes, route.String())
	}
	return resp
}

// ToOverrideResponse converts an override to its API shape
func ToOverrideResponse(o *pricing.RateOverride) OverrideResponse {
	return OverrideResponse{
		ID:        o.ID,
		ItemID:    o.ItemID,
		Date:      o.Date.Format(shared.DateLayout),
		Price:     o.Price,
		Currency:  o.Currency,
		Reason:    o.Reason,
		IsActive:  o.IsActive,
		Version:   o.Version,
		UpdatedAt: o.UpdatedAt,
	}
}
