package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	pricingapp "github.com/tripcore/backend/internal/application/pricing"
	"github.com/tripcore/backend/internal/interfaces/http/dto"
)

// PricingHandler handles quote, rule, override and refresh endpoints
type PricingHandler struct {
	BaseHandler
	calculator *pricingapp.RateCalculator
	rules      *pricingapp.RuleService
	overrides  *pricingapp.OverrideService
	refresher  *pricingapp.PriceRefresher
}

// NewPricingHandler creates a new PricingHandler
func NewPricingHandler(
	calculator *pricingapp.RateCalculator,
	rules *pricingapp.RuleService,
	overrides *pricingapp.OverrideService,
	refresher *pricingapp.PriceRefresher,
) *PricingHandler {
	return &PricingHandler{
		calculator: calculator,
		rules:      rules,
		overrides:  overrides,
		refresher:  refresher,
	}
}

// Quote computes the effective price of an item on a date.
// GET /pricing/quote?itemId=&date=&passengers=&route=&providerType=&tier=
func (h *PricingHandler) Quote(c *gin.Context) {
	var q pricingapp.QuoteQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	req, err := q.ToRequest()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	quote, err := h.calculator.ComputeEffectivePrice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quote)
}

// CreateRule adds a pricing rule.
// POST /pricing/rules
func (h *PricingHandler) CreateRule(c *gin.Context) {
	var req pricingapp.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	rule, err := h.rules.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, rule)
}

// ListRules returns a page of rules.
// GET /pricing/rules?item_id=&rule_type=&active_only=&page=&page_size=
func (h *PricingHandler) ListRules(c *gin.Context) {
	var filter pricingapp.RuleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page := dto.DefaultListRequest()
	if filter.Page > 0 {
		page.Page = filter.Page
	}
	if filter.PageSize > 0 {
		page.PageSize = filter.PageSize
	}
	filter.Page, filter.PageSize = page.Page, page.PageSize

	rules, total, err := h.rules.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, rules, total, page.Page, page.PageSize)
}

// GetRule returns one rule.
// GET /pricing/rules/:id
func (h *PricingHandler) GetRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	rule, err := h.rules.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rule)
}

// UpdateRule replaces a rule; a non-zero version in the body must match.
// PUT /pricing/rules/:id
func (h *PricingHandler) UpdateRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var req pricingapp.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	rule, err := h.rules.Update(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rule)
}

// DeactivateRule turns a rule off. Rules are never hard-deleted.
// DELETE /pricing/rules/:id
func (h *PricingHandler) DeactivateRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}

	rule, err := h.rules.Deactivate(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, rule)
}

// UpsertOverride pins the price of an item on a date, superseding any previous override.
// PUT /pricing/overrides
func (h *PricingHandler) UpsertOverride(c *gin.Context) {
	var req pricingapp.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	override, err := h.overrides.Upsert(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, override)
}

// GetOverrides returns the override of one date (date=) or of a range (startDate=&endDate=).
// GET /pricing/overrides
func (h *PricingHandler) GetOverrides(c *gin.Context) {
	var q pricingapp.OverrideQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	ctx := c.Request.Context()
	switch {
	case q.Date != "":
		override, err := h.overrides.Get(ctx, q.ItemID, q.Date)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, override)
	case q.StartDate != "" && q.EndDate != "":
		overrides, err := h.overrides.ListRange(ctx, q.ItemID, q.StartDate, q.EndDate)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, overrides)
	default:
		h.BadRequest(c, "Either date or startDate and endDate are required")
	}
}

// DeactivateOverride turns the override of one date off.
// DELETE /pricing/overrides?itemId=&date=
func (h *PricingHandler) DeactivateOverride(c *gin.Context) {
	var q pricingapp.OverrideQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	if q.Date == "" {
		h.BadRequest(c, "date is required")
		return
	}

	override, err := h.overrides.Deactivate(c.Request.Context(), q.ItemID, q.Date)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, override)
}

// Refresh recomputes price snapshots within the refresh horizon.
// POST /pricing/refresh
func (h *PricingHandler) Refresh(c *gin.Context) {
	stats, err := h.refresher.Refresh(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, stats)
}

func (h *PricingHandler) ruleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid rule ID format")
		return uuid.Nil, false
	}
	return id, true
}
