package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Invalidator drops cached quotes after a pricing input changes
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// RuleService manages pricing rules. Rules are updated in place under their
// version and deactivated instead of deleted.
type RuleService struct {
	repo        pricing.PricingRuleRepository
	invalidator Invalidator
	logger      *zap.Logger
}

// NewRuleService creates a new RuleService
func NewRuleService(repo pricing.PricingRuleRepository, invalidator Invalidator, logger *zap.Logger) *RuleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{repo: repo, invalidator: invalidator, logger: logger}
}

// Create validates and stores a new rule
func (s *RuleService) Create(ctx context.Context, req RuleRequest) (*RuleResponse, error) {
	rule := pricing.NewPricingRule(req.Name, pricing.RuleType(req.RuleType),
		pricing.AdjustmentType(req.AdjustmentType), req.AdjustmentValue)
	if err := applyRuleRequest(rule, req); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.changed(ctx)

	logger.Or(ctx, s.logger).Info("Pricing rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("name", rule.Name),
		zap.String("rule_type", string(rule.RuleType)),
		zap.String("item_id", rule.ItemID),
	)
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// GetByID returns one rule
func (s *RuleService) GetByID(ctx context.Context, id uuid.UUID) (*RuleResponse, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// List returns a page of rules and the total count
func (s *RuleService) List(ctx context.Context, filter RuleListFilter) ([]RuleResponse, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rules, total, err := s.repo.FindAll(ctx, pricing.RuleFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
		},
		ItemID:     strings.TrimSpace(filter.ItemID),
		RuleType:   pricing.RuleType(filter.RuleType),
		ActiveOnly: filter.ActiveOnly,
	})
	if err != nil {
		return nil, 0, err
	}
	out := make([]RuleResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, ToRuleResponse(r))
	}
	return out, total, nil
}

// Update replaces the fields of a rule. A non-zero req.Version must match
// the stored version or the update fails with ConcurrencyConflict.
func (s *RuleService) Update(ctx context.Context, id uuid.UUID, req RuleRequest) (*RuleResponse, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := rule.Version
	if req.Version != 0 && req.Version != expected {
		return nil, shared.ErrConcurrencyConflict
	}

	rule.Name = strings.TrimSpace(req.Name)
	rule.RuleType = pricing.RuleType(req.RuleType)
	rule.AdjustmentType = pricing.AdjustmentType(req.AdjustmentType)
	rule.AdjustmentValue = req.AdjustmentValue
	if err := applyRuleRequest(rule, req); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule.Touch()
	if err := s.repo.Update(ctx, rule, expected); err != nil {
		return nil, err
	}
	s.changed(ctx)

	logger.Or(ctx, s.logger).Info("Pricing rule updated",
		zap.String("rule_id", rule.ID.String()),
		zap.Int64("version", rule.Version),
	)
	resp := ToRuleResponse(rule)
	return &resp, nil
}

// Deactivate turns a rule off; deactivating an inactive rule is a no-op
func (s *RuleService) Deactivate(ctx context.Context, id uuid.UUID) (*RuleResponse, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rule.IsActive {
		resp := ToRuleResponse(rule)
		return &resp, nil
	}
	expected := rule.Version
	rule.Deactivate()
	if err := s.repo.Update(ctx, rule, expected); err != nil {
		return nil, err
	}
	s.changed(ctx)

	logger.Or(ctx, s.logger).Info("Pricing rule deactivated", zap.String("rule_id", rule.ID.String()))
	resp := ToRuleResponse(rule)
	return &resp, nil
}

func (s *RuleService) changed(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}

// applyRuleRequest copies the scope, window and predicate fields of req
func applyRuleRequest(rule *pricing.PricingRule, req RuleRequest) error {
	rule.ItemID = strings.TrimSpace(req.ItemID)
	rule.ProviderType = strings.ToLower(strings.TrimSpace(req.ProviderType))
	rule.Priority = req.Priority
	rule.MinPassengers = req.MinPassengers
	rule.MaxPassengers = req.MaxPassengers
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	var err error
	if rule.StartDate, err = optionalDate("start_date", req.StartDate); err != nil {
		return err
	}
	if rule.EndDate, err = optionalDate("end_date", req.EndDate); err != nil {
		return err
	}

	rule.DaysOfWeek = nil
	for _, d := range req.DaysOfWeek {
		rule.DaysOfWeek = append(rule.DaysOfWeek, time.Weekday(d))
	}
	rule.ApplicableRoutes = nil
	for _, r := range req.ApplicableRoutes {
		route, err := pricing.ParseRoute(r)
		if err != nil {
			return shared.NewRuleValidationError("applicable_routes", err.Error())
		}
		rule.ApplicableRoutes = append(rule.ApplicableRoutes, route)
	}
	return nil
}

func optionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := shared.ParseDate(s)
	if err != nil {
		return nil, shared.NewRuleValidationError(field, "expected YYYY-MM-DD")
	}
	return &d, nil
}
