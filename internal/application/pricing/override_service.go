package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/domain/shared"
	"github.com/tripcore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// maxOverrideRangeDays bounds an override range listing
const maxOverrideRangeDays = 366

// OverrideService manages rate overrides. There is one override per
// (item, date); upserting the same key supersedes the previous one.
type OverrideService struct {
	repo        pricing.RateOverrideRepository
	invalidator Invalidator
	logger      *zap.Logger
}

// NewOverrideService creates a new OverrideService
func NewOverrideService(repo pricing.RateOverrideRepository, invalidator Invalidator, logger *zap.Logger) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{repo: repo, invalidator: invalidator, logger: logger}
}

// Upsert creates the override for (item, date) or supersedes the existing one
func (s *OverrideService) Upsert(ctx context.Context, req OverrideRequest) (*OverrideResponse, error) {
	date, err := shared.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByKey(ctx, req.ItemID, date)
	var override *pricing.RateOverride
	switch {
	case err == nil:
		if err := existing.Supersede(req.Price, req.Currency, req.Reason); err != nil {
			return nil, err
		}
		override = existing
	case errors.Is(err, shared.ErrNotFound):
		if override, err = pricing.NewRateOverride(req.ItemID, date, req.Price, req.Currency, req.Reason); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := s.repo.Upsert(ctx, override); err != nil {
		return nil, err
	}
	s.changed(ctx)

	logger.Or(ctx, s.logger).Info("Rate override saved",
		zap.String("item_id", override.ItemID),
		zap.String("date", req.Date),
		zap.String("price", override.Price.String()),
		zap.Bool("superseded", existing != nil),
	)
	resp := ToOverrideResponse(override)
	return &resp, nil
}

// Get returns the override for (item, date) regardless of state
func (s *OverrideService) Get(ctx context.Context, itemID, date string) (*OverrideResponse, error) {
	d, err := shared.ParseDate(date)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.FindByKey(ctx, itemID, d)
	if err != nil {
		return nil, err
	}
	resp := ToOverrideResponse(o)
	return &resp, nil
}

// ListRange returns the overrides of an item over [start, end]
func (s *OverrideService) ListRange(ctx context.Context, itemID, start, end string) ([]OverrideResponse, error) {
	from, err := shared.ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := shared.ParseDate(end)
	if err != nil {
		return nil, err
	}
	n, err := shared.CountDays(from, to)
	if err != nil {
		return nil, err
	}
	if n > maxOverrideRangeDays {
		return nil, shared.NewDomainError(shared.CodeInvalidDateRange,
			fmt.Sprintf("range spans %d days, at most %d allowed", n, maxOverrideRangeDays))
	}
	overrides, err := s.repo.FindByItem(ctx, itemID, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]OverrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, ToOverrideResponse(o))
	}
	return out, nil
}

// Deactivate turns the override for (item, date) off
func (s *OverrideService) Deactivate(ctx context.Context, itemID, date string) (*OverrideResponse, error) {
	d, err := shared.ParseDate(date)
	if err != nil {
		return nil, err
	}
	o, err := s.repo.FindByKey(ctx, itemID, d)
	if err != nil {
		return nil, err
	}
	if o.IsActive {
		o.Deactivate()
		if err := s.repo.Upsert(ctx, o); err != nil {
			return nil, err
		}
		s.changed(ctx)
		logger.Or(ctx, s.logger).Info("Rate override deactivated",
			zap.String("item_id", itemID),
			zap.String("date", date),
		)
	}
	resp := ToOverrideResponse(o)
	return &resp, nil
}

func (s *OverrideService) changed(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}
