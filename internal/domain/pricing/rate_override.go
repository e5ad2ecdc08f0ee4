package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// RateOverride pins the price of an item on a date. An active override
// wins over every computed price.
type RateOverride struct {
	shared.BaseAggregateRoot
	ItemID   string
	Date     time.Time
	Price    decimal.Decimal
	Currency string
	Reason   string
	IsActive bool
}

// NewRateOverride creates an active override
func NewRateOverride(itemID string, date time.Time, price decimal.Decimal, currency, reason string) (*RateOverride, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "item id cannot be empty")
	}
	if price.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "override price cannot be negative")
	}
	return &RateOverride{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ItemID:            itemID,
		Date:              shared.NormalizeDate(date),
		Price:             RoundHalfUp(price),
		Currency:          strings.ToUpper(strings.TrimSpace(currency)),
		Reason:            reason,
		IsActive:          true,
	}, nil
}

// Supersede replaces price and reason of an existing override and reactivates it
func (o *RateOverride) Supersede(price decimal.Decimal, currency, reason string) error {
	if price.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidInput, "override price cannot be negative")
	}
	o.Price = RoundHalfUp(price)
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		o.Currency = c
	}
	o.Reason = reason
	o.IsActive = true
	o.MarkModified()
	return nil
}

// Deactivate turns the override off
func (o *RateOverride) Deactivate() {
	if !o.IsActive {
		return
	}
	o.IsActive = false
	o.MarkModified()
}
