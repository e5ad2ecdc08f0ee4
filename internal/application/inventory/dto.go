package inventory

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/inventory"
	"github.com/tripcore/backend/internal/domain/shared"
)

// InitializeRangeRequest creates capacity for every date of an inclusive range
type InitializeRangeRequest struct {
	ProviderType  string                 `json:"provider_type" binding:"required,provider_type"`
	ItemID        string                 `json:"item_id" binding:"required,max=100"`
	StartDate     string                 `json:"start_date" binding:"required,iso_date"`
	EndDate       string                 `json:"end_date" binding:"required,iso_date"`
	TotalCapacity int                    `json:"total_capacity" binding:"min=0"`
	BasePrice     decimal.Decimal        `json:"base_price"`
	Currency      string                 `json:"currency" binding:"omitempty,len=3"`
	PricingTiers  inventory.PricingTiers `json:"pricing_tiers"`
	Metadata      inventory.Metadata     `json:"metadata"`
}

// CapacityRequest addresses a quantity on one record
type CapacityRequest struct {
	ProviderType string `json:"provider_type" binding:"required,provider_type"`
	ItemID       string `json:"item_id" binding:"required,max=100"`
	Date         string `json:"date" binding:"required,iso_date"`
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	// IdempotencyKey makes a release safe to replay; ignored by other operations
	IdempotencyKey string `json:"idempotency_key" binding:"omitempty,max=128"`
}

// RecordRequest addresses one record without a quantity (close/reopen)
type RecordRequest struct {
	ProviderType string `json:"provider_type" binding:"required,provider_type"`
	ItemID       string `json:"item_id" binding:"required,max=100"`
	Date         string `json:"date" binding:"required,iso_date"`
}

// AvailabilityQuery is the query string of the availability endpoint
type AvailabilityQuery struct {
	ProviderType string `form:"providerType" binding:"required,provider_type"`
	ItemID       string `form:"itemId" binding:"required"`
	Date         string `form:"date" binding:"required,iso_date"`
}

// CalendarQuery is the query string of the calendar endpoint
type CalendarQuery struct {
	ProviderType string `form:"providerType" binding:"required,provider_type"`
	ItemID       string `form:"itemId" binding:"required"`
	StartDate    string `form:"startDate" binding:"required,iso_date"`
	EndDate      string `form:"endDate" binding:"required,iso_date"`
}

// AvailabilityResponse is the capacity snapshot of one record
type AvailabilityResponse struct {
	ProviderType     string                 `json:"provider_type"`
	ItemID           string                 `json:"item_id"`
	Date             string                 `json:"date"`
	Total            int                    `json:"total"`
	Allocated        int                    `json:"allocated"`
	Blocked          int                    `json:"blocked"`
	Available        int                    `json:"available"`
	IsBookable       bool                   `json:"is_bookable"`
	State            string                 `json:"state"`
	BasePrice        decimal.Decimal        `json:"base_price"`
	Currency         string                 `json:"currency"`
	SnapshotPrice    *decimal.Decimal       `json:"snapshot_price,omitempty"`
	PricingTiers     inventory.PricingTiers `json:"pricing_tiers,omitempty"`
	Metadata         inventory.Metadata     `json:"metadata,omitempty"`
	Version          int64                  `json:"version"`
	PriceRefreshedAt *time.Time             `json:"price_refreshed_at,omitempty"`
	LastUpdatedAt    time.Time              `json:"last_updated_at"`
}

// InitializeRangeResponse reports how many dates were created
type InitializeRangeResponse struct {
	Created int `json:"created"`
}

// VersionResponse carries the record version after a capacity write
type VersionResponse struct {
	Version int64 `json:"version"`
}

// ExpiryStats summarizes one ExpirePastDates run
type ExpiryStats struct {
	Scanned     int       `json:"scanned"`
	Expired     int       `json:"expired"`
	Failed      int       `json:"failed"`
	ProcessedAt time.Time `json:"processed_at"`
}

// ToAvailabilityResponse converts a record to its API shape
func ToAvailabilityResponse(r *inventory.InventoryRecord) AvailabilityResponse {
	snap := r.Snapshot()
	return AvailabilityResponse{
		ProviderType:     r.ProviderType.String(),
		ItemID:           r.ItemID,
		Date:             r.Date.Format(shared.DateLayout),
		Total:            snap.Total,
		Allocated:        snap.Allocated,
		Blocked:          snap.Blocked,
		Available:        snap.Available,
		IsBookable:       snap.IsBookable,
		State:            snap.State.String(),
		BasePrice:        r.BasePrice,
		Currency:         r.Currency,
		SnapshotPrice:    r.SnapshotPrice,
		PricingTiers:     r.PricingTiers,
		Metadata:         r.Metadata,
		Version:          r.Version,
		PriceRefreshedAt: r.PriceRefreshedAt,
		LastUpdatedAt:    r.LastUpdatedAt(),
	}
}

// ParseKey builds a record key from wire values
func ParseKey(providerType, itemID, date string) (inventory.RecordKey, error) {
	pt, err := inventory.ParseProviderType(providerType)
	if err != nil {
		return inventory.RecordKey{}, err
	}
	d, err := shared.ParseDate(date)
	if err != nil {
		return inventory.RecordKey{}, err
	}
	return inventory.NewRecordKey(pt, itemID, d)
}
