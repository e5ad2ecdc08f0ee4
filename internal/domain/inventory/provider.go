package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// ProviderType is the kind of supplier an item belongs to
type ProviderType string

const (
	ProviderHotel     ProviderType = "hotel"
	ProviderFlight    ProviderType = "flight"
	ProviderTransport ProviderType = "transport"
)

// AllProviderTypes lists every supported provider type
var AllProviderTypes = []ProviderType{ProviderHotel, ProviderFlight, ProviderTransport}

// IsValid checks if the provider type is one of the supported values
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderHotel, ProviderFlight, ProviderTransport:
		return true
	}
	return false
}

// String returns the string representation
func (p ProviderType) String() string {
	return string(p)
}

// ParseProviderType parses a provider type, case-insensitive
func ParseProviderType(s string) (ProviderType, error) {
	p := ProviderType(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown provider type: %q", s))
	}
	return p, nil
}

// RecordKey identifies one InventoryRecord: one item on one calendar date
type RecordKey struct {
	ProviderType ProviderType
	ItemID       string
	Date         time.Time
}

// NewRecordKey validates and normalizes a record key
func NewRecordKey(providerType ProviderType, itemID string, date time.Time) (RecordKey, error) {
	if !providerType.IsValid() {
		return RecordKey{}, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown provider type: %q", providerType))
	}
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return RecordKey{}, shared.NewDomainError(shared.CodeInvalidInput, "item id cannot be empty")
	}
	return RecordKey{
		ProviderType: providerType,
		ItemID:       itemID,
		Date:         shared.NormalizeDate(date),
	}, nil
}

// String renders the key as provider/item/date
func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProviderType, k.ItemID, k.Date.Format(shared.DateLayout))
}

// TierName is a closed set of fare/room classes
type TierName string

const (
	TierStandard TierName = "standard"
	TierDeluxe   TierName = "deluxe"
	TierSuite    TierName = "suite"
	TierEconomy  TierName = "economy"
	TierBusiness TierName = "business"
	TierFirst    TierName = "first"
)

// IsValid checks the tier is one of the known classes
func (t TierName) IsValid() bool {
	switch t {
	case TierStandard, TierDeluxe, TierSuite, TierEconomy, TierBusiness, TierFirst:
		return true
	}
	return false
}

// TierPrice holds the individual and group price of a tier
type TierPrice struct {
	Price      decimal.Decimal `json:"price"`
	GroupPrice decimal.Decimal `json:"group_price"`
}

// PricingTiers maps tier names to prices
type PricingTiers map[TierName]TierPrice

// Validate rejects unknown tiers and negative prices
func (p PricingTiers) Validate() error {
	for name, tp := range p {
		if !name.IsValid() {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown pricing tier: %q", name))
		}
		if tp.Price.IsNegative() || tp.GroupPrice.IsNegative() {
			return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("tier %s has a negative price", name))
		}
	}
	return nil
}

// Clone returns a deep copy
func (p PricingTiers) Clone() PricingTiers {
	if p == nil {
		return nil
	}
	out := make(PricingTiers, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Metadata is opaque provider data carried with a record (hotel name, flight number, ...)
type Metadata map[string]string

// Clone returns a copy of the metadata
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
