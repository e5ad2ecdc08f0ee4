package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/infrastructure/config"
)

func TestNewCalendarFromConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cal, err := NewCalendarFromConfig(config.PricingConfig{})
		require.NoError(t, err)

		season, m := cal.Multiplier(time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, pricing.SeasonHajj, season)
		assert.True(t, m.Equal(decimal.RequireFromString("1.65")))
	})

	t.Run("overrides multiplier and windows", func(t *testing.T) {
		cal, err := NewCalendarFromConfig(config.PricingConfig{
			SeasonMultipliers: map[string]string{"Hajj": "1.70"},
			HajjWindows:       []string{"2025-10-06..2025-10-08"},
		})
		require.NoError(t, err)

		season, m := cal.Multiplier(time.Date(2025, 10, 7, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, pricing.SeasonHajj, season)
		assert.True(t, m.Equal(decimal.RequireFromString("1.70")))
	})

	errs := []struct {
		name string
		cfg  config.PricingConfig
	}{
		{"unknown season", config.PricingConfig{SeasonMultipliers: map[string]string{"monsoon": "1.1"}}},
		{"malformed multiplier", config.PricingConfig{SeasonMultipliers: map[string]string{"peak": "high"}}},
		{"multiplier outside band", config.PricingConfig{SeasonMultipliers: map[string]string{"weekend": "1.50"}}},
		{"malformed window", config.PricingConfig{RamadanWindows: []string{"2026-02-18"}}},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCalendarFromConfig(tt.cfg)
			assert.Error(t, err)
		})
	}
}
