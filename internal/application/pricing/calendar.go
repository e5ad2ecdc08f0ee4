package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/pricing"
	"github.com/tripcore/backend/internal/infrastructure/config"
)

// NewCalendarFromConfig builds the seasonal calendar from the defaults,
// replacing any multiplier or lunar window list present in cfg.
func NewCalendarFromConfig(cfg config.PricingConfig) (*pricing.SeasonalCalendar, error) {
	cal := pricing.DefaultCalendarConfig()

	for name, raw := range cfg.SeasonMultipliers {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, known := pricing.SeasonBands[name]; !known {
			return nil, fmt.Errorf("unknown season %q", name)
		}
		m, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("season %s multiplier %q: %w", name, raw, err)
		}
		cal.Multipliers[name] = m
	}

	var err error
	if len(cfg.HajjWindows) > 0 {
		if cal.HajjWindows, err = parseWindows(cfg.HajjWindows); err != nil {
			return nil, err
		}
	}
	if len(cfg.RamadanWindows) > 0 {
		if cal.RamadanWindows, err = parseWindows(cfg.RamadanWindows); err != nil {
			return nil, err
		}
	}

	return pricing.NewSeasonalCalendar(cal)
}

func parseWindows(raw []string) ([]pricing.DateWindow, error) {
	windows := make([]pricing.DateWindow, 0, len(raw))
	for _, s := range raw {
		start, end, err := config.ParseWindow(s)
		if err != nil {
			return nil, err
		}
		windows = append(windows, pricing.DateWindow{Start: start, End: end})
	}
	return windows, nil
}
