package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tripcore/backend/internal/domain/shared"
)

// Season names
const (
	SeasonHajj      = "hajj"
	SeasonRamadan   = "ramadan"
	SeasonPeak      = "peak"
	SeasonWeekend   = "weekend"
	SeasonOffSeason = "off_season"
	SeasonNone      = "none"
)

// DateWindow is an inclusive range of calendar dates
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether date falls in the window
func (w DateWindow) Contains(date time.Time) bool {
	date = shared.NormalizeDate(date)
	return !date.Before(shared.NormalizeDate(w.Start)) && !date.After(shared.NormalizeDate(w.End))
}

// MultiplierRange is the permitted band for a season's configured multiplier
type MultiplierRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// SeasonBands are the permitted multiplier bands per season
var SeasonBands = map[string]MultiplierRange{
	SeasonHajj:      {decimal.RequireFromString("1.50"), decimal.RequireFromString("1.80")},
	SeasonRamadan:   {decimal.RequireFromString("1.30"), decimal.RequireFromString("1.50")},
	SeasonPeak:      {decimal.RequireFromString("1.15"), decimal.RequireFromString("1.35")},
	SeasonWeekend:   {decimal.RequireFromString("1.10"), decimal.RequireFromString("1.20")},
	SeasonOffSeason: {decimal.RequireFromString("0.85"), decimal.RequireFromString("0.95")},
}

// CalendarConfig configures the seasonal calendar. Each season has one fixed
// multiplier; Hajj and Ramadan are lunar so their windows are listed per year.
type CalendarConfig struct {
	Multipliers     map[string]decimal.Decimal
	HajjWindows     []DateWindow
	RamadanWindows  []DateWindow
	PeakMonths      []time.Month
	WeekendDays     []time.Weekday
	OffSeasonMonths []time.Month
}

func window(start, end string) DateWindow {
	s, _ := time.Parse(shared.DateLayout, start)
	e, _ := time.Parse(shared.DateLayout, end)
	return DateWindow{Start: s, End: e}
}

// DefaultCalendarConfig returns the production defaults
func DefaultCalendarConfig() CalendarConfig {
	return CalendarConfig{
		Multipliers: map[string]decimal.Decimal{
			SeasonHajj:      decimal.RequireFromString("1.65"),
			SeasonRamadan:   decimal.RequireFromString("1.40"),
			SeasonPeak:      decimal.RequireFromString("1.25"),
			SeasonWeekend:   decimal.RequireFromString("1.15"),
			SeasonOffSeason: decimal.RequireFromString("0.90"),
		},
		HajjWindows: []DateWindow{
			window("2025-05-28", "2025-06-09"),
			window("2026-05-18", "2026-05-30"),
			window("2027-05-07", "2027-05-19"),
		},
		RamadanWindows: []DateWindow{
			window("2025-03-01", "2025-03-30"),
			window("2026-02-18", "2026-03-19"),
			window("2027-02-08", "2027-03-09"),
		},
		PeakMonths:      []time.Month{time.November, time.December, time.January, time.February},
		WeekendDays:     []time.Weekday{time.Friday, time.Saturday},
		OffSeasonMonths: []time.Month{time.June, time.July, time.August},
	}
}

type season struct {
	name       string
	multiplier decimal.Decimal
	matches    func(time.Time) bool
}

// SeasonalCalendar maps a date to the first matching season
type SeasonalCalendar struct {
	seasons []season
}

// NewSeasonalCalendar builds the ordered season table. Every multiplier must
// be configured and lie within its band.
func NewSeasonalCalendar(cfg CalendarConfig) (*SeasonalCalendar, error) {
	order := []string{SeasonHajj, SeasonRamadan, SeasonPeak, SeasonWeekend, SeasonOffSeason}
	for _, name := range order {
		m, ok := cfg.Multipliers[name]
		if !ok {
			return nil, fmt.Errorf("seasonal calendar: missing multiplier for %s", name)
		}
		band := SeasonBands[name]
		if m.LessThan(band.Min) || m.GreaterThan(band.Max) {
			return nil, fmt.Errorf("seasonal calendar: %s multiplier %s outside [%s, %s]", name, m, band.Min, band.Max)
		}
	}
	for _, w := range append(append([]DateWindow{}, cfg.HajjWindows...), cfg.RamadanWindows...) {
		if w.End.Before(w.Start) {
			return nil, fmt.Errorf("seasonal calendar: window %s..%s: %w",
				w.Start.Format(shared.DateLayout), w.End.Format(shared.DateLayout), shared.ErrInvalidDateRange)
		}
	}

	inWindows := func(ws []DateWindow) func(time.Time) bool {
		return func(d time.Time) bool {
			for _, w := range ws {
				if w.Contains(d) {
					return true
				}
			}
			return false
		}
	}
	inMonths := func(ms []time.Month) func(time.Time) bool {
		return func(d time.Time) bool {
			for _, m := range ms {
				if d.Month() == m {
					return true
				}
			}
			return false
		}
	}
	onDays := func(ds []time.Weekday) func(time.Time) bool {
		return func(d time.Time) bool {
			return Weekdays(ds).Contains(d.Weekday())
		}
	}

	return &SeasonalCalendar{seasons: []season{
		{SeasonHajj, cfg.Multipliers[SeasonHajj], inWindows(cfg.HajjWindows)},
		{SeasonRamadan, cfg.Multipliers[SeasonRamadan], inWindows(cfg.RamadanWindows)},
		{SeasonPeak, cfg.Multipliers[SeasonPeak], inMonths(cfg.PeakMonths)},
		{SeasonWeekend, cfg.Multipliers[SeasonWeekend], onDays(cfg.WeekendDays)},
		{SeasonOffSeason, cfg.Multipliers[SeasonOffSeason], inMonths(cfg.OffSeasonMonths)},
	}}, nil
}

// Multiplier returns the name and multiplier of the first season containing date
func (c *SeasonalCalendar) Multiplier(date time.Time) (string, decimal.Decimal) {
	date = shared.NormalizeDate(date)
	for _, s := range c.seasons {
		if s.matches(date) {
			return s.name, s.multiplier
		}
	}
	return SeasonNone, decimal.NewFromInt(1)
}
