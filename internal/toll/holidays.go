package toll

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"time"

	yaml "gopkg.in/yaml.v3"
)

//go:embed holidays.yaml
var defaultHolidaysYAML []byte

// MonthDay is a civil (month, day) pair.
type MonthDay struct {
	Month time.Month
	Day   int
}

// HolidayCalendar maps a civil year onto its public holidays. Years that are not
// listed have no holidays.
type HolidayCalendar struct {
	Version string
	years   map[int]map[MonthDay]struct{}
}

type holidayFile struct {
	Version string           `yaml:"version"`
	Years   map[int][]string `yaml:"years"`
}

// ParseHolidays reads a holiday table in YAML form:
//
//	version: se-2024-2025
//	years:
//	  2024: ["01-01", "12-25"]
func ParseHolidays(data []byte) (HolidayCalendar, error) {
	var f holidayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return HolidayCalendar{}, fmt.Errorf("parse holidays: %w", err)
	}
	if f.Version == "" {
		return HolidayCalendar{}, fmt.Errorf("parse holidays: version is required")
	}
	hc := HolidayCalendar{Version: f.Version, years: make(map[int]map[MonthDay]struct{}, len(f.Years))}
	for year, days := range f.Years {
		set := make(map[MonthDay]struct{}, len(days))
		for _, d := range days {
			md, err := parseMonthDay(year, d)
			if err != nil {
				return HolidayCalendar{}, fmt.Errorf("parse holidays: year %d: %w", year, err)
			}
			set[md] = struct{}{}
		}
		hc.years[year] = set
	}
	return hc, nil
}

// LoadHolidays reads a holiday YAML file from disk.
func LoadHolidays(path string) (HolidayCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return HolidayCalendar{}, fmt.Errorf("read holidays: %w", err)
	}
	return ParseHolidays(data)
}

// DefaultHolidays returns the embedded Swedish holiday table.
func DefaultHolidays() HolidayCalendar {
	hc, err := ParseHolidays(defaultHolidaysYAML)
	if err != nil {
		panic(err)
	}
	return hc
}

func parseMonthDay(year int, s string) (MonthDay, error) {
	// Parse against the real year so 02-29 is only accepted in leap years.
	t, err := time.Parse("2006-01-02", fmt.Sprintf("%04d-%s", year, s))
	if err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q", s)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

func (h HolidayCalendar) Contains(year int, month time.Month, day int) bool {
	set, ok := h.years[year]
	if !ok {
		return false
	}
	_, ok = set[MonthDay{Month: month, Day: day}]
	return ok
}

// Years lists the covered years in ascending order.
func (h HolidayCalendar) Years() []int {
	out := make([]int, 0, len(h.years))
	for y := range h.years {
		out = append(out, y)
	}
	sort.Ints(out)
	return out
}

func (h HolidayCalendar) Covers(year int) bool {
	_, ok := h.years[year]
	return ok
}
