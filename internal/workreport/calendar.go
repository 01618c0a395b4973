package workreport

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

// ErrInvalidDate is returned for a calendar entry that is not YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid date")

// Calendar lists non-working days and shortened days before them, as
// YYYY-MM-DD dates.
type Calendar struct {
	Holidays    []string `json:"holidays"`
	PreHolidays []string `json:"pre_holidays"`
}

// LoadCalendar loads a calendar from a JSON file.
// Returns nil (no calendar) if the file doesn't exist.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read calendar: %w", err)
	}

	var cal Calendar
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("failed to parse calendar: %w", err)
	}
	if err := cal.Validate(); err != nil {
		return nil, fmt.Errorf("invalid calendar %s: %w", path, err)
	}
	return &cal, nil
}

// Validate checks that every entry is a YYYY-MM-DD date.
func (c *Calendar) Validate() error {
	if c == nil {
		return nil
	}
	for _, list := range [][]string{c.Holidays, c.PreHolidays} {
		for _, d := range list {
			if _, err := time.Parse(dateLayout, strings.TrimSpace(d)); err != nil {
				return fmt.Errorf("%w %q (use YYYY-MM-DD)", ErrInvalidDate, d)
			}
		}
	}
	return nil
}

// Merge returns a calendar holding the dates of both c and other.
// Either may be nil.
func (c *Calendar) Merge(other *Calendar) *Calendar {
	if c == nil && other == nil {
		return nil
	}
	merged := &Calendar{}
	for _, cal := range []*Calendar{c, other} {
		if cal == nil {
			continue
		}
		merged.Holidays = append(merged.Holidays, cal.Holidays...)
		merged.PreHolidays = append(merged.PreHolidays, cal.PreHolidays...)
	}
	slices.Sort(merged.Holidays)
	merged.Holidays = slices.Compact(merged.Holidays)
	slices.Sort(merged.PreHolidays)
	merged.PreHolidays = slices.Compact(merged.PreHolidays)
	return merged
}

func (c *Calendar) holidaySet() map[string]bool {
	if c == nil {
		return nil
	}
	return toSet(c.Holidays)
}

func (c *Calendar) preHolidaySet() map[string]bool {
	if c == nil {
		return nil
	}
	return toSet(c.PreHolidays)
}

func toSet(dates []string) map[string]bool {
	set := make(map[string]bool, len(dates))
	for _, d := range dates {
		set[strings.TrimSpace(d)] = true
	}
	return set
}
