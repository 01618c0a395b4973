// Package workreport turns work items into a daily expected-vs-actual ledger.
package workreport

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ycho/youtrack-mcp-server/internal/youtrack"
)

const (
	// DefaultDailyMinutes is a regular 8 hour working day.
	DefaultDailyMinutes = 480
	// PreHolidayRatio is the share of a working day expected before a holiday.
	PreHolidayRatio = 0.875

	dateLayout = "2006-01-02"
)

// ErrInvalidPeriod is returned when the period ends before it starts.
var ErrInvalidPeriod = errors.New("end date is before start date")

// Options controls how a ledger is built. The zero value excludes weekends and
// holidays and expects DefaultDailyMinutes per day.
type Options struct {
	Start           time.Time // zero means the earliest work item date
	End             time.Time // zero means the latest work item date
	DailyMinutes    int
	IncludeWeekends bool
	IncludeHolidays bool
	Calendar        *Calendar
	Now             func() time.Time // used only when there is nothing to derive the period from
}

// Day is one retained calendar day of the ledger.
type Day struct {
	Date            string  `json:"date"`
	Weekday         string  `json:"weekday"`
	ExpectedMinutes int     `json:"expectedMinutes"`
	ActualMinutes   int     `json:"actualMinutes"`
	Difference      int     `json:"difference"`
	Percent         float64 `json:"percent"`
	PreHoliday      bool    `json:"preHoliday,omitempty"`
	Invalid         bool    `json:"invalid"`
	WorkItems       int     `json:"workItems"`
}

// Summary aggregates the retained days.
type Summary struct {
	TotalActualMinutes   int      `json:"totalActualMinutes"`
	TotalActualHours     float64  `json:"totalActualHours"`
	TotalExpectedMinutes int      `json:"totalExpectedMinutes"`
	TotalExpectedHours   float64  `json:"totalExpectedHours"`
	DayCount             int      `json:"dayCount"`
	AverageHoursPerDay   float64  `json:"averageHoursPerDay"`
	InvalidDays          []string `json:"invalidDays"`
	// UnaccountedMinutes were logged on skipped days.
	UnaccountedMinutes int `json:"unaccountedMinutes"`
}

// Report is a complete ledger for one period.
type Report struct {
	User    string  `json:"user,omitempty"`
	Start   string  `json:"start"`
	End     string  `json:"end"`
	Days    []Day   `json:"days"`
	Summary Summary `json:"summary"`
}

// truncateDay returns midnight UTC of t's UTC calendar date.
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EnumerateDays returns every calendar day in [start, end], inclusive.
func EnumerateDays(start, end time.Time) ([]time.Time, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidPeriod, start.Format(dateLayout), end.Format(dateLayout))
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

// period resolves the effective start and end days.
func period(items []youtrack.WorkItem, opts Options) (time.Time, time.Time) {
	var minDay, maxDay time.Time
	for i, item := range items {
		d := truncateDay(youtrack.FromMillis(item.Date))
		if i == 0 || d.Before(minDay) {
			minDay = d
		}
		if i == 0 || d.After(maxDay) {
			maxDay = d
		}
	}
	if len(items) == 0 {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		minDay = truncateDay(now())
		maxDay = minDay
	}

	start, end := minDay, maxDay
	if !opts.Start.IsZero() {
		start = truncateDay(opts.Start)
	}
	if !opts.End.IsZero() {
		end = truncateDay(opts.End)
	}
	return start, end
}

// Build computes the ledger for items. It does not modify items and, given
// the same items and options, always returns the same report.
func Build(items []youtrack.WorkItem, opts Options) (*Report, error) {
	daily := opts.DailyMinutes
	if daily < 0 {
		return nil, fmt.Errorf("daily minutes must not be negative: %d", daily)
	}
	if daily == 0 {
		daily = DefaultDailyMinutes
	}

	start, end := period(items, opts)
	days, err := EnumerateDays(start, end)
	if err != nil {
		return nil, err
	}

	actual := make(map[string]int)
	counts := make(map[string]int)
	var logged int
	for _, item := range items {
		key := youtrack.FromMillis(item.Date).Format(dateLayout)
		actual[key] += item.Duration.Minutes
		counts[key]++
		logged += item.Duration.Minutes
	}

	holidays := opts.Calendar.holidaySet()
	preHolidays := opts.Calendar.preHolidaySet()

	report := &Report{
		Start: start.Format(dateLayout),
		End:   end.Format(dateLayout),
		Days:  []Day{},
		Summary: Summary{
			InvalidDays: []string{},
		},
	}
	sum := &report.Summary

	for _, d := range days {
		key := d.Format(dateLayout)
		if !opts.IncludeWeekends && isWeekend(d) {
			continue
		}
		if !opts.IncludeHolidays && holidays[key] {
			continue
		}

		expected := daily
		pre := preHolidays[key]
		if pre {
			expected = int(math.Round(float64(daily) * PreHolidayRatio))
		}

		day := Day{
			Date:            key,
			Weekday:         d.Weekday().String(),
			ExpectedMinutes: expected,
			ActualMinutes:   actual[key],
			Difference:      actual[key] - expected,
			Percent:         percent(actual[key], expected),
			PreHoliday:      pre,
			WorkItems:       counts[key],
		}
		day.Invalid = day.Difference != 0

		report.Days = append(report.Days, day)
		sum.TotalActualMinutes += day.ActualMinutes
		sum.TotalExpectedMinutes += day.ExpectedMinutes
		if day.Invalid {
			sum.InvalidDays = append(sum.InvalidDays, key)
		}
	}

	sum.DayCount = len(report.Days)
	sum.TotalActualHours = Hours(sum.TotalActualMinutes)
	sum.TotalExpectedHours = Hours(sum.TotalExpectedMinutes)
	if sum.DayCount > 0 {
		sum.AverageHoursPerDay = roundFloat(float64(sum.TotalActualMinutes)/float64(sum.DayCount)/60, 2)
	}
	sum.UnaccountedMinutes = logged - sum.TotalActualMinutes

	return report, nil
}

func isWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func percent(actual, expected int) float64 {
	if expected == 0 {
		return 0
	}
	return math.Round(float64(actual)/float64(expected)*1000) / 10
}

// Hours converts minutes to hours rounded to two decimals.
func Hours(minutes int) float64 {
	return roundFloat(float64(minutes)/60, 2)
}

func roundFloat(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	return math.Round(val*ratio) / ratio
}
