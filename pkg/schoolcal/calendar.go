// Package schoolcal decides which calendar dates are active school days for a
// school running a five or six day week with a holiday table.
package schoolcal

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// Supported weekly schedules.
const (
	FiveDayWeek = 5
	SixDayWeek  = 6
)

// Config describes the weekly schedule.
type Config struct {
	SchoolDaysPerWeek int `json:"school_days_per_week"`
}

// NewConfig validates days and returns the configuration.
func NewConfig(days int) (Config, error) {
	cfg := Config{SchoolDaysPerWeek: days}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects anything other than a 5 or 6 day week.
func (c Config) Validate() error {
	if c.SchoolDaysPerWeek != FiveDayWeek && c.SchoolDaysPerWeek != SixDayWeek {
		return appErrors.Clone(appErrors.ErrInvalidConfiguration,
			fmt.Sprintf("school_days_per_week must be 5 or 6, got %d", c.SchoolDaysPerWeek))
	}
	return nil
}

// HolidayKind classifies a holiday entry.
type HolidayKind string

const (
	HolidayNational        HolidayKind = "NATIONAL"
	HolidaySchool          HolidayKind = "SCHOOL"
	HolidayCollectiveLeave HolidayKind = "COLLECTIVE_LEAVE"
)

// Valid returns true when the kind is supported.
func (k HolidayKind) Valid() bool {
	switch k {
	case HolidayNational, HolidaySchool, HolidayCollectiveLeave:
		return true
	default:
		return false
	}
}

// ParseHolidayKind normalises user input.
func ParseHolidayKind(raw string) (HolidayKind, bool) {
	kind := HolidayKind(strings.ToUpper(strings.TrimSpace(raw)))
	return kind, kind.Valid()
}

// Holiday marks a date on which no attendance is expected.
type Holiday struct {
	Date Date        `json:"date"`
	Kind HolidayKind `json:"kind"`
	Note string      `json:"note,omitempty"`
}

// HolidaySet indexes holidays by date. A nil set holds no holidays.
type HolidaySet map[Date]Holiday

// NewHolidaySet builds a set; a later entry for the same date wins.
func NewHolidaySet(holidays ...Holiday) HolidaySet {
	set := make(HolidaySet, len(holidays))
	for _, h := range holidays {
		set[h.Date] = h
	}
	return set
}

// Get returns the holiday on d, if any.
func (s HolidaySet) Get(d Date) (Holiday, bool) {
	h, ok := s[d]
	return h, ok
}

// Reason explains why a date is not an active school day.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonSunday   Reason = "SUNDAY"
	ReasonSaturday Reason = "SATURDAY"
	ReasonHoliday  Reason = "HOLIDAY"
)

// DayStatus is the classification of a single date.
type DayStatus struct {
	Date    Date     `json:"date"`
	Active  bool     `json:"active"`
	Reason  Reason   `json:"reason,omitempty"`
	Holiday *Holiday `json:"holiday,omitempty"`
}

// Calendar answers school-day questions for one validated configuration and
// holiday snapshot. It is immutable and safe for concurrent use.
type Calendar struct {
	cfg      Config
	holidays HolidaySet
}

// New validates cfg and returns a calendar over the holiday snapshot.
func New(cfg Config, holidays HolidaySet) (*Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if holidays == nil {
		holidays = HolidaySet{}
	}
	return &Calendar{cfg: cfg, holidays: holidays}, nil
}

// Config returns the weekly schedule of the calendar.
func (c *Calendar) Config() Config {
	return c.cfg
}

// Classify reports whether d is an active school day and why not.
func (c *Calendar) Classify(d Date) DayStatus {
	status := DayStatus{Date: d}
	switch d.Weekday() {
	case time.Sunday:
		status.Reason = ReasonSunday
		return status
	case time.Saturday:
		if c.cfg.SchoolDaysPerWeek == FiveDayWeek {
			status.Reason = ReasonSaturday
			return status
		}
	}
	if h, ok := c.holidays.Get(d); ok {
		status.Reason = ReasonHoliday
		status.Holiday = &h
		return status
	}
	status.Active = true
	return status
}

// IsActiveSchoolDay reports whether attendance is expected on d.
func (c *Calendar) IsActiveSchoolDay(d Date) bool {
	return c.Classify(d).Active
}

// ActiveDaysInRange lists every active school day in [start, end], ascending.
// A reversed range yields an empty slice.
func (c *Calendar) ActiveDaysInRange(start, end Date) []Date {
	if start.After(end) {
		return []Date{}
	}
	days := make([]Date, 0, 31)
	for d := start; !d.After(end); d = d.AddDays(1) {
		if c.IsActiveSchoolDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// IsActiveSchoolDay is the one-shot form of Calendar.IsActiveSchoolDay.
func IsActiveSchoolDay(d Date, cfg Config, holidays HolidaySet) (bool, error) {
	cal, err := New(cfg, holidays)
	if err != nil {
		return false, err
	}
	return cal.IsActiveSchoolDay(d), nil
}

// ActiveSchoolDaysInRange is the one-shot form of Calendar.ActiveDaysInRange.
func ActiveSchoolDaysInRange(start, end Date, cfg Config, holidays HolidaySet) ([]Date, error) {
	cal, err := New(cfg, holidays)
	if err != nil {
		return nil, err
	}
	return cal.ActiveDaysInRange(start, end), nil
}

// EffectiveEndDate clamps a month selection to today. For a future month the
// result precedes monthStart and ranges built from it are empty.
func EffectiveEndDate(monthStart, monthEnd, today Date) Date {
	if today.Before(monthEnd) {
		return today
	}
	return monthEnd
}
