package schoolcal

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

// DateLayout is the ISO calendar date layout used on every boundary.
const DateLayout = "2006-01-02"

// MonthLayout is the layout accepted for month selections.
const MonthLayout = "2006-01"

// Date is a calendar date without time or zone. Values are created through
// ParseDate, NewDate or FromTime and are always valid unless zero.
type Date struct {
	year  int
	month time.Month
	day   int
}

// ParseDate parses a strict YYYY-MM-DD value.
func ParseDate(raw string) (Date, error) {
	value := strings.TrimSpace(raw)
	if len(value) != len(DateLayout) {
		return Date{}, invalidDate(raw)
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return Date{}, invalidDate(raw)
	}
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}, nil
}

// MustParseDate is ParseDate for literals known to be valid.
func MustParseDate(raw string) Date {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDate validates the components and returns the date.
func NewDate(year int, month time.Month, day int) (Date, error) {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return Date{}, invalidDate(fmt.Sprintf("%04d-%02d-%02d", year, int(month), day))
	}
	return Date{year: year, month: month, day: day}, nil
}

// FromTime takes the calendar date of t as seen in t's own location.
func FromTime(t time.Time) Date {
	return Date{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location, now time.Time) Date {
	if loc == nil {
		loc = time.UTC
	}
	return FromTime(now.In(loc))
}

func invalidDate(raw string) error {
	return appErrors.Clone(appErrors.ErrInvalidDate, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
}

// IsZero reports whether d was never set.
func (d Date) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// Year returns the year component.
func (d Date) Year() int { return d.year }

// Month returns the month component.
func (d Date) Month() time.Month { return d.month }

// Day returns the day of month.
func (d Date) Day() int { return d.day }

// String renders the date as YYYY-MM-DD. Rendered values sort the same way
// Compare does.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.year, int(d.month), d.day)
}

// Time anchors the date at noon UTC so zone conversions never move it to a
// neighbouring day.
func (d Date) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 12, 0, 0, 0, time.UTC)
}

// Weekday returns the day of week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the date n days later (earlier when n is negative).
func (d Date) AddDays(n int) Date {
	return FromTime(time.Date(d.year, d.month, d.day+n, 12, 0, 0, 0, time.UTC))
}

// Compare returns -1, 0 or 1.
func (d Date) Compare(other Date) int {
	switch {
	case d.year != other.year:
		return cmpInt(d.year, other.year)
	case d.month != other.month:
		return cmpInt(int(d.month), int(other.month))
	default:
		return cmpInt(d.day, other.day)
	}
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.Compare(other) > 0 }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// MarshalJSON encodes the date as a JSON string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a YYYY-MM-DD string. Empty strings and null leave
// the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return invalidDate(string(data))
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan implements sql.Scanner for DATE columns.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = FromTime(v)
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("schoolcal: cannot scan %T into Date", src)
	}
}

func (d *Date) scanString(raw string) error {
	if len(raw) > len(DateLayout) {
		raw = raw[:len(DateLayout)]
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Month identifies a calendar month selection.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a YYYY-MM value.
func ParseMonth(raw string) (Month, error) {
	value := strings.TrimSpace(raw)
	if len(value) != len(MonthLayout) {
		return Month{}, invalidDate(raw)
	}
	t, err := time.Parse(MonthLayout, value)
	if err != nil {
		return Month{}, invalidDate(raw)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the month containing d.
func MonthOf(d Date) Month {
	return Month{Year: d.year, Month: d.month}
}

// Start returns the first day of the month.
func (m Month) Start() Date {
	return Date{year: m.Year, month: m.Month, day: 1}
}

// End returns the last day of the month.
func (m Month) End() Date {
	return m.Start().AddDays(32).firstOfMonth().AddDays(-1)
}

// String renders the month as YYYY-MM.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (d Date) firstOfMonth() Date {
	return Date{year: d.year, month: d.month, day: 1}
}
