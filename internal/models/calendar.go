package models

import (
	"time"

	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// Holiday is a persisted entry of the academic holiday table.
type Holiday struct {
	ID        string                `db:"id" json:"id"`
	Date      schoolcal.Date        `db:"date" json:"date"`
	Kind      schoolcal.HolidayKind `db:"kind" json:"kind"`
	Note      *string               `db:"note" json:"note,omitempty"`
	CreatedBy string                `db:"created_by" json:"created_by"`
	CreatedAt time.Time             `db:"created_at" json:"created_at"`
}

// ToCalendar converts the row into the calendar representation.
func (h Holiday) ToCalendar() schoolcal.Holiday {
	out := schoolcal.Holiday{Date: h.Date, Kind: h.Kind}
	if h.Note != nil {
		out.Note = *h.Note
	}
	return out
}

// HolidaySet indexes persisted holidays for calendar evaluation.
func HolidaySet(rows []Holiday) schoolcal.HolidaySet {
	set := make(schoolcal.HolidaySet, len(rows))
	for _, row := range rows {
		set[row.Date] = row.ToCalendar()
	}
	return set
}

// HolidayFilter narrows down holiday listings.
type HolidayFilter struct {
	From     *schoolcal.Date
	To       *schoolcal.Date
	Kind     schoolcal.HolidayKind
	Page     int
	PageSize int
}

// SchoolSettings is the single-row school schedule configuration.
type SchoolSettings struct {
	SchoolDaysPerWeek int       `db:"school_days_per_week" json:"school_days_per_week"`
	UpdatedBy         *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// CalendarConfig returns the calendar configuration of the settings row.
func (s SchoolSettings) CalendarConfig() schoolcal.Config {
	return schoolcal.Config{SchoolDaysPerWeek: s.SchoolDaysPerWeek}
}
