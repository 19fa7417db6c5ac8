package models

import (
	"strings"
	"time"

	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent   AttendanceStatus = "PRESENT"
	AttendanceStatusSick      AttendanceStatus = "SICK"
	AttendanceStatusPermitted AttendanceStatus = "PERMITTED"
	AttendanceStatusAbsent    AttendanceStatus = "ABSENT"
)

// legacyStatusCodes maps the single-letter codes used by spreadsheet imports
// (Hadir, Sakit, Izin, Alpa).
var legacyStatusCodes = map[string]AttendanceStatus{
	"H": AttendanceStatusPresent,
	"S": AttendanceStatusSick,
	"I": AttendanceStatusPermitted,
	"A": AttendanceStatusAbsent,
}

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusSick, AttendanceStatusPermitted, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus accepts full names and single-letter codes.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	if status, ok := legacyStatusCodes[value]; ok {
		return status, true
	}
	status := AttendanceStatus(value)
	return status, status.Valid()
}

// BulkOperationMode controls how bulk writes behave on errors.
type BulkOperationMode string

const (
	BulkModeAtomic         BulkOperationMode = "atomic"
	BulkModePartialOnError BulkOperationMode = "partialOnError"
)

// AttendanceRecord is one student's attendance on one date.
type AttendanceRecord struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	TeacherID  string           `db:"teacher_id" json:"teacher_id"`
	Date       schoolcal.Date   `db:"date" json:"date"`
	Status     AttendanceStatus `db:"status" json:"status"`
	Note       *string          `db:"note" json:"note,omitempty"`
	RecordedBy string           `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordDetail extends the record with display names.
type AttendanceRecordDetail struct {
	AttendanceRecord
	StudentName string `db:"student_name" json:"student_name"`
	TeacherName string `db:"teacher_name" json:"teacher_name"`
}

// AttendanceFilter defines query filters.
type AttendanceFilter struct {
	StudentID string
	TeacherID string
	Status    *AttendanceStatus
	DateFrom  *schoolcal.Date
	DateTo    *schoolcal.Date
	Page      int
	PageSize  int
	SortOrder string
}

// AttendanceImportRejection explains why an import row was not stored.
type AttendanceImportRejection struct {
	Row       int    `json:"row"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
}
