package models

import (
	"time"

	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
)

// StudentAssignment binds a student to the teacher responsible for recording
// their attendance. A student has at most one active assignment.
type StudentAssignment struct {
	ID         string     `db:"id" json:"id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	TeacherID  string     `db:"teacher_id" json:"teacher_id"`
	Active     bool       `db:"active" json:"active"`
	AssignedBy string     `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time  `db:"assigned_at" json:"assigned_at"`
	EndedAt    *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// StudentAssignmentDetail enriches assignments with display names.
type StudentAssignmentDetail struct {
	StudentAssignment
	StudentName string  `db:"student_name" json:"student_name"`
	TeacherName string  `db:"teacher_name" json:"teacher_name"`
	ClassName   *string `db:"class_name" json:"class_name,omitempty"`
}

// Roster converts the row for completeness evaluation.
func (d StudentAssignmentDetail) Roster() completeness.Assignment {
	return completeness.Assignment{
		StudentID:   d.StudentID,
		StudentName: d.StudentName,
		TeacherID:   d.TeacherID,
		TeacherName: d.TeacherName,
	}
}

// AssignmentFilter scopes assignment listings.
type AssignmentFilter struct {
	TeacherID string
	ClassID   string
	Search    string
	Page      int
	PageSize  int
}

// AssignmentChange reports the outcome of an assign call.
type AssignmentChange struct {
	Assignment *StudentAssignment `json:"assignment"`
	Previous   *StudentAssignment `json:"previous,omitempty"`
	Transfer   bool               `json:"transfer"`
}
