package models

// Student is the subset of the student master record needed for attendance.
type Student struct {
	ID        string  `db:"id" json:"id"`
	NIS       *string `db:"nis" json:"nis,omitempty"`
	FullName  string  `db:"full_name" json:"full_name"`
	ClassID   *string `db:"class_id" json:"class_id,omitempty"`
	ClassName *string `db:"class_name" json:"class_name,omitempty"`
	Active    bool    `db:"active" json:"active"`
}
