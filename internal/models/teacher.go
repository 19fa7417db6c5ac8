package models

// Teacher is the subset of the teacher master record needed for attendance.
type Teacher struct {
	ID       string  `db:"id" json:"id"`
	NIP      *string `db:"nip" json:"nip,omitempty"`
	FullName string  `db:"full_name" json:"full_name"`
	Active   bool    `db:"active" json:"active"`
}
