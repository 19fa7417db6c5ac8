package models

// JWTClaims is the verified identity extracted from an access token issued
// by the managed backend.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email,omitempty"`
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacher_id,omitempty"`
}

// IsAdmin reports whether the caller manages master data.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// ActingTeacherID returns the teacher the caller records attendance as.
func (c *JWTClaims) ActingTeacherID() string {
	if c == nil || c.Role != RoleTeacher {
		return ""
	}
	if c.TeacherID != "" {
		return c.TeacherID
	}
	return c.UserID
}
