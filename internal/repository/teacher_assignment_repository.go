package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// TeacherAssignmentRepository persists student-teacher attendance assignments.
type TeacherAssignmentRepository struct {
	db *sqlx.DB
}

// NewTeacherAssignmentRepository constructs the repository.
func NewTeacherAssignmentRepository(db *sqlx.DB) *TeacherAssignmentRepository {
	return &TeacherAssignmentRepository{db: db}
}

const assignmentDetailSelect = `SELECT sa.id, sa.student_id, sa.teacher_id, sa.active, sa.assigned_by, sa.assigned_at, sa.ended_at,
       s.full_name AS student_name, t.full_name AS teacher_name, c.name AS class_name
FROM student_teacher_assignments sa
JOIN students s ON s.id = sa.student_id
JOIN teachers t ON t.id = sa.teacher_id
LEFT JOIN classes c ON c.id = s.class_id`

// List returns a page of active assignments.
func (r *TeacherAssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.StudentAssignmentDetail, int, error) {
	where := []string{"sa.active = TRUE"}
	args := []interface{}{}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("sa.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("s.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(s.full_name ILIKE $%d OR t.full_name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`%s
WHERE %s
ORDER BY t.full_name ASC, s.full_name ASC
LIMIT %d OFFSET %d`, assignmentDetailSelect, whereClause, size, offset)
	var rows []models.StudentAssignmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list student assignments: %w", err)
	}

	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM student_teacher_assignments sa
JOIN students s ON s.id = sa.student_id
JOIN teachers t ON t.id = sa.teacher_id
WHERE %s`, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count student assignments: %w", err)
	}
	return rows, total, nil
}

// ListActive returns every active assignment, optionally for one teacher.
func (r *TeacherAssignmentRepository) ListActive(ctx context.Context, teacherID string) ([]models.StudentAssignmentDetail, error) {
	query := assignmentDetailSelect + `
WHERE sa.active = TRUE AND ($1 = '' OR sa.teacher_id = $1)`
	var rows []models.StudentAssignmentDetail
	if err := r.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return rows, nil
}

// FindActiveByStudent returns the student's active assignment.
func (r *TeacherAssignmentRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.StudentAssignmentDetail, error) {
	query := assignmentDetailSelect + `
WHERE sa.student_id = $1 AND sa.active = TRUE`
	var row models.StudentAssignmentDetail
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return nil, err
	}
	return &row, nil
}

// Transfer ends any active assignment of the student and inserts the new one
// in a single transaction.
func (r *TeacherAssignmentRepository) Transfer(ctx context.Context, assignment *models.StudentAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = now
	}
	assignment.Active = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transfer: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE student_teacher_assignments SET active = FALSE, ended_at = $2 WHERE student_id = $1 AND active = TRUE`,
		assignment.StudentID, now); err != nil {
		return fmt.Errorf("end previous assignment: %w", err)
	}
	const insert = `INSERT INTO student_teacher_assignments (id, student_id, teacher_id, active, assigned_by, assigned_at)
VALUES (:id, :student_id, :teacher_id, :active, :assigned_by, :assigned_at)`
	if _, err := tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return fmt.Errorf("create student assignment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment transfer: %w", err)
	}
	committed = true
	return nil
}

// EndActive closes the student's active assignment.
func (r *TeacherAssignmentRepository) EndActive(ctx context.Context, studentID string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE student_teacher_assignments SET active = FALSE, ended_at = $2 WHERE student_id = $1 AND active = TRUE`,
		studentID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("end student assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check ended assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
