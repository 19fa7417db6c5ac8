package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// ErrDuplicateAttendance is returned by atomic bulk inserts when a row
// already exists for the same student and date.
var ErrDuplicateAttendance = errors.New("attendance already recorded")

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListKeys returns the (student, date) pair of every record in [from, to].
// A non-empty studentIDs restricts the result to those students.
func (r *AttendanceRepository) ListKeys(ctx context.Context, from, to schoolcal.Date, studentIDs []string) ([]completeness.RecordKey, error) {
	query := `SELECT student_id, date FROM attendance_records WHERE date >= $1 AND date <= $2`
	args := []interface{}{from, to}
	if len(studentIDs) > 0 {
		query += ` AND student_id = ANY($3)`
		args = append(args, pq.Array(studentIDs))
	}
	var keys []completeness.RecordKey
	if err := r.db.SelectContext(ctx, &keys, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance keys: %w", err)
	}
	return keys, nil
}

// List returns attendance rows matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	base := `FROM attendance_records ar
JOIN students s ON s.id = ar.student_id
JOIN teachers t ON t.id = ar.teacher_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("ar.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		where = append(where, fmt.Sprintf("ar.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("ar.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("ar.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("ar.date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	whereClause := strings.Join(where, " AND ")
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ar.id, ar.student_id, ar.teacher_id, ar.date, ar.status, ar.note, ar.recorded_by, ar.created_at, ar.updated_at,
        s.full_name AS student_name, t.full_name AS teacher_name
        %s WHERE %s
        ORDER BY ar.date %s, s.full_name ASC
        LIMIT %d OFFSET %d`, base, whereClause, order, size, offset)

	var rows []models.AttendanceRecordDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return rows, total, nil
}

const attendanceReturning = `RETURNING id, student_id, teacher_id, date, status, note, recorded_by, created_at, updated_at`

// Upsert inserts or updates the record for the student on the date.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	stampAttendance(record, time.Now().UTC())
	query := `INSERT INTO attendance_records (id, student_id, teacher_id, date, status, note, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date)
DO UPDATE SET teacher_id = EXCLUDED.teacher_id, status = EXCLUDED.status, note = EXCLUDED.note,
recorded_by = EXCLUDED.recorded_by, updated_at = EXCLUDED.updated_at
` + attendanceReturning
	var stored models.AttendanceRecord
	if err := r.db.GetContext(ctx, &stored, query, record.ID, record.StudentID, record.TeacherID, record.Date, record.Status,
		record.Note, record.RecordedBy, record.CreatedAt, record.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert attendance: %w", err)
	}
	return &stored, nil
}

// BulkInsert inserts records in one transaction and returns the ones that
// collided with an existing row. With atomic set any collision aborts the
// whole batch with ErrDuplicateAttendance.
func (r *AttendanceRepository) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin bulk attendance: %w", err)
	}
	conflicts := make([]models.AttendanceRecord, 0)
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()
	query := `INSERT INTO attendance_records (id, student_id, teacher_id, date, status, note, recorded_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (student_id, date) DO NOTHING RETURNING id`
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		stampAttendance(rec, now)
		var insertedID string
		if err := tx.QueryRowxContext(ctx, query, rec.ID, rec.StudentID, rec.TeacherID, rec.Date, rec.Status,
			rec.Note, rec.RecordedBy, rec.CreatedAt, rec.UpdatedAt).Scan(&insertedID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if atomic {
					return nil, fmt.Errorf("%w: student %s on %s", ErrDuplicateAttendance, rec.StudentID, rec.Date)
				}
				conflicts = append(conflicts, *rec)
				continue
			}
			return nil, fmt.Errorf("bulk insert attendance: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit bulk attendance: %w", err)
	}
	commit = true
	return conflicts, nil
}

func stampAttendance(record *models.AttendanceRecord, now time.Time) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
