package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

var assignmentColumns = []string{"id", "student_id", "teacher_id", "active", "assigned_by", "assigned_at", "ended_at", "student_name", "teacher_name", "class_name"}

func TestTeacherAssignmentRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	rows := sqlmock.NewRows(assignmentColumns).
		AddRow("sa-1", "student-1", "teacher-1", true, "admin-1", time.Now(), nil, "Ani", "Bu Sari", "X IPA 1")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE sa.active = TRUE AND ($1 = '' OR sa.teacher_id = $1)")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	assignments, err := repo.ListActive(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	roster := assignments[0].Roster()
	assert.Equal(t, "student-1", roster.StudentID)
	assert.Equal(t, "Bu Sari", roster.TeacherName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherAssignmentRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sa.active = TRUE AND sa.teacher_id = $1 AND (s.full_name ILIKE $2 OR t.full_name ILIKE $2)")).
		WithArgs("teacher-1", "%ani%").
		WillReturnRows(sqlmock.NewRows(assignmentColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM student_teacher_assignments sa")).
		WithArgs("teacher-1", "%ani%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	rows, total, err := repo.List(context.Background(), models.AssignmentFilter{TeacherID: "teacher-1", Search: "ani"})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherAssignmentRepositoryFindActiveByStudentNotFound(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE sa.student_id = $1 AND sa.active = TRUE")).
		WithArgs("student-9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByStudent(context.Background(), "student-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherAssignmentRepositoryTransfer(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE student_teacher_assignments SET active = FALSE").
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO student_teacher_assignments").
		WithArgs(sqlmock.AnyArg(), "student-1", "teacher-2", true, "admin-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignment := &models.StudentAssignment{StudentID: "student-1", TeacherID: "teacher-2", AssignedBy: "admin-1"}
	require.NoError(t, repo.Transfer(context.Background(), assignment))
	assert.NotEmpty(t, assignment.ID)
	assert.True(t, assignment.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherAssignmentRepositoryTransferRollsBack(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE student_teacher_assignments").
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO student_teacher_assignments").
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	err := repo.Transfer(context.Background(), &models.StudentAssignment{StudentID: "student-1", TeacherID: "missing"})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTeacherAssignmentRepositoryEndActive(t *testing.T) {
	db, mock, cleanup := newRepositoryMock(t)
	defer cleanup()
	repo := NewTeacherAssignmentRepository(db)

	mock.ExpectExec("UPDATE student_teacher_assignments SET active = FALSE").
		WithArgs("student-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.EndActive(context.Background(), "student-1"))

	mock.ExpectExec("UPDATE student_teacher_assignments SET active = FALSE").
		WithArgs("student-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.EndActive(context.Background(), "student-2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
