package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// fakeCalendar serves a fixed configuration, holiday set and today.
type fakeCalendar struct {
	cfg      schoolcal.Config
	holidays schoolcal.HolidaySet
	today    schoolcal.Date
	calls    int
}

func newFakeCalendar(days int, today string, holidays ...string) *fakeCalendar {
	set := schoolcal.HolidaySet{}
	for _, raw := range holidays {
		date := schoolcal.MustParseDate(raw)
		set[date] = schoolcal.Holiday{Date: date, Kind: schoolcal.HolidayNational}
	}
	return &fakeCalendar{cfg: schoolcal.Config{SchoolDaysPerWeek: days}, holidays: set, today: schoolcal.MustParseDate(today)}
}

func (f *fakeCalendar) Calendar(ctx context.Context, from, to schoolcal.Date) (*schoolcal.Calendar, error) {
	f.calls++
	return schoolcal.New(f.cfg, f.holidays)
}

func (f *fakeCalendar) Today() schoolcal.Date { return f.today }

type attendanceRepoStub struct {
	records   map[string]models.AttendanceRecord
	upserts   int
	lastBulk  []models.AttendanceRecord
	bulkAtom  bool
	listQuery models.AttendanceFilter
}

func newAttendanceRepoStub(existing ...models.AttendanceRecord) *attendanceRepoStub {
	stub := &attendanceRepoStub{records: map[string]models.AttendanceRecord{}}
	for _, rec := range existing {
		stub.records[completeness.Key(rec.StudentID, rec.Date)] = rec
	}
	return stub
}

func (s *attendanceRepoStub) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	s.listQuery = filter
	return nil, 0, nil
}

func (s *attendanceRepoStub) Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	s.upserts++
	record.ID = "att-" + record.StudentID
	s.records[completeness.Key(record.StudentID, record.Date)] = *record
	cp := *record
	return &cp, nil
}

func (s *attendanceRepoStub) BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceRecord, error) {
	s.lastBulk = records
	s.bulkAtom = atomic
	var conflicts []models.AttendanceRecord
	for _, rec := range records {
		key := completeness.Key(rec.StudentID, rec.Date)
		if _, exists := s.records[key]; exists {
			if atomic {
				return nil, fmt.Errorf("%w: %s", repository.ErrDuplicateAttendance, key)
			}
			conflicts = append(conflicts, rec)
			continue
		}
		s.records[key] = rec
	}
	return conflicts, nil
}

var (
	teacherOne = &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher, TeacherID: "teacher-1"}
	adminUser  = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
)

func newTestAttendanceService(repo *attendanceRepoStub, cal *fakeCalendar) *AttendanceService {
	assignments := newAssignmentRepoStub(
		activeAssignment("student-1", "Ani", "teacher-1", "Bu Sari"),
		activeAssignment("student-2", "Budi", "teacher-1", "Bu Sari"),
		activeAssignment("student-3", "Citra", "teacher-2", "Pak Joko"),
	)
	return NewAttendanceService(repo, assignments, cal, nil, nil, zap.NewNop())
}

func TestAttendanceServiceRecord(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, newFakeCalendar(6, "2025-01-08"))

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-07", Status: "h"}, teacherOne)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, "teacher-1", record.TeacherID)
	assert.Equal(t, "user-1", record.RecordedBy)
	assert.Equal(t, 1, repo.upserts)
}

func TestAttendanceServiceAdminRecordsForAssignedTeacher(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, newFakeCalendar(6, "2025-01-08"))

	record, err := svc.Record(context.Background(), RecordAttendanceRequest{StudentID: "student-3", Date: "2025-01-04", Status: "SICK"}, adminUser)
	require.NoError(t, err)
	assert.Equal(t, "teacher-2", record.TeacherID)
	assert.Equal(t, "admin-1", record.RecordedBy)
}

func TestAttendanceServiceRecordRejections(t *testing.T) {
	svc := newTestAttendanceService(newAttendanceRepoStub(), newFakeCalendar(5, "2025-01-08", "2025-01-01"))

	cases := []struct {
		name string
		req  RecordAttendanceRequest
		want *appErrors.Error
	}{
		{"future date", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-09", Status: "PRESENT"}, appErrors.ErrValidation},
		{"sunday", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-05", Status: "PRESENT"}, appErrors.ErrValidation},
		{"saturday on five day week", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-04", Status: "PRESENT"}, appErrors.ErrValidation},
		{"holiday", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-01", Status: "PRESENT"}, appErrors.ErrValidation},
		{"malformed date", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-1-7", Status: "PRESENT"}, appErrors.ErrInvalidDate},
		{"impossible date", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-02-30", Status: "PRESENT"}, appErrors.ErrInvalidDate},
		{"unknown status", RecordAttendanceRequest{StudentID: "student-1", Date: "2025-01-07", Status: "LATE"}, appErrors.ErrValidation},
		{"other teacher's student", RecordAttendanceRequest{StudentID: "student-3", Date: "2025-01-07", Status: "PRESENT"}, appErrors.ErrForbidden},
		{"unassigned student", RecordAttendanceRequest{StudentID: "student-9", Date: "2025-01-07", Status: "PRESENT"}, appErrors.ErrPreconditionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tc.req, teacherOne)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAttendanceServiceImportPartial(t *testing.T) {
	existing := models.AttendanceRecord{StudentID: "student-2", Date: schoolcal.MustParseDate("2025-01-06"), Status: models.AttendanceStatusPresent}
	repo := newAttendanceRepoStub(existing)
	cal := newFakeCalendar(6, "2025-01-08")
	svc := newTestAttendanceService(repo, cal)

	result, err := svc.Import(context.Background(), ImportAttendanceRequest{
		Mode: "partialOnError",
		Rows: []RecordAttendanceRequest{
			{StudentID: "student-1", Date: "2025-01-06", Status: "H"},
			{StudentID: "student-1", Date: "2025-01-07", Status: "S"},
			{StudentID: "student-1", Date: "2025-01-07", Status: "I"},
			{StudentID: "student-2", Date: "2025-01-06", Status: "A"},
			{StudentID: "student-2", Date: "2025-01-05", Status: "H"},
			{StudentID: "student-3", Date: "2025-01-06", Status: "H"},
			{StudentID: "student-1", Date: "06/01/2025", Status: "H"},
		},
	}, teacherOne)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Processed)
	assert.Equal(t, 2, result.Inserted)
	assert.Equal(t, 1, cal.calls)
	assert.False(t, repo.bulkAtom)

	rejectedRows := make(map[int]string)
	for _, r := range result.Rejected {
		rejectedRows[r.Row] = r.Reason
	}
	assert.Len(t, rejectedRows, 5)
	assert.Contains(t, rejectedRows[3], "duplicate of row 2")
	assert.Equal(t, "attendance already recorded", rejectedRows[4])
	assert.Contains(t, rejectedRows[5], "not an active school day")
	assert.Contains(t, rejectedRows[6], "not assigned")
	assert.Contains(t, rejectedRows, 7)
}

func TestAttendanceServiceImportAtomic(t *testing.T) {
	existing := models.AttendanceRecord{StudentID: "student-2", Date: schoolcal.MustParseDate("2025-01-06"), Status: models.AttendanceStatusPresent}
	ctx := context.Background()

	t.Run("invalid row aborts", func(t *testing.T) {
		repo := newAttendanceRepoStub()
		svc := newTestAttendanceService(repo, newFakeCalendar(6, "2025-01-08"))
		_, err := svc.Import(ctx, ImportAttendanceRequest{
			Mode: "atomic",
			Rows: []RecordAttendanceRequest{
				{StudentID: "student-1", Date: "2025-01-06", Status: "H"},
				{StudentID: "student-1", Date: "2025-01-12", Status: "H"},
			},
		}, teacherOne)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
		assert.Nil(t, repo.lastBulk)
	})

	t.Run("existing record conflicts", func(t *testing.T) {
		repo := newAttendanceRepoStub(existing)
		svc := newTestAttendanceService(repo, newFakeCalendar(6, "2025-01-08"))
		_, err := svc.Import(ctx, ImportAttendanceRequest{
			Mode: "atomic",
			Rows: []RecordAttendanceRequest{{StudentID: "student-2", Date: "2025-01-06", Status: "H"}},
		}, teacherOne)
		assert.ErrorIs(t, err, appErrors.ErrConflict)
	})

	t.Run("unknown mode", func(t *testing.T) {
		svc := newTestAttendanceService(newAttendanceRepoStub(), newFakeCalendar(6, "2025-01-08"))
		_, err := svc.Import(ctx, ImportAttendanceRequest{Mode: "yolo", Rows: []RecordAttendanceRequest{{StudentID: "student-1", Date: "2025-01-06", Status: "H"}}}, teacherOne)
		assert.ErrorIs(t, err, appErrors.ErrValidation)
	})
}

func TestAttendanceServiceListScopesTeachers(t *testing.T) {
	repo := newAttendanceRepoStub()
	svc := newTestAttendanceService(repo, newFakeCalendar(6, "2025-01-08"))

	_, pagination, err := svc.List(context.Background(), AttendanceListRequest{TeacherID: "teacher-2", Status: "s", DateFrom: "2025-01-01"}, teacherOne)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", repo.listQuery.TeacherID)
	require.NotNil(t, repo.listQuery.Status)
	assert.Equal(t, models.AttendanceStatusSick, *repo.listQuery.Status)
	assert.Equal(t, 1, pagination.Page)

	_, _, err = svc.List(context.Background(), AttendanceListRequest{DateTo: "2025/01/31"}, adminUser)
	assert.ErrorIs(t, err, appErrors.ErrInvalidDate)
}
