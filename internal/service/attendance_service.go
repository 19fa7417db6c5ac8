package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// maxImportRows bounds a single import request.
const maxImportRows = 5000

type attendanceRepository interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	BulkInsert(ctx context.Context, records []models.AttendanceRecord, atomic bool) ([]models.AttendanceRecord, error)
}

type activeAssignmentReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.StudentAssignmentDetail, error)
}

type schoolCalendar interface {
	Calendar(ctx context.Context, from, to schoolcal.Date) (*schoolcal.Calendar, error)
	Today() schoolcal.Date
}

// AttendanceService records attendance and enforces the calendar rules:
// no future dates, active school days only, and teachers only for their
// assigned students.
type AttendanceService struct {
	repo        attendanceRepository
	assignments activeAssignmentReader
	calendar    schoolCalendar
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceRepository, assignments activeAssignmentReader, calendar schoolCalendar, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{repo: repo, assignments: assignments, calendar: calendar, cache: cache, validator: validate, logger: logger}
	registerCalendarValidations(svc.validator)
	_ = svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAttendanceStatus(fl.Field().String())
		return ok
	})
	_ = svc.validator.RegisterValidation("bulk_mode", func(fl validator.FieldLevel) bool {
		mode := models.BulkOperationMode(fl.Field().String())
		return mode == models.BulkModeAtomic || mode == models.BulkModePartialOnError
	})
	return svc
}

// AttendanceListRequest filters attendance listings.
type AttendanceListRequest struct {
	StudentID string
	TeacherID string
	Status    string
	DateFrom  string
	DateTo    string
	Page      int
	PageSize  int
	SortOrder string
}

// RecordAttendanceRequest stores one student's attendance for one date.
type RecordAttendanceRequest struct {
	StudentID string  `json:"student_id" validate:"required"`
	Date      string  `json:"date" validate:"required,isodate"`
	Status    string  `json:"status" validate:"required,attendance_status"`
	Note      *string `json:"note" validate:"omitempty,max=500"`
}

// ImportAttendanceRequest is the bulk import payload.
type ImportAttendanceRequest struct {
	Mode string                    `json:"mode" validate:"required,bulk_mode"`
	Rows []RecordAttendanceRequest `json:"rows" validate:"required,min=1"`
}

// ImportAttendanceResult summarises an import.
type ImportAttendanceResult struct {
	Processed int                                `json:"processed"`
	Inserted  int                                `json:"inserted"`
	Rejected  []models.AttendanceImportRejection `json:"rejected"`
}

// List returns attendance records. Teachers are scoped to their students.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest, claims *models.JWTClaims) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	filter := models.AttendanceFilter{
		StudentID: req.StudentID,
		TeacherID: req.TeacherID,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	}
	if !claims.IsAdmin() {
		teacherID := claims.ActingTeacherID()
		if teacherID == "" {
			return nil, nil, appErrors.ErrForbidden
		}
		filter.TeacherID = teacherID
	}
	if req.Status != "" {
		status, ok := models.ParseAttendanceStatus(req.Status)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown attendance status")
		}
		filter.Status = &status
	}
	if req.DateFrom != "" {
		from, err := schoolcal.ParseDate(req.DateFrom)
		if err != nil {
			return nil, nil, err
		}
		filter.DateFrom = &from
	}
	if req.DateTo != "" {
		to, err := schoolcal.ParseDate(req.DateTo)
		if err != nil {
			return nil, nil, err
		}
		filter.DateTo = &to
	}

	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Record validates and stores a single attendance entry, overwriting any
// existing entry for the same student and date.
func (s *AttendanceService) Record(ctx context.Context, req RecordAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecord, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		if date := strings.TrimSpace(req.Date); date != "" {
			if _, perr := schoolcal.ParseDate(date); perr != nil {
				return nil, perr
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, _ := schoolcal.ParseDate(req.Date)

	cal, err := s.calendar.Calendar(ctx, date, date)
	if err != nil {
		return nil, err
	}
	check := newRowChecker(s, cal, claims)
	record, rejection := check.build(ctx, req)
	if rejection != nil {
		return nil, rejection
	}

	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	s.logger.Debug("attendance recorded",
		zap.String("student_id", stored.StudentID),
		zap.String("date", stored.Date.String()),
		zap.String("status", string(stored.Status)),
	)
	s.cache.Invalidate(ctx, completenessCachePattern)
	return stored, nil
}

// Import stores many rows. In atomic mode the first invalid or duplicate
// row aborts the import; in partialOnError mode such rows are reported and
// the rest are stored. Existing records are never overwritten.
func (s *AttendanceService) Import(ctx context.Context, req ImportAttendanceRequest, claims *models.JWTClaims) (*ImportAttendanceResult, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid import payload")
	}
	if len(req.Rows) > maxImportRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import is limited to %d rows", maxImportRows))
	}
	atomic := models.BulkOperationMode(req.Mode) == models.BulkModeAtomic
	result := &ImportAttendanceResult{Processed: len(req.Rows), Rejected: []models.AttendanceImportRejection{}}

	from, to, ok := importSpan(req.Rows)
	var cal *schoolcal.Calendar
	if ok {
		var err error
		if cal, err = s.calendar.Calendar(ctx, from, to); err != nil {
			return nil, err
		}
	}

	check := newRowChecker(s, cal, claims)
	records := make([]models.AttendanceRecord, 0, len(req.Rows))
	rowOf := make(map[string]int, len(req.Rows))
	for i, row := range req.Rows {
		rowNumber := i + 1
		reject := func(err error) {
			result.Rejected = append(result.Rejected, models.AttendanceImportRejection{
				Row:       rowNumber,
				StudentID: row.StudentID,
				Date:      row.Date,
				Reason:    appErrors.FromError(err).Message,
			})
		}

		if err := s.validator.Struct(row); err != nil {
			if atomic {
				return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("row %d is invalid", rowNumber))
			}
			reject(appErrors.Clone(appErrors.ErrValidation, "invalid row: "+err.Error()))
			continue
		}
		record, rejection := check.build(ctx, row)
		if rejection == nil {
			key := completeness.Key(record.StudentID, record.Date)
			if first, dup := rowOf[key]; dup {
				rejection = appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate of row %d", first))
			} else {
				rowOf[key] = rowNumber
			}
		}
		if rejection != nil {
			if atomic {
				return nil, appErrors.Clone(rejection, fmt.Sprintf("row %d: %s", rowNumber, rejection.Message))
			}
			reject(rejection)
			continue
		}
		records = append(records, *record)
	}

	conflicts, err := s.repo.BulkInsert(ctx, records, atomic)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateAttendance) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "attendance already recorded")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import attendance")
	}
	for _, conflict := range conflicts {
		key := completeness.Key(conflict.StudentID, conflict.Date)
		result.Rejected = append(result.Rejected, models.AttendanceImportRejection{
			Row:       rowOf[key],
			StudentID: conflict.StudentID,
			Date:      conflict.Date.String(),
			Reason:    "attendance already recorded",
		})
	}
	result.Inserted = len(records) - len(conflicts)

	s.logger.Info("attendance imported",
		zap.String("mode", req.Mode),
		zap.Int("processed", result.Processed),
		zap.Int("inserted", result.Inserted),
		zap.Int("rejected", len(result.Rejected)),
	)
	if result.Inserted > 0 {
		s.cache.Invalidate(ctx, completenessCachePattern)
	}
	return result, nil
}

// importSpan returns the earliest and latest parseable date of the rows.
func importSpan(rows []RecordAttendanceRequest) (schoolcal.Date, schoolcal.Date, bool) {
	var from, to schoolcal.Date
	found := false
	for _, row := range rows {
		date, err := schoolcal.ParseDate(strings.TrimSpace(row.Date))
		if err != nil {
			continue
		}
		if !found || date.Before(from) {
			from = date
		}
		if !found || date.After(to) {
			to = date
		}
		found = true
	}
	return from, to, found
}

// rowChecker applies the per-entry rules and memoises assignment lookups
// across the rows of one request.
type rowChecker struct {
	svc      *AttendanceService
	calendar *schoolcal.Calendar
	claims   *models.JWTClaims
	today    schoolcal.Date
	assigned map[string]*models.StudentAssignmentDetail
}

func newRowChecker(svc *AttendanceService, cal *schoolcal.Calendar, claims *models.JWTClaims) *rowChecker {
	return &rowChecker{
		svc:      svc,
		calendar: cal,
		claims:   claims,
		today:    svc.calendar.Today(),
		assigned: make(map[string]*models.StudentAssignmentDetail),
	}
}

func (c *rowChecker) build(ctx context.Context, req RecordAttendanceRequest) (*models.AttendanceRecord, *appErrors.Error) {
	date, err := schoolcal.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	status, ok := models.ParseAttendanceStatus(req.Status)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown attendance status %q", req.Status))
	}
	if date.After(c.today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is in the future", date))
	}
	if day := c.calendar.Classify(date); !day.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not an active school day (%s)", date, strings.ToLower(string(day.Reason))))
	}

	assignment, err := c.assignment(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if !c.claims.IsAdmin() && assignment.TeacherID != c.claims.ActingTeacherID() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not assigned to you")
	}

	return &models.AttendanceRecord{
		StudentID:  req.StudentID,
		TeacherID:  assignment.TeacherID,
		Date:       date,
		Status:     status,
		Note:       req.Note,
		RecordedBy: c.claims.UserID,
	}, nil
}

func (c *rowChecker) assignment(ctx context.Context, studentID string) (*models.StudentAssignmentDetail, error) {
	if cached, ok := c.assigned[studentID]; ok {
		if cached == nil {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no active teacher assignment")
		}
		return cached, nil
	}
	assignment, err := c.svc.assignments.FindActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.assigned[studentID] = nil
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student has no active teacher assignment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	c.assigned[studentID] = assignment
	return assignment, nil
}
