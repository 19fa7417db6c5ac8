package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.StudentAssignmentDetail, int, error)
	FindActiveByStudent(ctx context.Context, studentID string) (*models.StudentAssignmentDetail, error)
	Transfer(ctx context.Context, assignment *models.StudentAssignment) error
	EndActive(ctx context.Context, studentID string) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type teacherReader interface {
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
}

// AssignmentService manages which teacher records each student's attendance.
type AssignmentService struct {
	repo      assignmentRepository
	students  studentReader
	teachers  teacherReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, students studentReader, teachers teacherReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, students: students, teachers: teachers, cache: cache, validator: validate, logger: logger}
}

// AssignStudentRequest binds a student to a teacher.
type AssignStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	TeacherID string `json:"teacher_id" validate:"required"`
}

// AssignmentListRequest filters assignment listings.
type AssignmentListRequest struct {
	TeacherID string
	ClassID   string
	Search    string
	Page      int
	PageSize  int
}

// List returns active assignments. Teachers only see their own students.
func (s *AssignmentService) List(ctx context.Context, req AssignmentListRequest, claims *models.JWTClaims) ([]models.StudentAssignmentDetail, *models.Pagination, error) {
	filter := models.AssignmentFilter{
		TeacherID: req.TeacherID,
		ClassID:   req.ClassID,
		Search:    req.Search,
		Page:      req.Page,
		PageSize:  req.PageSize,
	}
	if !claims.IsAdmin() {
		teacherID := claims.ActingTeacherID()
		if teacherID == "" {
			return nil, nil, appErrors.ErrForbidden
		}
		filter.TeacherID = teacherID
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Assign makes teacherID responsible for the student. An existing
// assignment to another teacher is ended in the same transaction.
func (s *AssignmentService) Assign(ctx context.Context, req AssignStudentRequest, actorID string) (*models.AssignmentChange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is inactive")
	}
	teacher, err := s.teachers.FindByID(ctx, req.TeacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if !teacher.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher is inactive")
	}

	var previous *models.StudentAssignment
	current, err := s.repo.FindActiveByStudent(ctx, req.StudentID)
	switch {
	case err == nil:
		if current.TeacherID == req.TeacherID {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already assigned to this teacher")
		}
		prev := current.StudentAssignment
		previous = &prev
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current assignment")
	}

	assignment := &models.StudentAssignment{StudentID: req.StudentID, TeacherID: req.TeacherID, AssignedBy: actorID}
	if err := s.repo.Transfer(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
	}

	fields := []zap.Field{zap.String("student_id", req.StudentID), zap.String("teacher_id", req.TeacherID), zap.String("actor", actorID)}
	if previous != nil {
		fields = append(fields, zap.String("previous_teacher_id", previous.TeacherID))
	}
	s.logger.Info("student assigned", fields...)
	s.cache.Invalidate(ctx, completenessCachePattern)

	return &models.AssignmentChange{Assignment: assignment, Previous: previous, Transfer: previous != nil}, nil
}

// Unassign ends the student's active assignment.
func (s *AssignmentService) Unassign(ctx context.Context, studentID, actorID string) error {
	if studentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	if err := s.repo.EndActive(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student has no active assignment")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to end assignment")
	}
	s.logger.Info("student unassigned", zap.String("student_id", studentID), zap.String("actor", actorID))
	s.cache.Invalidate(ctx, completenessCachePattern)
	return nil
}
