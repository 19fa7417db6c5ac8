package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/completeness"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// completenessCachePattern matches every cached completeness report.
const completenessCachePattern = "report:*"

type rosterRepository interface {
	ListActive(ctx context.Context, teacherID string) ([]models.StudentAssignmentDetail, error)
}

type attendanceKeyRepository interface {
	ListKeys(ctx context.Context, from, to schoolcal.Date, studentIDs []string) ([]completeness.RecordKey, error)
}

// MonitoringService reports which attendance entries are still missing.
type MonitoringService struct {
	calendar schoolCalendar
	roster   rosterRepository
	records  attendanceKeyRepository
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewMonitoringService constructs the service.
func NewMonitoringService(calendar schoolCalendar, roster rosterRepository, records attendanceKeyRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *MonitoringService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MonitoringService{
		calendar: calendar,
		roster:   roster,
		records:  records,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
	}
}

// CompletenessRequest selects the evaluated range: either Month (YYYY-MM) or
// From and To (YYYY-MM-DD).
type CompletenessRequest struct {
	Month     string
	From      string
	To        string
	TeacherID string
}

// CompletenessReport is the API view of a completeness evaluation.
type CompletenessReport struct {
	Month          string               `json:"month,omitempty"`
	From           schoolcal.Date       `json:"from"`
	To             schoolcal.Date       `json:"to"`
	EffectiveEnd   schoolcal.Date       `json:"effective_end"`
	TeacherID      string               `json:"teacher_id,omitempty"`
	ActiveDays     int                  `json:"active_days"`
	Expected       int                  `json:"expected"`
	Recorded       int                  `json:"recorded"`
	Missing        int                  `json:"missing"`
	CompletionRate float64              `json:"completion_rate"`
	Groups         []completeness.Group `json:"groups"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

type completenessScope struct {
	month     string
	from      schoolcal.Date
	to        schoolcal.Date
	end       schoolcal.Date
	teacherID string
}

func (s completenessScope) cacheKey() string {
	teacher := s.teacherID
	if teacher == "" {
		teacher = "all"
	}
	return fmt.Sprintf("report:%s:%s:%s:%s", s.from, s.to, s.end, teacher)
}

// CurrentMonth returns the month containing today in the school timezone.
func (s *MonitoringService) CurrentMonth() schoolcal.Month {
	return schoolcal.MonthOf(s.calendar.Today())
}

// Completeness evaluates the requested range. The end of the range is
// clamped to today; a range entirely in the future yields an empty report.
// Teachers always receive their own group only. The boolean reports a
// cache hit.
func (s *MonitoringService) Completeness(ctx context.Context, req CompletenessRequest, claims *models.JWTClaims) (*CompletenessReport, bool, error) {
	scope, err := s.resolve(req, claims)
	if err != nil {
		return nil, false, err
	}

	var cached CompletenessReport
	if s.cache.Get(ctx, scope.cacheKey(), &cached) {
		return &cached, true, nil
	}

	report, err := s.evaluate(ctx, scope)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(ctx, scope.cacheKey(), report, s.ttl)
	return report, false, nil
}

// Warm recomputes the whole-school report of month and stores it in cache.
func (s *MonitoringService) Warm(ctx context.Context, month schoolcal.Month) (*CompletenessReport, error) {
	scope := completenessScope{
		month: month.String(),
		from:  month.Start(),
		to:    month.End(),
		end:   schoolcal.EffectiveEndDate(month.Start(), month.End(), s.calendar.Today()),
	}
	report, err := s.evaluate(ctx, scope)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, scope.cacheKey(), report, s.ttl)
	return report, nil
}

func (s *MonitoringService) resolve(req CompletenessRequest, claims *models.JWTClaims) (completenessScope, error) {
	var scope completenessScope
	if claims == nil {
		return scope, appErrors.ErrUnauthorized
	}

	switch {
	case req.Month != "" && (req.From != "" || req.To != ""):
		return scope, appErrors.Clone(appErrors.ErrValidation, "use either month or from/to, not both")
	case req.Month != "":
		month, err := schoolcal.ParseMonth(req.Month)
		if err != nil {
			return scope, err
		}
		scope.month = month.String()
		scope.from, scope.to = month.Start(), month.End()
	case req.From != "" && req.To != "":
		from, err := schoolcal.ParseDate(req.From)
		if err != nil {
			return scope, err
		}
		to, err := schoolcal.ParseDate(req.To)
		if err != nil {
			return scope, err
		}
		if err := checkSpan(from, to); err != nil {
			return scope, err
		}
		scope.from, scope.to = from, to
	case req.From != "" || req.To != "":
		return scope, appErrors.Clone(appErrors.ErrValidation, "from and to must be given together")
	default:
		month := s.CurrentMonth()
		scope.month = month.String()
		scope.from, scope.to = month.Start(), month.End()
	}
	scope.end = schoolcal.EffectiveEndDate(scope.from, scope.to, s.calendar.Today())

	if claims.IsAdmin() {
		scope.teacherID = req.TeacherID
		return scope, nil
	}
	own := claims.ActingTeacherID()
	if own == "" || (req.TeacherID != "" && req.TeacherID != own) {
		return scope, appErrors.Clone(appErrors.ErrForbidden, "teachers can only monitor their own students")
	}
	scope.teacherID = own
	return scope, nil
}

func (s *MonitoringService) evaluate(ctx context.Context, scope completenessScope) (*CompletenessReport, error) {
	started := time.Now()
	report := &CompletenessReport{
		Month:        scope.month,
		From:         scope.from,
		To:           scope.to,
		EffectiveEnd: scope.end,
		TeacherID:    scope.teacherID,
		GeneratedAt:  s.now().UTC(),
	}

	var result completeness.Report
	if scope.end.Before(scope.from) {
		result = completeness.FindMissing(nil, nil, nil)
	} else {
		cal, err := s.calendar.Calendar(ctx, scope.from, scope.end)
		if err != nil {
			return nil, err
		}
		days := cal.ActiveDaysInRange(scope.from, scope.end)

		queryStart := time.Now()
		rows, err := s.roster.ListActive(ctx, scope.teacherID)
		s.metrics.ObserveDBQuery("assignments_active", time.Since(queryStart))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
		}
		assignments := make([]completeness.Assignment, 0, len(rows))
		studentIDs := make([]string, 0, len(rows))
		for _, row := range rows {
			assignments = append(assignments, row.Roster())
			studentIDs = append(studentIDs, row.StudentID)
		}

		var keys []completeness.RecordKey
		if len(days) > 0 && len(assignments) > 0 {
			var filter []string
			if scope.teacherID != "" {
				filter = studentIDs
			}
			queryStart = time.Now()
			keys, err = s.records.ListKeys(ctx, scope.from, scope.end, filter)
			s.metrics.ObserveDBQuery("attendance_keys", time.Since(queryStart))
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
			}
		}
		result = completeness.FindMissing(days, assignments, keys)
		report.ActiveDays = len(days)
	}

	report.Groups = result.Groups
	report.Expected = result.Expected
	report.Missing = result.Missing
	report.Recorded = result.Recorded()
	report.CompletionRate = result.CompletionRate()

	elapsed := time.Since(started)
	s.metrics.ObserveCompleteness(scope.month, report.Missing, scope.teacherID == "", elapsed)
	s.logger.Debug("completeness evaluated",
		zap.String("from", scope.from.String()),
		zap.String("to", scope.end.String()),
		zap.String("teacher_id", scope.teacherID),
		zap.Int("missing", report.Missing),
		zap.Duration("elapsed", elapsed),
	)
	return report, nil
}
