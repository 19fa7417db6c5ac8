package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// maxActiveDaysSpan bounds ad-hoc date ranges.
const maxActiveDaysSpan = 366

// checkSpan rejects ranges longer than maxActiveDaysSpan. Reversed ranges
// pass; callers treat them as empty.
func checkSpan(from, to schoolcal.Date) error {
	if !from.After(to) && to.Time().Sub(from.Time()) > maxActiveDaysSpan*24*time.Hour {
		return appErrors.Clone(appErrors.ErrValidation, "range must not exceed 366 days")
	}
	return nil
}

type calendarRepository interface {
	ListHolidaysInRange(ctx context.Context, from, to schoolcal.Date) ([]models.Holiday, error)
	ListHolidays(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, int, error)
	GetHolidayByDate(ctx context.Context, date schoolcal.Date) (*models.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *models.Holiday) error
	DeleteHoliday(ctx context.Context, date schoolcal.Date) error
	GetSettings(ctx context.Context) (*models.SchoolSettings, error)
	UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error
}

// CalendarService exposes the school calendar backed by the holiday table
// and the school settings row.
type CalendarService struct {
	repo      calendarRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  schoolcal.Config
	location  *time.Location
	now       func() time.Time
}

// NewCalendarService constructs the service. defaults applies until an
// administrator stores school settings.
func NewCalendarService(repo calendarRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger, defaults schoolcal.Config, location *time.Location) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	registerCalendarValidations(validate)
	return &CalendarService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
		location:  location,
		now:       time.Now,
	}
}

func registerCalendarValidations(validate *validator.Validate) {
	_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := schoolcal.ParseDate(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("holiday_kind", func(fl validator.FieldLevel) bool {
		_, ok := schoolcal.ParseHolidayKind(fl.Field().String())
		return ok
	})
}

// CalendarConfigResponse describes the effective calendar configuration.
type CalendarConfigResponse struct {
	SchoolDaysPerWeek int        `json:"school_days_per_week"`
	Timezone          string     `json:"timezone"`
	Today             string     `json:"today"`
	UpdatedBy         *string    `json:"updated_by,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

// UpdateCalendarConfigRequest changes the school week.
type UpdateCalendarConfigRequest struct {
	SchoolDaysPerWeek int `json:"school_days_per_week"`
}

// CreateHolidayRequest adds a date to the holiday table.
type CreateHolidayRequest struct {
	Date string  `json:"date" validate:"required,isodate"`
	Kind string  `json:"kind" validate:"required,holiday_kind"`
	Note *string `json:"note" validate:"omitempty,max=255"`
}

// HolidayListRequest filters holiday listings.
type HolidayListRequest struct {
	From     string
	To       string
	Kind     string
	Page     int
	PageSize int
}

// ActiveDaysResult lists the active school days of a range.
type ActiveDaysResult struct {
	From              schoolcal.Date   `json:"from"`
	To                schoolcal.Date   `json:"to"`
	SchoolDaysPerWeek int              `json:"school_days_per_week"`
	Count             int              `json:"count"`
	Days              []schoolcal.Date `json:"days"`
}

// Today returns the current date in the school timezone.
func (s *CalendarService) Today() schoolcal.Date {
	return schoolcal.Today(s.location, s.now())
}

// Location returns the school timezone.
func (s *CalendarService) Location() *time.Location {
	return s.location
}

// Config returns the stored school week, or the configured default when
// none is stored. A stored value outside {5, 6} is reported as invalid
// configuration rather than silently corrected.
func (s *CalendarService) Config(ctx context.Context) (schoolcal.Config, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.defaults, s.defaults.Validate()
		}
		return schoolcal.Config{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school settings")
	}
	cfg := settings.CalendarConfig()
	if err := cfg.Validate(); err != nil {
		return schoolcal.Config{}, err
	}
	return cfg, nil
}

// GetConfig describes the effective configuration for the API.
func (s *CalendarService) GetConfig(ctx context.Context) (*CalendarConfigResponse, error) {
	resp := &CalendarConfigResponse{Timezone: s.location.String(), Today: s.Today().String()}
	settings, err := s.repo.GetSettings(ctx)
	switch {
	case err == nil:
		if err := settings.CalendarConfig().Validate(); err != nil {
			return nil, err
		}
		resp.SchoolDaysPerWeek = settings.SchoolDaysPerWeek
		resp.UpdatedBy = settings.UpdatedBy
		updatedAt := settings.UpdatedAt
		resp.UpdatedAt = &updatedAt
	case errors.Is(err, sql.ErrNoRows):
		resp.SchoolDaysPerWeek = s.defaults.SchoolDaysPerWeek
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school settings")
	}
	return resp, nil
}

// UpdateConfig stores a new school week.
func (s *CalendarService) UpdateConfig(ctx context.Context, req UpdateCalendarConfigRequest, actorID string) (*CalendarConfigResponse, error) {
	if _, err := schoolcal.NewConfig(req.SchoolDaysPerWeek); err != nil {
		return nil, err
	}
	actor := actorID
	settings := &models.SchoolSettings{SchoolDaysPerWeek: req.SchoolDaysPerWeek, UpdatedBy: &actor}
	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store school settings")
	}
	s.logger.Info("school week updated", zap.Int("school_days_per_week", req.SchoolDaysPerWeek), zap.String("actor", actorID))
	s.cache.Invalidate(ctx, completenessCachePattern)

	updatedAt := settings.UpdatedAt
	return &CalendarConfigResponse{
		SchoolDaysPerWeek: settings.SchoolDaysPerWeek,
		Timezone:          s.location.String(),
		Today:             s.Today().String(),
		UpdatedBy:         settings.UpdatedBy,
		UpdatedAt:         &updatedAt,
	}, nil
}

// Calendar builds a calendar holding the holidays of [from, to].
func (s *CalendarService) Calendar(ctx context.Context, from, to schoolcal.Date) (*schoolcal.Calendar, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	holidays := schoolcal.HolidaySet{}
	if !from.After(to) {
		rows, err := s.repo.ListHolidaysInRange(ctx, from, to)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
		}
		holidays = models.HolidaySet(rows)
	}
	return schoolcal.New(cfg, holidays)
}

// ActiveDays lists the active school days between two YYYY-MM-DD dates.
func (s *CalendarService) ActiveDays(ctx context.Context, fromRaw, toRaw string) (*ActiveDaysResult, error) {
	from, err := schoolcal.ParseDate(fromRaw)
	if err != nil {
		return nil, err
	}
	to, err := schoolcal.ParseDate(toRaw)
	if err != nil {
		return nil, err
	}
	if err := checkSpan(from, to); err != nil {
		return nil, err
	}
	cal, err := s.Calendar(ctx, from, to)
	if err != nil {
		return nil, err
	}
	days := cal.ActiveDaysInRange(from, to)
	return &ActiveDaysResult{
		From:              from,
		To:                to,
		SchoolDaysPerWeek: cal.Config().SchoolDaysPerWeek,
		Count:             len(days),
		Days:              days,
	}, nil
}

// CheckDate classifies a single date.
func (s *CalendarService) CheckDate(ctx context.Context, raw string) (*schoolcal.DayStatus, error) {
	date, err := schoolcal.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	cal, err := s.Calendar(ctx, date, date)
	if err != nil {
		return nil, err
	}
	status := cal.Classify(date)
	return &status, nil
}

// ListHolidays returns a page of holidays.
func (s *CalendarService) ListHolidays(ctx context.Context, req HolidayListRequest) ([]models.Holiday, *models.Pagination, error) {
	filter := models.HolidayFilter{Page: req.Page, PageSize: req.PageSize}
	if req.From != "" {
		from, err := schoolcal.ParseDate(req.From)
		if err != nil {
			return nil, nil, err
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := schoolcal.ParseDate(req.To)
		if err != nil {
			return nil, nil, err
		}
		filter.To = &to
	}
	if req.Kind != "" {
		kind, ok := schoolcal.ParseHolidayKind(req.Kind)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown holiday kind")
		}
		filter.Kind = kind
	}
	holidays, total, err := s.repo.ListHolidays(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	return holidays, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// CreateHoliday adds a holiday; a second holiday on the same date conflicts.
func (s *CalendarService) CreateHoliday(ctx context.Context, req CreateHolidayRequest, actorID string) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	date, err := schoolcal.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}
	kind, _ := schoolcal.ParseHolidayKind(req.Kind)

	if _, err := s.repo.GetHolidayByDate(ctx, date); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a holiday already exists on "+date.String())
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check holiday")
	}

	holiday := &models.Holiday{Date: date, Kind: kind, Note: req.Note, CreatedBy: actorID}
	if err := s.repo.CreateHoliday(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.logger.Info("holiday created", zap.String("date", date.String()), zap.String("kind", string(kind)), zap.String("actor", actorID))
	s.cache.Invalidate(ctx, completenessCachePattern)
	return holiday, nil
}

// DeleteHoliday removes the holiday on the given date.
func (s *CalendarService) DeleteHoliday(ctx context.Context, raw string, actorID string) error {
	date, err := schoolcal.ParseDate(raw)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteHoliday(ctx, date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete holiday")
	}
	s.logger.Info("holiday deleted", zap.String("date", date.String()), zap.String("actor", actorID))
	s.cache.Invalidate(ctx, completenessCachePattern)
	return nil
}
