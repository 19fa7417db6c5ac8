package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

type calendarRepoStub struct {
	holidays map[schoolcal.Date]models.Holiday
	settings *models.SchoolSettings
	rangeErr error
}

func newCalendarRepoStub(holidays ...string) *calendarRepoStub {
	stub := &calendarRepoStub{holidays: map[schoolcal.Date]models.Holiday{}}
	for _, raw := range holidays {
		date := schoolcal.MustParseDate(raw)
		stub.holidays[date] = models.Holiday{ID: "h-" + raw, Date: date, Kind: schoolcal.HolidayNational}
	}
	return stub
}

func (s *calendarRepoStub) ListHolidaysInRange(ctx context.Context, from, to schoolcal.Date) ([]models.Holiday, error) {
	if s.rangeErr != nil {
		return nil, s.rangeErr
	}
	var out []models.Holiday
	for date, holiday := range s.holidays {
		if !date.Before(from) && !date.After(to) {
			out = append(out, holiday)
		}
	}
	return out, nil
}

func (s *calendarRepoStub) ListHolidays(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, int, error) {
	out := make([]models.Holiday, 0, len(s.holidays))
	for _, holiday := range s.holidays {
		out = append(out, holiday)
	}
	return out, len(out), nil
}

func (s *calendarRepoStub) GetHolidayByDate(ctx context.Context, date schoolcal.Date) (*models.Holiday, error) {
	if holiday, ok := s.holidays[date]; ok {
		return &holiday, nil
	}
	return nil, sql.ErrNoRows
}

func (s *calendarRepoStub) CreateHoliday(ctx context.Context, holiday *models.Holiday) error {
	holiday.ID = "h-new"
	s.holidays[holiday.Date] = *holiday
	return nil
}

func (s *calendarRepoStub) DeleteHoliday(ctx context.Context, date schoolcal.Date) error {
	if _, ok := s.holidays[date]; !ok {
		return sql.ErrNoRows
	}
	delete(s.holidays, date)
	return nil
}

func (s *calendarRepoStub) GetSettings(ctx context.Context) (*models.SchoolSettings, error) {
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	cp := *s.settings
	return &cp, nil
}

func (s *calendarRepoStub) UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	cp := *settings
	s.settings = &cp
	return nil
}

func newTestCalendarService(repo calendarRepository, days int) *CalendarService {
	loc, _ := time.LoadLocation("Asia/Jakarta")
	svc := NewCalendarService(repo, nil, nil, zap.NewNop(), schoolcal.Config{SchoolDaysPerWeek: days}, loc)
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, loc) }
	return svc
}

func TestCalendarServiceConfigFallsBackToDefault(t *testing.T) {
	svc := newTestCalendarService(newCalendarRepoStub(), schoolcal.SixDayWeek)

	cfg, err := svc.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schoolcal.SixDayWeek, cfg.SchoolDaysPerWeek)

	resp, err := svc.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", resp.Timezone)
	assert.Equal(t, "2025-01-15", resp.Today)
	assert.Nil(t, resp.UpdatedAt)
}

func TestCalendarServiceRejectsCorruptStoredConfig(t *testing.T) {
	repo := newCalendarRepoStub()
	repo.settings = &models.SchoolSettings{SchoolDaysPerWeek: 4}
	svc := newTestCalendarService(repo, schoolcal.SixDayWeek)

	_, err := svc.ActiveDays(context.Background(), "2025-01-01", "2025-01-31")
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInvalidConfiguration)
}

func TestCalendarServiceUpdateConfig(t *testing.T) {
	repo := newCalendarRepoStub()
	svc := newTestCalendarService(repo, schoolcal.SixDayWeek)

	_, err := svc.UpdateConfig(context.Background(), UpdateCalendarConfigRequest{SchoolDaysPerWeek: 7}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidConfiguration)
	assert.Nil(t, repo.settings)

	resp, err := svc.UpdateConfig(context.Background(), UpdateCalendarConfigRequest{SchoolDaysPerWeek: 5}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 5, resp.SchoolDaysPerWeek)
	require.NotNil(t, resp.UpdatedBy)
	assert.Equal(t, "admin-1", *resp.UpdatedBy)

	cfg, err := svc.Config(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schoolcal.FiveDayWeek, cfg.SchoolDaysPerWeek)
}

func TestCalendarServiceActiveDays(t *testing.T) {
	repo := newCalendarRepoStub("2025-01-01", "2025-01-27")

	five := newTestCalendarService(repo, schoolcal.FiveDayWeek)
	result, err := five.ActiveDays(context.Background(), "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, 21, result.Count)
	assert.Equal(t, "2025-01-02", result.Days[0].String())

	six := newTestCalendarService(repo, schoolcal.SixDayWeek)
	result, err = six.ActiveDays(context.Background(), "2025-01-01", "2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, 25, result.Count)
	assert.Equal(t, schoolcal.SixDayWeek, result.SchoolDaysPerWeek)
}

func TestCalendarServiceActiveDaysEdgeCases(t *testing.T) {
	svc := newTestCalendarService(newCalendarRepoStub(), schoolcal.SixDayWeek)

	result, err := svc.ActiveDays(context.Background(), "2025-01-31", "2025-01-01")
	require.NoError(t, err)
	assert.Zero(t, result.Count)
	assert.NotNil(t, result.Days)

	_, err = svc.ActiveDays(context.Background(), "2025-13-01", "2025-01-31")
	assert.ErrorIs(t, err, appErrors.ErrInvalidDate)

	_, err = svc.ActiveDays(context.Background(), "2024-01-01", "2025-06-30")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCalendarServiceCheckDate(t *testing.T) {
	svc := newTestCalendarService(newCalendarRepoStub("2025-01-27"), schoolcal.FiveDayWeek)

	cases := map[string]struct {
		active bool
		reason schoolcal.Reason
	}{
		"2025-01-04": {false, schoolcal.ReasonSaturday},
		"2025-01-05": {false, schoolcal.ReasonSunday},
		"2025-01-27": {false, schoolcal.ReasonHoliday},
		"2025-01-28": {true, ""},
	}
	for raw, want := range cases {
		status, err := svc.CheckDate(context.Background(), raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want.active, status.Active, raw)
		assert.Equal(t, want.reason, status.Reason, raw)
	}
}

func TestCalendarServiceHolidayLifecycle(t *testing.T) {
	repo := newCalendarRepoStub("2025-01-01")
	svc := newTestCalendarService(repo, schoolcal.SixDayWeek)
	ctx := context.Background()

	_, err := svc.CreateHoliday(ctx, CreateHolidayRequest{Date: "2025-01-01", Kind: "NATIONAL"}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.CreateHoliday(ctx, CreateHolidayRequest{Date: "2025-02-30", Kind: "SCHOOL"}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.CreateHoliday(ctx, CreateHolidayRequest{Date: "2025-03-31", Kind: "HARVEST"}, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	note := "Idul Fitri"
	holiday, err := svc.CreateHoliday(ctx, CreateHolidayRequest{Date: "2025-03-31", Kind: "collective_leave", Note: &note}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, schoolcal.HolidayCollectiveLeave, holiday.Kind)
	assert.Equal(t, "admin-1", holiday.CreatedBy)

	require.NoError(t, svc.DeleteHoliday(ctx, "2025-03-31", "admin-1"))
	assert.ErrorIs(t, svc.DeleteHoliday(ctx, "2025-03-31", "admin-1"), appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteHoliday(ctx, "31-03-2025", "admin-1"), appErrors.ErrInvalidDate)
}
