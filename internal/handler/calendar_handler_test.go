package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

func newHandlerContext(method, target string, body interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, _ := json.Marshal(v)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

var (
	adminClaims   = &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	teacherClaims = &models.JWTClaims{UserID: "user-7", Role: models.RoleTeacher, TeacherID: "teacher-7"}
)

type calendarServiceMock struct {
	deletedDate  string
	deletedBy    string
	activeFrom   string
	activeTo     string
	createdReq   service.CreateHolidayRequest
	updatedDays  int
	holidayQuery service.HolidayListRequest
	err          error
}

func (m *calendarServiceMock) GetConfig(context.Context) (*service.CalendarConfigResponse, error) {
	return &service.CalendarConfigResponse{SchoolDaysPerWeek: 5, Timezone: "Asia/Jakarta", Today: "2025-01-15"}, m.err
}

func (m *calendarServiceMock) UpdateConfig(_ context.Context, req service.UpdateCalendarConfigRequest, _ string) (*service.CalendarConfigResponse, error) {
	m.updatedDays = req.SchoolDaysPerWeek
	if m.err != nil {
		return nil, m.err
	}
	return &service.CalendarConfigResponse{SchoolDaysPerWeek: req.SchoolDaysPerWeek}, nil
}

func (m *calendarServiceMock) ActiveDays(_ context.Context, from, to string) (*service.ActiveDaysResult, error) {
	m.activeFrom, m.activeTo = from, to
	if m.err != nil {
		return nil, m.err
	}
	day := schoolcal.MustParseDate(from)
	return &service.ActiveDaysResult{From: day, To: day, SchoolDaysPerWeek: 5, Count: 1, Days: []schoolcal.Date{day}}, nil
}

func (m *calendarServiceMock) CheckDate(_ context.Context, raw string) (*schoolcal.DayStatus, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &schoolcal.DayStatus{Date: schoolcal.MustParseDate(raw), Active: true}, nil
}

func (m *calendarServiceMock) ListHolidays(_ context.Context, req service.HolidayListRequest) ([]models.Holiday, *models.Pagination, error) {
	m.holidayQuery = req
	return []models.Holiday{}, &models.Pagination{Page: req.Page, PageSize: req.PageSize}, m.err
}

func (m *calendarServiceMock) CreateHoliday(_ context.Context, req service.CreateHolidayRequest, _ string) (*models.Holiday, error) {
	m.createdReq = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.Holiday{}, nil
}

func (m *calendarServiceMock) DeleteHoliday(_ context.Context, raw string, actor string) error {
	m.deletedDate, m.deletedBy = raw, actor
	return m.err
}

func TestCalendarHandlerActiveDays(t *testing.T) {
	mock := &calendarServiceMock{}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodGet, "/calendar/active-days?from=2025-01-06&to=2025-01-10", nil, adminClaims)

	h.ActiveDays(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2025-01-06", mock.activeFrom)
	assert.Equal(t, "2025-01-10", mock.activeTo)
	envelope := decodeEnvelope(t, w)
	assert.JSONEq(t, `{"from":"2025-01-06","to":"2025-01-06","school_days_per_week":5,"count":1,"days":["2025-01-06"]}`, string(envelope["data"]))
}

func TestCalendarHandlerMapsInvalidDate(t *testing.T) {
	mock := &calendarServiceMock{err: appErrors.Clone(appErrors.ErrInvalidDate, "invalid date \"2025-02-30\"")}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodGet, "/calendar/check?date=2025-02-30", nil, adminClaims)

	h.Check(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_DATE")
}

func TestCalendarHandlerUpdateConfig(t *testing.T) {
	mock := &calendarServiceMock{}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodPut, "/calendar/config", map[string]int{"school_days_per_week": 6}, adminClaims)

	h.UpdateConfig(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, mock.updatedDays)
}

func TestCalendarHandlerRejectsMalformedHoliday(t *testing.T) {
	h := NewCalendarHandler(&calendarServiceMock{})
	c, w := newHandlerContext(http.MethodPost, "/calendar/holidays", "{not json", adminClaims)

	h.CreateHoliday(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestCalendarHandlerCreateHoliday(t *testing.T) {
	mock := &calendarServiceMock{}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodPost, "/calendar/holidays", map[string]string{"date": "2025-01-27", "kind": "NATIONAL_HOLIDAY"}, adminClaims)

	h.CreateHoliday(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "2025-01-27", mock.createdReq.Date)
	assert.Equal(t, "NATIONAL_HOLIDAY", mock.createdReq.Kind)
}

func TestCalendarHandlerDeleteHoliday(t *testing.T) {
	mock := &calendarServiceMock{}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodDelete, "/calendar/holidays/2025-01-27", nil, adminClaims)
	c.Params = gin.Params{{Key: "date", Value: "2025-01-27"}}

	h.DeleteHoliday(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "2025-01-27", mock.deletedDate)
	assert.Equal(t, "admin-1", mock.deletedBy)
}

func TestCalendarHandlerListHolidaysPaging(t *testing.T) {
	mock := &calendarServiceMock{}
	h := NewCalendarHandler(mock)
	c, w := newHandlerContext(http.MethodGet, "/calendar/holidays?from=2025-01-01&to=2025-12-31&kind=SCHOOL_BREAK&page=2&page_size=5", nil, adminClaims)

	h.ListHolidays(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.HolidayListRequest{From: "2025-01-01", To: "2025-12-31", Kind: "SCHOOL_BREAK", Page: 2, PageSize: 5}, mock.holidayQuery)
}
