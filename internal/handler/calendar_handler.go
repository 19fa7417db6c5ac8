package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

type calendarService interface {
	GetConfig(ctx context.Context) (*service.CalendarConfigResponse, error)
	UpdateConfig(ctx context.Context, req service.UpdateCalendarConfigRequest, actorID string) (*service.CalendarConfigResponse, error)
	ActiveDays(ctx context.Context, fromRaw, toRaw string) (*service.ActiveDaysResult, error)
	CheckDate(ctx context.Context, raw string) (*schoolcal.DayStatus, error)
	ListHolidays(ctx context.Context, req service.HolidayListRequest) ([]models.Holiday, *models.Pagination, error)
	CreateHoliday(ctx context.Context, req service.CreateHolidayRequest, actorID string) (*models.Holiday, error)
	DeleteHoliday(ctx context.Context, raw string, actorID string) error
}

// CalendarHandler exposes the school calendar.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service}
}

// GetConfig godoc
// @Summary Effective calendar configuration
// @Tags Calendar
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /calendar/config [get]
func (h *CalendarHandler) GetConfig(c *gin.Context) {
	cfg, err := h.service.GetConfig(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// UpdateConfig godoc
// @Summary Change the number of school days per week
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.UpdateCalendarConfigRequest true "Calendar configuration"
// @Success 200 {object} response.Envelope
// @Router /calendar/config [put]
func (h *CalendarHandler) UpdateConfig(c *gin.Context) {
	var req service.UpdateCalendarConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	cfg, err := h.service.UpdateConfig(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// ListHolidays godoc
// @Summary List holidays
// @Tags Calendar
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param kind query string false "NATIONAL_HOLIDAY or SCHOOL_BREAK"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /calendar/holidays [get]
func (h *CalendarHandler) ListHolidays(c *gin.Context) {
	page, size := pageParams(c)
	req := service.HolidayListRequest{
		From:     c.Query("from"),
		To:       c.Query("to"),
		Kind:     c.Query("kind"),
		Page:     page,
		PageSize: size,
	}
	holidays, pagination, err := h.service.ListHolidays(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, holidays, pagination)
}

// CreateHoliday godoc
// @Summary Add a holiday
// @Tags Calendar
// @Accept json
// @Produce json
// @Param payload body service.CreateHolidayRequest true "Holiday"
// @Success 201 {object} response.Envelope
// @Router /calendar/holidays [post]
func (h *CalendarHandler) CreateHoliday(c *gin.Context) {
	var req service.CreateHolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	holiday, err := h.service.CreateHoliday(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, holiday)
}

// DeleteHoliday godoc
// @Summary Remove a holiday
// @Tags Calendar
// @Param date path string true "Holiday date (YYYY-MM-DD)"
// @Success 204
// @Router /calendar/holidays/{date} [delete]
func (h *CalendarHandler) DeleteHoliday(c *gin.Context) {
	if err := h.service.DeleteHoliday(c.Request.Context(), c.Param("date"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ActiveDays godoc
// @Summary Active school days of a range
// @Tags Calendar
// @Produce json
// @Param from query string true "Start date (YYYY-MM-DD)"
// @Param to query string true "End date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/active-days [get]
func (h *CalendarHandler) ActiveDays(c *gin.Context) {
	result, err := h.service.ActiveDays(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Check godoc
// @Summary Whether a date is an active school day
// @Tags Calendar
// @Produce json
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /calendar/check [get]
func (h *CalendarHandler) Check(c *gin.Context) {
	status, err := h.service.CheckDate(c.Request.Context(), c.Query("date"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
