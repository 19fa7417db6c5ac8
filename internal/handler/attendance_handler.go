package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, req service.AttendanceListRequest, claims *models.JWTClaims) ([]models.AttendanceRecordDetail, *models.Pagination, error)
	Record(ctx context.Context, req service.RecordAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceRecord, error)
	Import(ctx context.Context, req service.ImportAttendanceRequest, claims *models.JWTClaims) (*service.ImportAttendanceResult, error)
}

// AttendanceHandler records and lists daily attendance.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param student_id query string false "Student ID"
// @Param teacher_id query string false "Teacher ID (admins only)"
// @Param status query string false "PRESENT, SICK, PERMITTED or ABSENT"
// @Param date_from query string false "Start date (YYYY-MM-DD)"
// @Param date_to query string false "End date (YYYY-MM-DD)"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	req := service.AttendanceListRequest{
		StudentID: pickQuery(c, "student_id", "studentId"),
		TeacherID: pickQuery(c, "teacher_id", "teacherId"),
		Status:    c.Query("status"),
		DateFrom:  pickQuery(c, "date_from", "from"),
		DateTo:    pickQuery(c, "date_to", "to"),
		SortOrder: c.Query("order"),
		Page:      page,
		PageSize:  size,
	}
	rows, pagination, err := h.service.List(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}

// Record godoc
// @Summary Record one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.RecordAttendanceRequest true "Attendance"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RecordAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	record, err := h.service.Record(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Import godoc
// @Summary Bulk import attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.ImportAttendanceRequest true "Rows and mode (atomic or partialOnError)"
// @Success 200 {object} response.Envelope
// @Router /attendance/import [post]
func (h *AttendanceHandler) Import(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ImportAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	result, err := h.service.Import(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
