package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type assignmentService interface {
	List(ctx context.Context, req service.AssignmentListRequest, claims *models.JWTClaims) ([]models.StudentAssignmentDetail, *models.Pagination, error)
	Assign(ctx context.Context, req service.AssignStudentRequest, actorID string) (*models.AssignmentChange, error)
	Unassign(ctx context.Context, studentID, actorID string) error
}

// AssignmentHandler manages student to teacher assignments.
type AssignmentHandler struct {
	service assignmentService
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service}
}

// List godoc
// @Summary List active assignments
// @Tags Assignments
// @Produce json
// @Param teacher_id query string false "Teacher ID (admins only)"
// @Param class_id query string false "Class ID"
// @Param search query string false "Search by student or teacher name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	req := service.AssignmentListRequest{
		TeacherID: pickQuery(c, "teacher_id", "teacherId"),
		ClassID:   pickQuery(c, "class_id", "classId"),
		Search:    strings.TrimSpace(c.Query("search")),
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

// Assign godoc
// @Summary Assign a student to a teacher
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body service.AssignStudentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req service.AssignStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	change, err := h.service.Assign(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, change)
}

// Unassign godoc
// @Summary End a student's active assignment
// @Tags Assignments
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /assignments/{studentId} [delete]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	if err := h.service.Unassign(c.Request.Context(), c.Param("studentId"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
