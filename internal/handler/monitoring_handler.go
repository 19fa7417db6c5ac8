package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type monitoringService interface {
	Completeness(ctx context.Context, req service.CompletenessRequest, claims *models.JWTClaims) (*service.CompletenessReport, bool, error)
}

// MonitoringHandler serves attendance completeness reports.
type MonitoringHandler struct {
	service monitoringService
}

// NewMonitoringHandler constructs the handler.
func NewMonitoringHandler(service monitoringService) *MonitoringHandler {
	return &MonitoringHandler{service: service}
}

// Completeness godoc
// @Summary Missing attendance entries grouped by teacher
// @Tags Monitoring
// @Produce json
// @Param month query string false "Month (YYYY-MM), defaults to the current month"
// @Param from query string false "Start date (YYYY-MM-DD), requires to"
// @Param to query string false "End date (YYYY-MM-DD), requires from"
// @Param teacherId query string false "Restrict to one teacher"
// @Success 200 {object} response.Envelope
// @Router /monitoring/completeness [get]
func (h *MonitoringHandler) Completeness(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.CompletenessRequest{
		Month:     c.Query("month"),
		From:      c.Query("from"),
		To:        c.Query("to"),
		TeacherID: pickQuery(c, "teacherId", "teacher_id"),
	}
	report, hit, err := h.service.Completeness(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}
