package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-attendance-api/api/swagger"
	"github.com/noah-isme/sma-attendance-api/internal/app"
	"github.com/noah-isme/sma-attendance-api/internal/handler"
	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, c *app.Container) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(c.Metrics))

	checks := map[string]handler.Pinger{"postgres": c.DB}
	if c.Cache.Enabled() {
		checks["redis"] = handler.PingFunc(c.Cache.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(c.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	calendarHandler := handler.NewCalendarHandler(c.Calendar)
	assignmentHandler := handler.NewAssignmentHandler(c.Assignments)
	attendanceHandler := handler.NewAttendanceHandler(c.Attendance)
	monitoringHandler := handler.NewMonitoringHandler(c.Monitoring)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta(), middleware.JWT(c.Auth))

	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	calendar := api.Group("/calendar", anyRole)
	calendar.GET("/config", calendarHandler.GetConfig)
	calendar.PUT("/config", adminOnly, calendarHandler.UpdateConfig)
	calendar.GET("/holidays", calendarHandler.ListHolidays)
	calendar.POST("/holidays", adminOnly, calendarHandler.CreateHoliday)
	calendar.DELETE("/holidays/:date", adminOnly, calendarHandler.DeleteHoliday)
	calendar.GET("/active-days", calendarHandler.ActiveDays)
	calendar.GET("/check", calendarHandler.Check)

	assignments := api.Group("/assignments", anyRole)
	assignments.GET("", assignmentHandler.List)
	assignments.POST("", adminOnly, assignmentHandler.Assign)
	assignments.DELETE("/:studentId", adminOnly, assignmentHandler.Unassign)

	attendance := api.Group("/attendance", anyRole)
	attendance.GET("", attendanceHandler.List)
	attendance.POST("", attendanceHandler.Record)
	attendance.POST("/import", attendanceHandler.Import)

	monitoring := api.Group("/monitoring", anyRole)
	monitoring.GET("/completeness", monitoringHandler.Completeness)

	return r
}
