// Package app assembles the repositories and services shared by the HTTP
// gateway and the command line tools.
package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/cache"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

const completenessNamespace = "completeness"

// Container holds the wired dependencies.
type Container struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cache *repository.CacheRepository

	Metrics     *service.MetricsService
	Auth        *service.AuthService
	Calendar    *service.CalendarService
	Assignments *service.AssignmentService
	Attendance  *service.AttendanceService
	Monitoring  *service.MonitoringService
	Refresher   *service.MonitoringRefresher
}

// New connects to Postgres and, when enabled, Redis and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	calendarDefaults, err := schoolcal.NewConfig(cfg.Calendar.SchoolDaysPerWeek)
	if err != nil {
		return nil, err
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, completenessNamespace, logger)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Monitoring.CacheTTL, logger, cfg.Monitoring.Enabled && redisClient != nil)

	validate := validator.New()
	calendarRepo := repository.NewCalendarRepository(db)
	assignmentRepo := repository.NewTeacherAssignmentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)

	calendarSvc := service.NewCalendarService(calendarRepo, cacheSvc, validate, logger, calendarDefaults, cfg.Calendar.Location)
	monitoringSvc := service.NewMonitoringService(calendarSvc, assignmentRepo, attendanceRepo, cacheSvc, metrics, logger, cfg.Monitoring.CacheTTL)

	c := &Container{
		DB:          db,
		Redis:       redisClient,
		Cache:       cacheRepo,
		Metrics:     metrics,
		Auth:        service.NewAuthService(logger, service.AuthConfig{Secret: cfg.Auth.JWTSecret, Issuer: cfg.Auth.Issuer, Audience: cfg.Auth.Audience, RoleClaim: cfg.Auth.RoleClaim}),
		Calendar:    calendarSvc,
		Assignments: service.NewAssignmentService(assignmentRepo, studentRepo, teacherRepo, cacheSvc, validate, logger),
		Attendance:  service.NewAttendanceService(attendanceRepo, assignmentRepo, calendarSvc, cacheSvc, validate, logger),
		Monitoring:  monitoringSvc,
	}
	if cfg.Monitoring.Enabled {
		c.Refresher = service.NewMonitoringRefresher(monitoringSvc, service.RefresherConfig{
			Interval:   cfg.Monitoring.RefreshInterval,
			Workers:    cfg.Monitoring.Workers,
			MaxRetries: cfg.Monitoring.WorkerRetries,
		}, metrics, logger)
	}
	return c, nil
}

// Close releases connections.
func (c *Container) Close() {
	if c.Refresher != nil {
		c.Refresher.Stop()
	}
	_ = c.Cache.Close()
	_ = c.DB.Close()
}
