package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Log        LogConfig
	Calendar   CalendarConfig
	Monitoring MonitoringConfig
}

type DatabaseConfig struct {
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// AuthConfig holds the verification settings for tokens issued by the
// managed backend.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
	RoleClaim string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CalendarConfig carries the school week and the zone that defines "today".
type CalendarConfig struct {
	SchoolDaysPerWeek int
	Timezone          string
	Location          *time.Location
}

// MonitoringConfig governs completeness reports and their background refresh.
type MonitoringConfig struct {
	Enabled         bool
	CacheTTL        time.Duration
	RefreshInterval time.Duration
	Workers         int
	WorkerRetries   int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:          v.GetString("DATABASE_URL"),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Auth = AuthConfig{
		JWTSecret: v.GetString("JWT_SECRET"),
		Issuer:    v.GetString("JWT_ISSUER"),
		Audience:  v.GetString("JWT_AUDIENCE"),
		RoleClaim: v.GetString("JWT_ROLE_CLAIM"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	calendar, err := loadCalendar(v)
	if err != nil {
		return nil, err
	}
	cfg.Calendar = calendar

	cfg.Monitoring = MonitoringConfig{
		Enabled:         v.GetBool("ENABLE_MONITORING"),
		CacheTTL:        parseDuration(v.GetString("MONITORING_CACHE_TTL"), 2*time.Minute),
		RefreshInterval: parseDuration(v.GetString("MONITORING_REFRESH_INTERVAL"), 5*time.Minute),
		Workers:         v.GetInt("MONITORING_WORKERS"),
		WorkerRetries:   v.GetInt("MONITORING_WORKER_RETRIES"),
	}

	return cfg, nil
}

func loadCalendar(v *viper.Viper) (CalendarConfig, error) {
	days := v.GetInt("SCHOOL_DAYS_PER_WEEK")
	if _, err := schoolcal.NewConfig(days); err != nil {
		return CalendarConfig{}, fmt.Errorf("SCHOOL_DAYS_PER_WEEK: %w", err)
	}
	tz := v.GetString("SCHOOL_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return CalendarConfig{}, fmt.Errorf("SCHOOL_TIMEZONE %q: %w", tz, err)
	}
	return CalendarConfig{SchoolDaysPerWeek: days, Timezone: tz, Location: loc}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "postgres")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("JWT_AUDIENCE", "authenticated")
	v.SetDefault("JWT_ROLE_CLAIM", "app_role")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHOOL_DAYS_PER_WEEK", schoolcal.SixDayWeek)
	v.SetDefault("SCHOOL_TIMEZONE", "Asia/Jakarta")

	v.SetDefault("ENABLE_MONITORING", true)
	v.SetDefault("MONITORING_CACHE_TTL", "2m")
	v.SetDefault("MONITORING_REFRESH_INTERVAL", "5m")
	v.SetDefault("MONITORING_WORKERS", 1)
	v.SetDefault("MONITORING_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
