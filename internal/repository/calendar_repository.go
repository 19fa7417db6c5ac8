package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/schoolcal"
)

// CalendarRepository persists the holiday table and school settings.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

const holidayColumns = `id, date, kind, note, created_by, created_at`

// ListHolidaysInRange returns every holiday in [from, to] ordered by date.
func (r *CalendarRepository) ListHolidaysInRange(ctx context.Context, from, to schoolcal.Date) ([]models.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE date >= $1 AND date <= $2 ORDER BY date ASC`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, from, to); err != nil {
		return nil, fmt.Errorf("list holidays in range: %w", err)
	}
	return holidays, nil
}

// ListHolidays returns a page of holidays matching filters.
func (r *CalendarRepository) ListHolidays(ctx context.Context, filter models.HolidayFilter) ([]models.Holiday, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	if filter.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	whereClause := strings.Join(where, " AND ")

	page, size := models.NormalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM holidays WHERE %s ORDER BY date ASC LIMIT %d OFFSET %d`, holidayColumns, whereClause, size, offset)
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list holidays: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM holidays WHERE %s", whereClause), args...); err != nil {
		return nil, 0, fmt.Errorf("count holidays: %w", err)
	}
	return holidays, total, nil
}

// GetHolidayByDate fetches the holiday on date.
func (r *CalendarRepository) GetHolidayByDate(ctx context.Context, date schoolcal.Date) (*models.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE date = $1`
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, query, date); err != nil {
		return nil, err
	}
	return &holiday, nil
}

// CreateHoliday inserts a holiday.
func (r *CalendarRepository) CreateHoliday(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO holidays (id, date, kind, note, created_by, created_at)
VALUES (:id, :date, :kind, :note, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// DeleteHoliday removes the holiday on date.
func (r *CalendarRepository) DeleteHoliday(ctx context.Context, date schoolcal.Date) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM holidays WHERE date = $1", date)
	if err != nil {
		return fmt.Errorf("delete holiday: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted holiday rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSettings returns the school settings row.
func (r *CalendarRepository) GetSettings(ctx context.Context) (*models.SchoolSettings, error) {
	const query = `SELECT school_days_per_week, updated_by, updated_at FROM school_settings WHERE id = 1`
	var settings models.SchoolSettings
	if err := r.db.GetContext(ctx, &settings, query); err != nil {
		return nil, err
	}
	return &settings, nil
}

// UpsertSettings stores the school settings row.
func (r *CalendarRepository) UpsertSettings(ctx context.Context, settings *models.SchoolSettings) error {
	settings.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO school_settings (id, school_days_per_week, updated_by, updated_at)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET school_days_per_week = EXCLUDED.school_days_per_week,
updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, settings.SchoolDaysPerWeek, settings.UpdatedBy, settings.UpdatedAt); err != nil {
		return fmt.Errorf("upsert school settings: %w", err)
	}
	return nil
}
