package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ScheduleRepository persists business-hours schedules, entries and holidays.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *domain.BusinessHoursSchedule) error
	Update(ctx context.Context, schedule *domain.BusinessHoursSchedule) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.BusinessHoursSchedule, error)
	GetDefault(ctx context.Context, tenantID string) (*domain.BusinessHoursSchedule, error)
	List(ctx context.Context, tenantID string) ([]domain.BusinessHoursSchedule, error)
	Delete(ctx context.Context, tenantID, id string) error
	ClearDefault(ctx context.Context, tenantID string) (*string, error)
	MarkDefault(ctx context.Context, tenantID, id string) error
	CountPolicyReferences(ctx context.Context, tenantID, id string) (int, error)

	ListEntries(ctx context.Context, tenantID, scheduleID string) ([]domain.BusinessHoursEntry, error)
	ReplaceEntries(ctx context.Context, tenantID, scheduleID string, entries []domain.BusinessHoursEntry) error

	CreateHoliday(ctx context.Context, holiday *domain.Holiday) error
	DeleteHoliday(ctx context.Context, tenantID, id string) error
	ListHolidays(ctx context.Context, tenantID string) ([]domain.Holiday, error)
	ListHolidaysForSchedule(ctx context.Context, tenantID, scheduleID string) ([]domain.Holiday, error)
}

type scheduleRepository struct {
	db DBTX
}

// NewScheduleRepository instantiates repository.
func NewScheduleRepository(db DBTX) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, tenant_id, name, timezone, is_24x7, is_default, created_at, updated_at`

func (r *scheduleRepository) Create(ctx context.Context, s *domain.BusinessHoursSchedule) error {
	const query = `
        INSERT INTO business_hours_schedules (tenant_id, name, timezone, is_24x7, is_default)
        VALUES ($1,$2,$3,$4,FALSE)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, s.TenantID, s.Name, s.Timezone, s.Is24x7).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *scheduleRepository) Update(ctx context.Context, s *domain.BusinessHoursSchedule) error {
	const query = `
        UPDATE business_hours_schedules SET name=$1, timezone=$2, is_24x7=$3, updated_at=NOW()
        WHERE tenant_id=$4 AND id=$5
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query, s.Name, s.Timezone, s.Is24x7, s.TenantID, s.ID).Scan(&s.UpdatedAt)
}

func (r *scheduleRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.BusinessHoursSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM business_hours_schedules WHERE tenant_id=$1 AND id=$2`
	return scanSchedule(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *scheduleRepository) GetDefault(ctx context.Context, tenantID string) (*domain.BusinessHoursSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM business_hours_schedules WHERE tenant_id=$1 AND is_default`
	return scanSchedule(r.db.QueryRow(ctx, query, tenantID))
}

func (r *scheduleRepository) List(ctx context.Context, tenantID string) ([]domain.BusinessHoursSchedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM business_hours_schedules WHERE tenant_id=$1 ORDER BY name`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHoursSchedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func scanSchedule(row pgx.Row) (*domain.BusinessHoursSchedule, error) {
	var s domain.BusinessHoursSchedule
	if err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Timezone, &s.Is24x7, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Delete removes the schedule together with its entries and schedule-scoped holidays.
func (r *scheduleRepository) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM business_hours_entries WHERE tenant_id=$1 AND schedule_id=$2`, tenantID, id); err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM holidays WHERE tenant_id=$1 AND schedule_id=$2`, tenantID, id); err != nil {
		return err
	}
	return mustAffect(r.db.Exec(ctx, `DELETE FROM business_hours_schedules WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// ClearDefault must run inside a transaction; it takes the tenant's default
// lock and returns the id of the default it cleared, if any.
func (r *scheduleRepository) ClearDefault(ctx context.Context, tenantID string) (*string, error) {
	if err := lockTenantScope(ctx, r.db, "schedule-default", tenantID); err != nil {
		return nil, err
	}
	var previous string
	err := r.db.QueryRow(ctx, `
        UPDATE business_hours_schedules SET is_default=FALSE, updated_at=NOW()
        WHERE tenant_id=$1 AND is_default
        RETURNING id`, tenantID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &previous, nil
}

func (r *scheduleRepository) MarkDefault(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `
        UPDATE business_hours_schedules SET is_default=TRUE, updated_at=NOW()
        WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *scheduleRepository) CountPolicyReferences(ctx context.Context, tenantID, id string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM sla_policies WHERE tenant_id=$1 AND business_hours_schedule_id=$2`,
		tenantID, id).Scan(&count)
	return count, err
}

func (r *scheduleRepository) ListEntries(ctx context.Context, tenantID, scheduleID string) ([]domain.BusinessHoursEntry, error) {
	const query = `
        SELECT id, schedule_id, day_of_week, to_char(start_time::interval, 'HH24:MI'), to_char(end_time::interval, 'HH24:MI'), is_enabled
        FROM business_hours_entries WHERE tenant_id=$1 AND schedule_id=$2 ORDER BY day_of_week`
	rows, err := r.db.Query(ctx, query, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.BusinessHoursEntry
	for rows.Next() {
		var e domain.BusinessHoursEntry
		if err := rows.Scan(&e.ID, &e.ScheduleID, &e.DayOfWeek, &e.StartTime, &e.EndTime, &e.IsEnabled); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// ReplaceEntries swaps the whole weekly template; callers wrap it in a transaction.
func (r *scheduleRepository) ReplaceEntries(ctx context.Context, tenantID, scheduleID string, entries []domain.BusinessHoursEntry) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM business_hours_entries WHERE tenant_id=$1 AND schedule_id=$2`, tenantID, scheduleID); err != nil {
		return err
	}
	const insert = `
        INSERT INTO business_hours_entries (tenant_id, schedule_id, day_of_week, start_time, end_time, is_enabled)
        VALUES ($1,$2,$3,$4::time,$5::time,$6)`
	for _, e := range entries {
		if _, err := r.db.Exec(ctx, insert, tenantID, scheduleID, e.DayOfWeek, e.StartTime, e.EndTime, e.IsEnabled); err != nil {
			return err
		}
	}
	return nil
}

func (r *scheduleRepository) CreateHoliday(ctx context.Context, h *domain.Holiday) error {
	const query = `
        INSERT INTO holidays (tenant_id, schedule_id, name, holiday_date, is_recurring)
        VALUES ($1,$2,$3,$4::date,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query, h.TenantID, h.ScheduleID, h.Name, h.Date.Format("2006-01-02"), h.IsRecurring).
		Scan(&h.ID, &h.CreatedAt)
}

func (r *scheduleRepository) DeleteHoliday(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `DELETE FROM holidays WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

const holidayColumns = `id, tenant_id, schedule_id, name, holiday_date, is_recurring, created_at`

func (r *scheduleRepository) ListHolidays(ctx context.Context, tenantID string) ([]domain.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE tenant_id=$1 ORDER BY holiday_date`
	return r.queryHolidays(ctx, query, tenantID)
}

// ListHolidaysForSchedule returns the schedule's holidays plus tenant-wide ones.
func (r *scheduleRepository) ListHolidaysForSchedule(ctx context.Context, tenantID, scheduleID string) ([]domain.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays
        WHERE tenant_id=$1 AND (schedule_id=$2 OR schedule_id IS NULL) ORDER BY holiday_date`
	return r.queryHolidays(ctx, query, tenantID, scheduleID)
}

func (r *scheduleRepository) queryHolidays(ctx context.Context, query string, args ...any) ([]domain.Holiday, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Holiday
	for rows.Next() {
		var h domain.Holiday
		if err := rows.Scan(&h.ID, &h.TenantID, &h.ScheduleID, &h.Name, &h.Date, &h.IsRecurring, &h.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, h)
	}
	return result, rows.Err()
}
