package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// CalendarService owns business-hours schedules, their weekly entries and
// holidays, and answers business-time questions against them.
type CalendarService struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(deps Dependencies) *CalendarService {
	return &CalendarService{deps: deps, logger: deps.logger()}
}

// EntryInput is one day of a weekly template.
type EntryInput struct {
	DayOfWeek int
	StartTime string
	EndTime   string
	IsEnabled bool
}

// ScheduleInput describes a schedule create or update. A nil Entries on update
// leaves the weekly template untouched.
type ScheduleInput struct {
	Name        string
	Timezone    string
	Is24x7      bool
	Entries     []EntryInput
	MakeDefault bool
}

// HolidayInput describes a holiday. A nil ScheduleID makes it tenant-wide.
type HolidayInput struct {
	ScheduleID  *string
	Name        string
	Date        time.Time
	IsRecurring bool
}

func (in *ScheduleInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Timezone = strings.TrimSpace(in.Timezone)
	if in.Name == "" {
		return validation("name", "required")
	}
	if in.Timezone == "" {
		in.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(in.Timezone); err != nil {
		return validation("timezone", "unknown IANA timezone")
	}
	if in.Entries != nil {
		return validateEntries(in.Entries)
	}
	return nil
}

func validateEntries(entries []EntryInput) error {
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.DayOfWeek < 0 || e.DayOfWeek > 6 {
			return validation("day_of_week", "must be between 0 (Sunday) and 6 (Saturday)")
		}
		if seen[e.DayOfWeek] {
			return validation("day_of_week", "duplicate entry for day")
		}
		seen[e.DayOfWeek] = true

		start, err := calendar.ParseClock(e.StartTime)
		if err != nil || start == calendar.MinutesPerDay {
			return validation("start_time", "must be HH:MM before 24:00")
		}
		end, err := calendar.ParseClock(e.EndTime)
		if err != nil {
			return validation("end_time", "must be HH:MM")
		}
		if end <= start {
			return validation("end_time", "must be after start_time")
		}
	}
	return nil
}

func toEntries(in []EntryInput) []domain.BusinessHoursEntry {
	out := make([]domain.BusinessHoursEntry, 0, len(in))
	for _, e := range in {
		out = append(out, domain.BusinessHoursEntry{
			DayOfWeek: e.DayOfWeek,
			StartTime: e.StartTime,
			EndTime:   e.EndTime,
			IsEnabled: e.IsEnabled,
		})
	}
	return out
}

// CreateSchedule stores a schedule with its weekly entries, optionally
// promoting it to the tenant default in the same transaction.
func (s *CalendarService) CreateSchedule(ctx context.Context, tenantID string, input ScheduleInput) (*domain.BusinessHoursSchedule, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	schedule := &domain.BusinessHoursSchedule{
		TenantID: tenantID,
		Name:     input.Name,
		Timezone: input.Timezone,
		Is24x7:   input.Is24x7,
	}
	var previous *string
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Schedules.Create(ctx, schedule); err != nil {
			return err
		}
		if input.Entries != nil {
			if err := repos.Schedules.ReplaceEntries(ctx, tenantID, schedule.ID, toEntries(input.Entries)); err != nil {
				return err
			}
		}
		if input.MakeDefault {
			prev, err := promoteSchedule(ctx, repos, tenantID, schedule.ID)
			if err != nil {
				return err
			}
			previous = prev
			schedule.IsDefault = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedule created",
		zap.String("tenant_id", tenantID),
		zap.String("schedule_id", schedule.ID),
		zap.Bool("default", schedule.IsDefault))
	if input.MakeDefault {
		s.publishDefaultChanged(ctx, tenantID, previous, schedule.ID)
	}
	return s.GetSchedule(ctx, tenantID, schedule.ID)
}

// UpdateSchedule changes schedule attributes and, when entries are given,
// replaces the weekly template.
func (s *CalendarService) UpdateSchedule(ctx context.Context, tenantID, scheduleID string, input ScheduleInput) (*domain.BusinessHoursSchedule, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Schedules.GetByID(ctx, tenantID, scheduleID)
		if err != nil {
			return notFound(err, "schedule", scheduleID)
		}
		existing.Name = input.Name
		existing.Timezone = input.Timezone
		existing.Is24x7 = input.Is24x7
		if err := repos.Schedules.Update(ctx, existing); err != nil {
			return err
		}
		if input.Entries != nil {
			return repos.Schedules.ReplaceEntries(ctx, tenantID, scheduleID, toEntries(input.Entries))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("schedule updated", zap.String("tenant_id", tenantID), zap.String("schedule_id", scheduleID))
	return s.GetSchedule(ctx, tenantID, scheduleID)
}

// ReplaceEntries swaps the weekly template of a schedule.
func (s *CalendarService) ReplaceEntries(ctx context.Context, tenantID, scheduleID string, entries []EntryInput) ([]domain.BusinessHoursEntry, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Schedules.GetByID(ctx, tenantID, scheduleID); err != nil {
			return notFound(err, "schedule", scheduleID)
		}
		return repos.Schedules.ReplaceEntries(ctx, tenantID, scheduleID, toEntries(entries))
	})
	if err != nil {
		return nil, err
	}
	return s.deps.Store.Repositories().Schedules.ListEntries(ctx, tenantID, scheduleID)
}

// GetSchedule returns the schedule with its entries and applicable holidays.
func (s *CalendarService) GetSchedule(ctx context.Context, tenantID, scheduleID string) (*domain.BusinessHoursSchedule, error) {
	repos := s.deps.Store.Repositories()
	schedule, err := repos.Schedules.GetByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, notFound(err, "schedule", scheduleID)
	}
	if err := s.hydrate(ctx, repos, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

// GetDefaultSchedule returns the tenant default, or nil when none is configured.
func (s *CalendarService) GetDefaultSchedule(ctx context.Context, tenantID string) (*domain.BusinessHoursSchedule, error) {
	repos := s.deps.Store.Repositories()
	schedule, err := optional(repos.Schedules.GetDefault(ctx, tenantID))
	if err != nil || schedule == nil {
		return nil, err
	}
	if err := s.hydrate(ctx, repos, schedule); err != nil {
		return nil, err
	}
	return schedule, nil
}

func (s *CalendarService) hydrate(ctx context.Context, repos repository.Repositories, schedule *domain.BusinessHoursSchedule) error {
	entries, err := repos.Schedules.ListEntries(ctx, schedule.TenantID, schedule.ID)
	if err != nil {
		return err
	}
	holidays, err := repos.Schedules.ListHolidaysForSchedule(ctx, schedule.TenantID, schedule.ID)
	if err != nil {
		return err
	}
	schedule.Entries = entries
	schedule.Holidays = holidays
	return nil
}

// ListSchedules returns the tenant's schedules without entries.
func (s *CalendarService) ListSchedules(ctx context.Context, tenantID string) ([]domain.BusinessHoursSchedule, error) {
	return s.deps.Store.Repositories().Schedules.List(ctx, tenantID)
}

// DeleteSchedule removes a schedule no SLA policy references.
func (s *CalendarService) DeleteSchedule(ctx context.Context, tenantID, scheduleID string) error {
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Schedules.GetByID(ctx, tenantID, scheduleID); err != nil {
			return notFound(err, "schedule", scheduleID)
		}
		refs, err := repos.Schedules.CountPolicyReferences(ctx, tenantID, scheduleID)
		if err != nil {
			return err
		}
		if refs > 0 {
			return errorutil.NewConflict("schedule is referenced by SLA policies", map[string]any{
				"schedule_id": scheduleID,
				"policies":    refs,
			})
		}
		return repos.Schedules.Delete(ctx, tenantID, scheduleID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("schedule deleted", zap.String("tenant_id", tenantID), zap.String("schedule_id", scheduleID))
	return nil
}

// PromoteScheduleToDefault makes the schedule the single tenant default.
func (s *CalendarService) PromoteScheduleToDefault(ctx context.Context, tenantID, scheduleID string) (*domain.BusinessHoursSchedule, error) {
	var previous *string
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		prev, err := promoteSchedule(ctx, repos, tenantID, scheduleID)
		previous = prev
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("default schedule promoted", zap.String("tenant_id", tenantID), zap.String("schedule_id", scheduleID))
	s.publishDefaultChanged(ctx, tenantID, previous, scheduleID)
	return s.GetSchedule(ctx, tenantID, scheduleID)
}

// promoteSchedule runs inside a transaction. It returns the id of the
// previous default, if there was one.
func promoteSchedule(ctx context.Context, repos repository.Repositories, tenantID, scheduleID string) (*string, error) {
	if _, err := repos.Schedules.GetByID(ctx, tenantID, scheduleID); err != nil {
		return nil, notFound(err, "schedule", scheduleID)
	}
	previous, err := repos.Schedules.ClearDefault(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := repos.Schedules.MarkDefault(ctx, tenantID, scheduleID); err != nil {
		return nil, notFound(err, "schedule", scheduleID)
	}
	return previous, nil
}

func (s *CalendarService) publishDefaultChanged(ctx context.Context, tenantID string, previous *string, current string) {
	s.deps.publish(ctx, events.Event{
		Type:     events.EventDefaultScheduleChanged,
		TenantID: tenantID,
		EntityID: current,
		Payload:  events.DefaultChangedPayload{PreviousID: previous, CurrentID: current},
	})
}

// AddHoliday stores a holiday for one schedule or the whole tenant.
func (s *CalendarService) AddHoliday(ctx context.Context, tenantID string, input HolidayInput) (*domain.Holiday, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, validation("name", "required")
	}
	if input.Date.IsZero() {
		return nil, validation("date", "required")
	}
	holiday := &domain.Holiday{
		TenantID:    tenantID,
		ScheduleID:  input.ScheduleID,
		Name:        input.Name,
		Date:        time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 0, 0, 0, 0, time.UTC),
		IsRecurring: input.IsRecurring,
	}
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if input.ScheduleID != nil {
			if _, err := repos.Schedules.GetByID(ctx, tenantID, *input.ScheduleID); err != nil {
				return notFound(err, "schedule", *input.ScheduleID)
			}
		}
		return repos.Schedules.CreateHoliday(ctx, holiday)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("holiday added",
		zap.String("tenant_id", tenantID),
		zap.String("holiday_id", holiday.ID),
		zap.Bool("recurring", holiday.IsRecurring))
	return holiday, nil
}

// ListHolidays returns every tenant holiday, or the ones applying to a
// schedule (its own plus tenant-wide) when scheduleID is set.
func (s *CalendarService) ListHolidays(ctx context.Context, tenantID string, scheduleID *string) ([]domain.Holiday, error) {
	repos := s.deps.Store.Repositories()
	if scheduleID == nil {
		return repos.Schedules.ListHolidays(ctx, tenantID)
	}
	if _, err := repos.Schedules.GetByID(ctx, tenantID, *scheduleID); err != nil {
		return nil, notFound(err, "schedule", *scheduleID)
	}
	return repos.Schedules.ListHolidaysForSchedule(ctx, tenantID, *scheduleID)
}

// DeleteHoliday removes a holiday.
func (s *CalendarService) DeleteHoliday(ctx context.Context, tenantID, holidayID string) error {
	if err := s.deps.Store.Repositories().Schedules.DeleteHoliday(ctx, tenantID, holidayID); err != nil {
		return notFound(err, "holiday", holidayID)
	}
	return nil
}

// CalendarFor builds the business-hours calendar of a schedule.
func (s *CalendarService) CalendarFor(ctx context.Context, tenantID, scheduleID string) (*calendar.Calendar, error) {
	schedule, err := s.GetSchedule(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	cal, err := calendar.FromSchedule(*schedule, schedule.Holidays)
	if err != nil {
		return nil, calendarError(err, scheduleID)
	}
	return cal, nil
}

// IsWithinBusinessHours reports whether at falls inside the schedule's business hours.
func (s *CalendarService) IsWithinBusinessHours(ctx context.Context, tenantID, scheduleID string, at time.Time) (bool, error) {
	cal, err := s.CalendarFor(ctx, tenantID, scheduleID)
	if err != nil {
		return false, err
	}
	return cal.IsOpen(at), nil
}

// NextBusinessHourStart returns the first business instant at or after at.
func (s *CalendarService) NextBusinessHourStart(ctx context.Context, tenantID, scheduleID string, at time.Time) (time.Time, error) {
	start := time.Now()
	cal, err := s.CalendarFor(ctx, tenantID, scheduleID)
	if err != nil {
		return time.Time{}, err
	}
	next, err := cal.NextOpen(at)
	s.deps.observe("next_business_hour_start", start, err)
	if err != nil {
		return time.Time{}, calendarError(err, scheduleID)
	}
	return next, nil
}

// AddBusinessMinutes returns the instant reached after minutes of business time from at.
func (s *CalendarService) AddBusinessMinutes(ctx context.Context, tenantID, scheduleID string, at time.Time, minutes int) (time.Time, error) {
	if minutes < 0 {
		return time.Time{}, validation("minutes", "must not be negative")
	}
	start := time.Now()
	cal, err := s.CalendarFor(ctx, tenantID, scheduleID)
	if err != nil {
		return time.Time{}, err
	}
	due, err := cal.AddBusinessMinutes(at, minutes)
	s.deps.observe("add_business_minutes", start, err)
	if err != nil {
		return time.Time{}, calendarError(err, scheduleID)
	}
	return due, nil
}

// BusinessMinutesBetween counts business minutes in [from, to).
func (s *CalendarService) BusinessMinutesBetween(ctx context.Context, tenantID, scheduleID string, from, to time.Time) (int, error) {
	cal, err := s.CalendarFor(ctx, tenantID, scheduleID)
	if err != nil {
		return 0, err
	}
	minutes, err := cal.BusinessMinutesBetween(from, to)
	if err != nil {
		return 0, calendarError(err, scheduleID)
	}
	return minutes, nil
}
