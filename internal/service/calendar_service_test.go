package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

func TestCalendarService_PromotionKeepsSingleDefault(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)
	ctx := context.Background()

	first, err := svc.CreateSchedule(ctx, tenant, ScheduleInput{Name: "First", MakeDefault: true})
	require.NoError(t, err)
	second, err := svc.CreateSchedule(ctx, tenant, ScheduleInput{Name: "Second", MakeDefault: true})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)
	assert.Equal(t, "UTC", second.Timezone)

	schedules, err := svc.ListSchedules(ctx, tenant)
	require.NoError(t, err)
	defaults := 0
	for _, s := range schedules {
		if s.IsDefault {
			defaults++
			assert.Equal(t, second.ID, s.ID)
		}
	}
	assert.Equal(t, 1, defaults)

	_, err = svc.PromoteScheduleToDefault(ctx, tenant, first.ID)
	require.NoError(t, err)
	current, err := svc.GetDefaultSchedule(ctx, tenant)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, first.ID, current.ID)

	changes := f.log.ofType(events.EventDefaultScheduleChanged)
	require.Len(t, changes, 3)
	last := changes[2].Payload.(events.DefaultChangedPayload)
	require.NotNil(t, last.PreviousID)
	assert.Equal(t, second.ID, *last.PreviousID)
	assert.Equal(t, first.ID, last.CurrentID)
}

func TestCalendarService_NoDefaultIsNil(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)

	schedule, err := svc.GetDefaultSchedule(context.Background(), tenant)
	require.NoError(t, err)
	assert.Nil(t, schedule)
}

func TestCalendarService_RejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)
	ctx := context.Background()

	tests := []struct {
		name  string
		input ScheduleInput
	}{
		{"blank name", ScheduleInput{Name: "  "}},
		{"unknown timezone", ScheduleInput{Name: "x", Timezone: "Mars/Olympus"}},
		{"day out of range", ScheduleInput{Name: "x", Entries: []EntryInput{{DayOfWeek: 7, StartTime: "08:00", EndTime: "09:00"}}}},
		{"end before start", ScheduleInput{Name: "x", Entries: []EntryInput{{DayOfWeek: 1, StartTime: "10:00", EndTime: "09:00"}}}},
		{"duplicate day", ScheduleInput{Name: "x", Entries: []EntryInput{
			{DayOfWeek: 1, StartTime: "08:00", EndTime: "09:00"},
			{DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
		}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateSchedule(ctx, tenant, tc.input)
			assert.True(t, errorutil.IsValidation(err), "got %v", err)
		})
	}
	assert.Zero(t, f.store.txs)
}

func TestCalendarService_StandardScheduleScenario(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)
	ctx := context.Background()

	schedule, err := svc.CreateSchedule(ctx, tenant, standardInput(false))
	require.NoError(t, err)
	_, err = svc.AddHoliday(ctx, tenant, HolidayInput{
		Name:        "Independence Day",
		Date:        time.Date(2019, time.July, 4, 0, 0, 0, 0, time.UTC),
		IsRecurring: true,
	})
	require.NoError(t, err)

	open, err := svc.IsWithinBusinessHours(ctx, tenant, schedule.ID, mustTime(t, "2025-07-04T12:00:00-04:00"))
	require.NoError(t, err)
	assert.False(t, open, "holiday")

	open, err = svc.IsWithinBusinessHours(ctx, tenant, schedule.ID, mustTime(t, "2025-07-07T09:00:00-04:00"))
	require.NoError(t, err)
	assert.True(t, open, "monday")

	open, err = svc.IsWithinBusinessHours(ctx, tenant, schedule.ID, mustTime(t, "2025-07-05T09:00:00-04:00"))
	require.NoError(t, err)
	assert.False(t, open, "saturday")

	next, err := svc.NextBusinessHourStart(ctx, tenant, schedule.ID, mustTime(t, "2025-07-05T20:00:00-04:00"))
	require.NoError(t, err)
	assert.True(t, next.Equal(mustTime(t, "2025-07-07T08:00:00-04:00")), "got %s", next)

	due, err := svc.AddBusinessMinutes(ctx, tenant, schedule.ID, mustTime(t, "2025-07-05T20:00:00-04:00"), 60)
	require.NoError(t, err)
	assert.True(t, due.Equal(mustTime(t, "2025-07-07T09:00:00-04:00")), "got %s", due)

	minutes, err := svc.BusinessMinutesBetween(ctx, tenant, schedule.ID,
		mustTime(t, "2025-07-03T17:00:00-04:00"), mustTime(t, "2025-07-07T09:00:00-04:00"))
	require.NoError(t, err)
	assert.Equal(t, 120, minutes)

	assert.Equal(t, 1, f.recorder.computations["add_business_minutes"])
}

func TestCalendarService_AddBusinessMinutesRejectsNegative(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)

	_, err := svc.AddBusinessMinutes(context.Background(), tenant, "any", f.now, -1)
	assert.True(t, errorutil.IsValidation(err))
}

func TestCalendarService_ClosedScheduleIsConfigurationError(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)
	ctx := context.Background()

	in := standardInput(false)
	for i := range in.Entries {
		in.Entries[i].IsEnabled = false
	}
	schedule, err := svc.CreateSchedule(ctx, tenant, in)
	require.NoError(t, err)

	_, err = svc.AddBusinessMinutes(ctx, tenant, schedule.ID, f.now, 30)
	require.True(t, errorutil.IsConfiguration(err), "got %v", err)
	details := errorutil.ToDomainError(err).Details
	assert.Equal(t, schedule.ID, details["schedule_id"])
}

func TestCalendarService_DeleteReferencedSchedule(t *testing.T) {
	f := newFixture(t)
	calendars := NewCalendarService(f.deps)
	catalog := NewPolicyCatalog(f.deps)
	ctx := context.Background()

	schedule, err := calendars.CreateSchedule(ctx, tenant, standardInput(false))
	require.NoError(t, err)
	_, err = calendars.AddHoliday(ctx, tenant, HolidayInput{ScheduleID: &schedule.ID, Name: "Retreat", Date: f.now})
	require.NoError(t, err)
	policy, err := catalog.CreatePolicy(ctx, tenant, PolicyInput{Name: "Gold", ScheduleID: &schedule.ID})
	require.NoError(t, err)

	err = calendars.DeleteSchedule(ctx, tenant, schedule.ID)
	require.True(t, errorutil.IsConflict(err), "got %v", err)
	assert.Equal(t, 1, errorutil.ToDomainError(err).Details["policies"])

	_, err = catalog.UpdatePolicy(ctx, tenant, policy.Policy.ID, PolicyInput{Name: "Gold"})
	require.NoError(t, err)
	require.NoError(t, calendars.DeleteSchedule(ctx, tenant, schedule.ID))

	_, err = calendars.GetSchedule(ctx, tenant, schedule.ID)
	assert.True(t, errorutil.IsNotFound(err))
	holidays, err := calendars.ListHolidays(ctx, tenant, nil)
	require.NoError(t, err)
	assert.Empty(t, holidays)
}

func TestCalendarService_HolidayForUnknownSchedule(t *testing.T) {
	f := newFixture(t)
	svc := NewCalendarService(f.deps)

	_, err := svc.AddHoliday(context.Background(), tenant, HolidayInput{ScheduleID: ptr("missing"), Name: "x", Date: f.now})
	assert.True(t, errorutil.IsNotFound(err))
	assert.Empty(t, f.store.state.holidays)
}
