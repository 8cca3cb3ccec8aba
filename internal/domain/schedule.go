package domain

import "time"

// BusinessHoursSchedule is a timezone-anchored weekly template of open windows.
type BusinessHoursSchedule struct {
	ID        string
	TenantID  string
	Name      string
	Timezone  string
	Is24x7    bool
	IsDefault bool
	Entries   []BusinessHoursEntry
	Holidays  []Holiday
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BusinessHoursEntry is the open window for one day of the week.
// DayOfWeek follows time.Weekday (0=Sunday). Times are local wall-clock "HH:MM".
type BusinessHoursEntry struct {
	ID         string
	ScheduleID string
	DayOfWeek  int
	StartTime  string
	EndTime    string
	IsEnabled  bool
}

// Holiday closes a whole local calendar day. A nil ScheduleID applies tenant-wide.
// Only the date portion of Date is meaningful.
type Holiday struct {
	ID          string
	TenantID    string
	ScheduleID  *string
	Name        string
	Date        time.Time
	IsRecurring bool
	CreatedAt   time.Time
}
