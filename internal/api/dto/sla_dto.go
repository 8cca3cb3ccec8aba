package dto

import "time"

// EntryRequest is one day of a weekly template.
type EntryRequest struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsEnabled bool   `json:"is_enabled"`
}

// ScheduleRequest payload. Omitting entries on update keeps the template.
type ScheduleRequest struct {
	Name        string         `json:"name"`
	Timezone    string         `json:"timezone"`
	Is24x7      bool           `json:"is_24x7"`
	Entries     []EntryRequest `json:"entries"`
	MakeDefault bool           `json:"make_default"`
}

// ReplaceEntriesRequest payload.
type ReplaceEntriesRequest struct {
	Entries []EntryRequest `json:"entries"`
}

// HolidayRequest payload. Date is a calendar day formatted YYYY-MM-DD.
type HolidayRequest struct {
	ScheduleID  *string `json:"schedule_id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	IsRecurring bool    `json:"is_recurring"`
}

// ScheduleResponse representation.
type ScheduleResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Timezone  string            `json:"timezone"`
	Is24x7    bool              `json:"is_24x7"`
	IsDefault bool              `json:"is_default"`
	Entries   []EntryResponse   `json:"entries"`
	Holidays  []HolidayResponse `json:"holidays,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// EntryResponse representation.
type EntryResponse struct {
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsEnabled bool   `json:"is_enabled"`
}

// HolidayResponse representation.
type HolidayResponse struct {
	ID          string  `json:"id"`
	ScheduleID  *string `json:"schedule_id"`
	Name        string  `json:"name"`
	Date        string  `json:"date"`
	IsRecurring bool    `json:"is_recurring"`
}

// PolicyRequest payload. make_default and seed_thresholds apply on create.
type PolicyRequest struct {
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	ScheduleID     *string `json:"schedule_id"`
	MakeDefault    bool    `json:"make_default"`
	SeedThresholds bool    `json:"seed_thresholds"`
}

// TargetRequest is one per-priority target.
type TargetRequest struct {
	PriorityID         string `json:"priority_id"`
	ResponseMinutes    *int   `json:"response_minutes"`
	ResolutionMinutes  *int   `json:"resolution_minutes"`
	Escalation1Percent int    `json:"escalation_1_percent"`
	Escalation2Percent int    `json:"escalation_2_percent"`
	Escalation3Percent int    `json:"escalation_3_percent"`
	Is24x7             bool   `json:"is_24x7"`
}

// TargetsRequest upserts targets in one batch.
type TargetsRequest struct {
	Targets []TargetRequest `json:"targets"`
}

// ThresholdRequest payload.
type ThresholdRequest struct {
	Percent                 int      `json:"percent"`
	Type                    string   `json:"type"`
	NotifyAssignee          bool     `json:"notify_assignee"`
	NotifyBoardManager      bool     `json:"notify_board_manager"`
	NotifyEscalationManager bool     `json:"notify_escalation_manager"`
	Channels                []string `json:"channels"`
}

// PolicyAssignmentRequest sets or clears (null) a policy override.
type PolicyAssignmentRequest struct {
	PolicyID *string `json:"policy_id"`
}

// PolicyResponse representation.
type PolicyResponse struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	IsDefault   bool                `json:"is_default"`
	ScheduleID  *string             `json:"schedule_id"`
	Targets     []TargetResponse    `json:"targets,omitempty"`
	Thresholds  []ThresholdResponse `json:"thresholds,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// ResolvedPolicyResponse names the effective policy and its source.
type ResolvedPolicyResponse struct {
	Policy PolicyResponse `json:"policy"`
	Source string         `json:"source"`
}

// TargetResponse representation.
type TargetResponse struct {
	ID                 string `json:"id"`
	PriorityID         string `json:"priority_id"`
	ResponseMinutes    *int   `json:"response_minutes"`
	ResolutionMinutes  *int   `json:"resolution_minutes"`
	Escalation1Percent int    `json:"escalation_1_percent"`
	Escalation2Percent int    `json:"escalation_2_percent"`
	Escalation3Percent int    `json:"escalation_3_percent"`
	Is24x7             bool   `json:"is_24x7"`
}

// ThresholdResponse representation.
type ThresholdResponse struct {
	ID                      string   `json:"id"`
	Percent                 int      `json:"percent"`
	Type                    string   `json:"type"`
	NotifyAssignee          bool     `json:"notify_assignee"`
	NotifyBoardManager      bool     `json:"notify_board_manager"`
	NotifyEscalationManager bool     `json:"notify_escalation_manager"`
	Channels                []string `json:"channels"`
}

// EscalationLevelRequest configures one level. A null user_id clears it.
type EscalationLevelRequest struct {
	Level    int      `json:"level"`
	UserID   *string  `json:"user_id"`
	Channels []string `json:"channels"`
}

// EscalationManagersRequest payload.
type EscalationManagersRequest struct {
	Levels []EscalationLevelRequest `json:"levels"`
}

// EscalationManagerResponse representation.
type EscalationManagerResponse struct {
	ID       string   `json:"id"`
	BoardID  string   `json:"board_id"`
	Level    int      `json:"level"`
	UserID   string   `json:"user_id"`
	Channels []string `json:"channels"`
}

// ClockEventRequest carries the instant of a clock transition. A missing
// "at" means now.
type ClockEventRequest struct {
	At *time.Time `json:"at"`
}

// DeadlineRequest asks for the deadlines of a hypothetical ticket.
type DeadlineRequest struct {
	ClientID   *string    `json:"client_id"`
	BoardID    *string    `json:"board_id"`
	PriorityID *string    `json:"priority_id"`
	StartedAt  *time.Time `json:"started_at"`
}

// DeadlineResponse representation.
type DeadlineResponse struct {
	PolicyID        string     `json:"policy_id"`
	Source          string     `json:"source"`
	ScheduleID      *string    `json:"schedule_id"`
	AlwaysOpen      bool       `json:"always_open"`
	StartedAt       time.Time  `json:"started_at"`
	ResponseDueAt   *time.Time `json:"response_due_at"`
	ResolutionDueAt *time.Time `json:"resolution_due_at"`
}

// TicketSLAResponse is the SLA state of a ticket.
type TicketSLAResponse struct {
	TicketID        string     `json:"ticket_id"`
	PolicyID        *string    `json:"policy_id"`
	StartedAt       *time.Time `json:"started_at"`
	PausedAt        *time.Time `json:"paused_at"`
	ResponseAt      *time.Time `json:"response_at"`
	ResponseDueAt   *time.Time `json:"response_due_at"`
	ResponseMet     *bool      `json:"response_met"`
	ResolutionAt    *time.Time `json:"resolution_at"`
	ResolutionDueAt *time.Time `json:"resolution_due_at"`
	ResolutionMet   *bool      `json:"resolution_met"`
	Breached        bool       `json:"breached"`
}
