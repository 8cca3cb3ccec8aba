package events

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventThresholdCrossed       EventType = "sla.threshold_crossed"
	EventClockStarted           EventType = "sla.clock_started"
	EventClockPaused            EventType = "sla.clock_paused"
	EventClockResumed           EventType = "sla.clock_resumed"
	EventDimensionCompleted     EventType = "sla.dimension_completed"
	EventDefaultPolicyChanged   EventType = "sla.default_policy_changed"
	EventDefaultScheduleChanged EventType = "sla.default_schedule_changed"
	EventPolicyDeleted          EventType = "sla.policy_deleted"
	EventEscalationUpdated      EventType = "sla.escalation_managers_updated"
)

// AllEventTypes lists every event the engine emits.
var AllEventTypes = []EventType{
	EventThresholdCrossed,
	EventClockStarted,
	EventClockPaused,
	EventClockResumed,
	EventDimensionCompleted,
	EventDefaultPolicyChanged,
	EventDefaultScheduleChanged,
	EventPolicyDeleted,
	EventEscalationUpdated,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TenantID  string      `json:"tenant_id"`
	TicketID  string      `json:"ticket_id,omitempty"`
	EntityID  string      `json:"entity_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// ClockStartedPayload payload.
type ClockStartedPayload struct {
	PolicyID        string     `json:"policy_id"`
	StartedAt       time.Time  `json:"started_at"`
	ResponseDueAt   *time.Time `json:"response_due_at,omitempty"`
	ResolutionDueAt *time.Time `json:"resolution_due_at,omitempty"`
}

// ClockPausedPayload payload.
type ClockPausedPayload struct {
	PausedAt time.Time `json:"paused_at"`
}

// ClockResumedPayload payload.
type ClockResumedPayload struct {
	ResumedAt     time.Time `json:"resumed_at"`
	PausedMinutes int       `json:"paused_minutes"`
}

// DimensionCompletedPayload payload.
type DimensionCompletedPayload struct {
	Dimension   domain.SLADimension `json:"dimension"`
	CompletedAt time.Time           `json:"completed_at"`
	Met         *bool               `json:"met,omitempty"`
}

// DefaultChangedPayload payload for policy and schedule promotions.
type DefaultChangedPayload struct {
	PreviousID *string `json:"previous_id,omitempty"`
	CurrentID  string  `json:"current_id"`
}

// EscalationUpdatedPayload payload.
type EscalationUpdatedPayload struct {
	BoardID string                   `json:"board_id"`
	Levels  []domain.EscalationLevel `json:"levels"`
}
