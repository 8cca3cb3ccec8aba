package domain

import "time"

// Default escalation thresholds, expressed as percent of the target elapsed.
const (
	DefaultEscalation1Percent = 70
	DefaultEscalation2Percent = 90
	DefaultEscalation3Percent = 110
)

// SlaPolicy bundles per-priority targets with an optional business-hours schedule.
type SlaPolicy struct {
	ID          string
	TenantID    string
	Name        string
	Description string
	IsDefault   bool
	ScheduleID  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SlaPolicyTarget holds the response/resolution targets for one priority.
// A nil minutes value means no target for that dimension.
type SlaPolicyTarget struct {
	ID                 string
	TenantID           string
	PolicyID           string
	PriorityID         string
	ResponseMinutes    *int
	ResolutionMinutes  *int
	Escalation1Percent int
	Escalation2Percent int
	Escalation3Percent int
	Is24x7             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// MinutesFor returns the target minutes for the given dimension.
func (t SlaPolicyTarget) MinutesFor(dim SLADimension) *int {
	switch dim {
	case DimensionResponse:
		return t.ResponseMinutes
	case DimensionResolution:
		return t.ResolutionMinutes
	}
	return nil
}

// EscalationLevelAt returns the escalation level reached at percentElapsed, or 0.
func (t SlaPolicyTarget) EscalationLevelAt(percentElapsed float64) EscalationLevel {
	switch {
	case percentElapsed >= float64(t.Escalation3Percent):
		return EscalationLevel3
	case percentElapsed >= float64(t.Escalation2Percent):
		return EscalationLevel2
	case percentElapsed >= float64(t.Escalation1Percent):
		return EscalationLevel1
	}
	return 0
}

// NotificationType classifies a threshold.
type NotificationType string

const (
	NotificationWarning NotificationType = "warning"
	NotificationBreach  NotificationType = "breach"
)

// Notification channels known to the delivery collaborators.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
)

// SlaNotificationThreshold describes what should be notified, to whom, once
// Percent of a target has elapsed. Delivery is external.
type SlaNotificationThreshold struct {
	ID                      string
	TenantID                string
	PolicyID                string
	Percent                 int
	Type                    NotificationType
	NotifyAssignee          bool
	NotifyBoardManager      bool
	NotifyEscalationManager bool
	Channels                []string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// DefaultThresholds is the seed set applied to new policies on request.
func DefaultThresholds() []SlaNotificationThreshold {
	return []SlaNotificationThreshold{
		{Percent: 50, Type: NotificationWarning, NotifyAssignee: true, Channels: []string{ChannelInApp}},
		{Percent: 75, Type: NotificationWarning, NotifyAssignee: true, NotifyBoardManager: true, Channels: []string{ChannelInApp}},
		{Percent: 90, Type: NotificationWarning, NotifyAssignee: true, NotifyBoardManager: true, NotifyEscalationManager: true, Channels: []string{ChannelInApp, ChannelEmail}},
		{Percent: 100, Type: NotificationBreach, NotifyAssignee: true, NotifyBoardManager: true, NotifyEscalationManager: true, Channels: []string{ChannelInApp, ChannelEmail}},
	}
}

// PolicyReferences counts the entities currently assigned to a policy.
type PolicyReferences struct {
	Clients int
	Boards  int
	Tickets int
}

// Total sums every reference kind.
func (r PolicyReferences) Total() int {
	return r.Clients + r.Boards + r.Tickets
}
