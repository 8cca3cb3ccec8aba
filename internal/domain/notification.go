package domain

import "time"

// RecipientRole tells delivery why a user is being notified.
type RecipientRole string

const (
	RecipientAssignee          RecipientRole = "assignee"
	RecipientBoardManager      RecipientRole = "board_manager"
	RecipientEscalationManager RecipientRole = "escalation_manager"
)

// Recipient is one user an advisory should reach, with the channels to use.
type Recipient struct {
	UserID   string        `json:"user_id"`
	Role     RecipientRole `json:"role"`
	Channels []string      `json:"channels"`
}

// NotificationAdvisory describes a crossed threshold on one SLA dimension.
// It is advisory only; delivery belongs to external consumers.
type NotificationAdvisory struct {
	TicketID         string           `json:"ticket_id"`
	TicketNumber     string           `json:"ticket_number"`
	Dimension        SLADimension     `json:"dimension"`
	ThresholdID      string           `json:"threshold_id"`
	ThresholdPercent int              `json:"threshold_percent"`
	Type             NotificationType `json:"type"`
	PercentElapsed   float64          `json:"percent_elapsed"`
	DueAt            time.Time        `json:"due_at"`
	EscalationLevel  EscalationLevel  `json:"escalation_level,omitempty"`
	Recipients       []Recipient      `json:"recipients"`
}
