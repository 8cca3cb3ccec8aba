package domain

import "time"

// EscalationLevel is one of three tiers of increasing severity.
type EscalationLevel int

const (
	EscalationLevel1 EscalationLevel = 1
	EscalationLevel2 EscalationLevel = 2
	EscalationLevel3 EscalationLevel = 3
)

// Valid reports whether the level is 1, 2 or 3.
func (l EscalationLevel) Valid() bool {
	return l >= EscalationLevel1 && l <= EscalationLevel3
}

// EscalationManager binds a user to a (board, level) pair.
type EscalationManager struct {
	ID                   string
	TenantID             string
	BoardID              string
	Level                EscalationLevel
	UserID               string
	NotificationChannels []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// DefaultEscalationChannels apply when a manager is configured without channels.
func DefaultEscalationChannels() []string {
	return []string{ChannelInApp, ChannelEmail}
}
