package domain

import "time"

// SLADimension enumerates the two clocks tracked per ticket.
type SLADimension string

const (
	DimensionResponse   SLADimension = "response"
	DimensionResolution SLADimension = "resolution"
)

// SLADimensions lists every dimension in evaluation order.
var SLADimensions = []SLADimension{DimensionResponse, DimensionResolution}

// TicketSLA is the SLA view of a ticket. The ticket itself is owned elsewhere;
// this engine reads it and writes only the Sla* fields.
type TicketSLA struct {
	TicketID     string
	TenantID     string
	TicketNumber string
	Title        string
	ClientID     *string
	ClientName   string
	BoardID      *string
	PriorityID   *string
	PriorityName string
	AssignedTo   *string
	AssigneeName string
	IsClosed     bool
	EnteredAt    time.Time

	SlaPolicyID        *string
	SlaStartedAt       *time.Time
	SlaPausedAt        *time.Time
	SlaResponseAt      *time.Time
	SlaResponseDueAt   *time.Time
	SlaResponseMet     *bool
	SlaResolutionAt    *time.Time
	SlaResolutionDueAt *time.Time
	SlaResolutionMet   *bool
}

// DueAt returns the deadline for the dimension, if any.
func (t *TicketSLA) DueAt(dim SLADimension) *time.Time {
	switch dim {
	case DimensionResponse:
		return t.SlaResponseDueAt
	case DimensionResolution:
		return t.SlaResolutionDueAt
	}
	return nil
}

// CompletedAt returns when the dimension was satisfied, if it was.
func (t *TicketSLA) CompletedAt(dim SLADimension) *time.Time {
	switch dim {
	case DimensionResponse:
		return t.SlaResponseAt
	case DimensionResolution:
		return t.SlaResolutionAt
	}
	return nil
}

// Met returns the recorded outcome for the dimension.
func (t *TicketSLA) Met(dim SLADimension) *bool {
	switch dim {
	case DimensionResponse:
		return t.SlaResponseMet
	case DimensionResolution:
		return t.SlaResolutionMet
	}
	return nil
}

// SetDueAt replaces the deadline for the dimension.
func (t *TicketSLA) SetDueAt(dim SLADimension, due *time.Time) {
	switch dim {
	case DimensionResponse:
		t.SlaResponseDueAt = due
	case DimensionResolution:
		t.SlaResolutionDueAt = due
	}
}

// Complete records the completion time and outcome for the dimension.
func (t *TicketSLA) Complete(dim SLADimension, at time.Time, met *bool) {
	switch dim {
	case DimensionResponse:
		t.SlaResponseAt = &at
		t.SlaResponseMet = met
	case DimensionResolution:
		t.SlaResolutionAt = &at
		t.SlaResolutionMet = met
	}
}

// Pending reports whether the dimension has a deadline and no completion yet.
func (t *TicketSLA) Pending(dim SLADimension) bool {
	return t.DueAt(dim) != nil && t.CompletedAt(dim) == nil
}

// IsPaused reports whether the SLA clock is frozen.
func (t *TicketSLA) IsPaused() bool {
	return t.SlaPausedAt != nil
}

// HasSLA reports whether a policy was applied to the ticket.
func (t *TicketSLA) HasSLA() bool {
	return t.SlaPolicyID != nil
}

// Breached reports whether either dimension was recorded as missed.
func (t *TicketSLA) Breached() bool {
	return (t.SlaResponseMet != nil && !*t.SlaResponseMet) ||
		(t.SlaResolutionMet != nil && !*t.SlaResolutionMet)
}
