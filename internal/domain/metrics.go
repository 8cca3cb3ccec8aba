package domain

import "time"

// MetricsFilter narrows metric queries. Nil fields do not filter.
type MetricsFilter struct {
	EnteredFrom *time.Time
	EnteredTo   *time.Time
	BoardID     *string
	ClientID    *string
	PriorityID  *string
	AssignedTo  *string
	PolicyID    *string
}

// ComplianceCounts carries the raw numbers behind compliance rates.
type ComplianceCounts struct {
	TotalTickets       int `json:"total_tickets"`
	ResponseMet        int `json:"response_met"`
	ResponseBreached   int `json:"response_breached"`
	ResolutionMet      int `json:"resolution_met"`
	ResolutionBreached int `json:"resolution_breached"`
}

// ComplianceRate is the compliance snapshot for a filter.
type ComplianceRate struct {
	OverallRate    float64          `json:"overall_rate"`
	ResponseRate   float64          `json:"response_rate"`
	ResolutionRate float64          `json:"resolution_rate"`
	Counts         ComplianceCounts `json:"counts"`
}

// BreachDimension selects how breach rates are grouped.
type BreachDimension string

const (
	BreachByPriority   BreachDimension = "priority"
	BreachByTechnician BreachDimension = "technician"
	BreachByClient     BreachDimension = "client"
)

// Valid reports whether the dimension is supported.
func (d BreachDimension) Valid() bool {
	switch d {
	case BreachByPriority, BreachByTechnician, BreachByClient:
		return true
	}
	return false
}

// BreachRate is one row of a breach-rate breakdown.
type BreachRate struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Total    int     `json:"total"`
	Breached int     `json:"breached"`
	Rate     float64 `json:"rate"`
}

// AtRiskTicket is one pending SLA dimension past the risk threshold.
type AtRiskTicket struct {
	TicketID         string       `json:"ticket_id"`
	TicketNumber     string       `json:"ticket_number"`
	Title            string       `json:"title"`
	Dimension        SLADimension `json:"dimension"`
	DueAt            time.Time    `json:"due_at"`
	PercentElapsed   float64      `json:"percent_elapsed"`
	MinutesRemaining int          `json:"minutes_remaining"`
	AssignedTo       *string      `json:"assigned_to,omitempty"`
	AssigneeName     string       `json:"assignee_name,omitempty"`
	ClientName       string       `json:"client_name,omitempty"`
	PriorityName     string       `json:"priority_name,omitempty"`
}

// AverageTimes compares actual and target minutes per dimension.
type AverageTimes struct {
	AvgResponseMinutes         float64 `json:"avg_response_minutes"`
	AvgResponseTargetMinutes   float64 `json:"avg_response_target_minutes"`
	AvgResolutionMinutes       float64 `json:"avg_resolution_minutes"`
	AvgResolutionTargetMinutes float64 `json:"avg_resolution_target_minutes"`
}

// SLAOverview is the combined dashboard snapshot.
type SLAOverview struct {
	Compliance      ComplianceRate `json:"compliance"`
	AverageTimes    AverageTimes   `json:"average_times"`
	ActiveTickets   int            `json:"active_tickets"`
	PausedTickets   int            `json:"paused_tickets"`
	BreachedTickets int            `json:"breached_tickets"`
	AtRiskTickets   int            `json:"at_risk_tickets"`
}

// TrendBucket is the granularity of a compliance trend.
type TrendBucket string

const (
	TrendDaily  TrendBucket = "day"
	TrendWeekly TrendBucket = "week"
)

// CompliancePoint is one period of a compliance trend.
type CompliancePoint struct {
	PeriodStart       time.Time `json:"period_start"`
	TicketCount       int       `json:"ticket_count"`
	BreachCount       int       `json:"breach_count"`
	CompliancePercent float64   `json:"compliance_percent"`
}
