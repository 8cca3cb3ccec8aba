package service

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// Elapsed-percent thresholds for the at-risk list and the stricter overview count.
const (
	AtRiskPercent         = 50.0
	OverviewAtRiskPercent = 75.0
)

// MetricsEngine computes compliance, breach and at-risk statistics on demand.
// Nothing is cached; every call reads the current ticket state.
type MetricsEngine struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewMetricsEngine constructs the engine.
func NewMetricsEngine(deps Dependencies) *MetricsEngine {
	return &MetricsEngine{deps: deps, logger: deps.logger(), now: deps.clock()}
}

// ComplianceRate returns met/breached rates for the filtered tickets.
func (m *MetricsEngine) ComplianceRate(ctx context.Context, tenantID string, filter domain.MetricsFilter) (*domain.ComplianceRate, error) {
	start := time.Now()
	rows, err := m.deps.Store.Repositories().Tickets.ListForMetrics(ctx, tenantID, filter)
	m.deps.observe("compliance_rate", start, err)
	if err != nil {
		return nil, err
	}
	rate := computeCompliance(rows)
	return &rate, nil
}

func hasOutcome(t *domain.TicketSLA) bool {
	return t.HasSLA() && (t.SlaResponseMet != nil || t.SlaResolutionMet != nil)
}

func computeCompliance(rows []repository.MetricsRow) domain.ComplianceRate {
	var counts domain.ComplianceCounts
	for i := range rows {
		t := &rows[i].TicketSLA
		if !hasOutcome(t) {
			continue
		}
		counts.TotalTickets++
		if met := t.SlaResponseMet; met != nil {
			if *met {
				counts.ResponseMet++
			} else {
				counts.ResponseBreached++
			}
		}
		if met := t.SlaResolutionMet; met != nil {
			if *met {
				counts.ResolutionMet++
			} else {
				counts.ResolutionBreached++
			}
		}
	}
	response := ratePercent(counts.ResponseMet, counts.ResponseMet+counts.ResponseBreached)
	resolution := ratePercent(counts.ResolutionMet, counts.ResolutionMet+counts.ResolutionBreached)
	return domain.ComplianceRate{
		OverallRate:    round1((response + resolution) / 2),
		ResponseRate:   round1(response),
		ResolutionRate: round1(resolution),
		Counts:         counts,
	}
}

// ratePercent treats an empty denominator as fully compliant. The result is
// unrounded so averages of rates round only once.
func ratePercent(part, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(part) / float64(total) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// breachGroupKey selects the grouping id and label for a breach dimension.
func breachGroupKey(dim domain.BreachDimension, t *domain.TicketSLA) (id, name string) {
	var ref *string
	switch dim {
	case domain.BreachByPriority:
		ref, name = t.PriorityID, t.PriorityName
	case domain.BreachByTechnician:
		ref, name = t.AssignedTo, t.AssigneeName
	case domain.BreachByClient:
		ref, name = t.ClientID, t.ClientName
	}
	if ref == nil {
		return "", "Unassigned"
	}
	return *ref, name
}

// BreachRateByDimension groups breached and total counts by priority,
// technician or client. A ticket is breached when either dimension was missed.
func (m *MetricsEngine) BreachRateByDimension(ctx context.Context, tenantID string, dim domain.BreachDimension, filter domain.MetricsFilter) ([]domain.BreachRate, error) {
	if !dim.Valid() {
		return nil, validation("dimension", "must be priority, technician or client")
	}
	start := time.Now()
	rows, err := m.deps.Store.Repositories().Tickets.ListForMetrics(ctx, tenantID, filter)
	m.deps.observe("breach_rate", start, err)
	if err != nil {
		return nil, err
	}
	return computeBreachRates(dim, rows), nil
}

func computeBreachRates(dim domain.BreachDimension, rows []repository.MetricsRow) []domain.BreachRate {
	groups := make(map[string]*domain.BreachRate)
	for i := range rows {
		t := &rows[i].TicketSLA
		if !hasOutcome(t) {
			continue
		}
		id, name := breachGroupKey(dim, t)
		g, ok := groups[id]
		if !ok {
			g = &domain.BreachRate{ID: id, Name: name}
			groups[id] = g
		}
		g.Total++
		if t.Breached() {
			g.Breached++
		}
	}

	result := make([]domain.BreachRate, 0, len(groups))
	for _, g := range groups {
		g.Rate = round1(float64(g.Breached) / float64(g.Total) * 100)
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Rate != result[j].Rate {
			return result[i].Rate > result[j].Rate
		}
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// percentElapsed measures wall-clock progress from start toward due.
// ok is false when the window is empty.
func percentElapsed(start, due, now time.Time) (float64, bool) {
	total := due.Sub(start)
	if total <= 0 {
		return 0, false
	}
	return float64(now.Sub(start)) / float64(total) * 100, true
}

// riskyDimensions returns the pending dimensions of an open, running ticket
// whose elapsed percent is in [minPercent, 100).
func riskyDimensions(t *domain.TicketSLA, now time.Time, minPercent float64) []domain.AtRiskTicket {
	if t.IsClosed || t.IsPaused() || t.SlaStartedAt == nil {
		return nil
	}
	var out []domain.AtRiskTicket
	for _, dim := range domain.SLADimensions {
		if !t.Pending(dim) {
			continue
		}
		due := *t.DueAt(dim)
		pct, ok := percentElapsed(*t.SlaStartedAt, due, now)
		if !ok || pct < minPercent || pct >= 100 {
			continue
		}
		out = append(out, domain.AtRiskTicket{
			TicketID:         t.TicketID,
			TicketNumber:     t.TicketNumber,
			Title:            t.Title,
			Dimension:        dim,
			DueAt:            due,
			PercentElapsed:   round1(pct),
			MinutesRemaining: int(due.Sub(now) / time.Minute),
			AssignedTo:       t.AssignedTo,
			AssigneeName:     t.AssigneeName,
			ClientName:       t.ClientName,
			PriorityName:     t.PriorityName,
		})
	}
	return out
}

// TicketsAtRisk lists pending SLA dimensions that are at least half elapsed
// but not yet overdue, most urgent first. At most 2×limit tickets are examined.
func (m *MetricsEngine) TicketsAtRisk(ctx context.Context, tenantID string, limit int) ([]domain.AtRiskTicket, error) {
	if limit <= 0 {
		return nil, validation("limit", "must be positive")
	}
	start := time.Now()
	now := m.now()
	candidates, err := m.deps.Store.Repositories().Tickets.ListAtRiskCandidates(ctx, tenantID, now, 2*limit)
	m.deps.observe("tickets_at_risk", start, err)
	if err != nil {
		return nil, err
	}

	var result []domain.AtRiskTicket
	for i := range candidates {
		result = append(result, riskyDimensions(&candidates[i], now, AtRiskPercent)...)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].MinutesRemaining != result[j].MinutesRemaining {
			return result[i].MinutesRemaining < result[j].MinutesRemaining
		}
		return result[i].DueAt.Before(result[j].DueAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	if result == nil {
		result = []domain.AtRiskTicket{}
	}
	return result, nil
}

// Overview combines compliance, average times, state counts and the stricter
// at-risk count for the filtered tickets.
func (m *MetricsEngine) Overview(ctx context.Context, tenantID string, filter domain.MetricsFilter) (*domain.SLAOverview, error) {
	start := time.Now()
	rows, err := m.deps.Store.Repositories().Tickets.ListForMetrics(ctx, tenantID, filter)
	m.deps.observe("overview", start, err)
	if err != nil {
		return nil, err
	}

	now := m.now()
	overview := &domain.SLAOverview{
		Compliance:   computeCompliance(rows),
		AverageTimes: computeAverageTimes(rows),
	}
	for i := range rows {
		t := &rows[i].TicketSLA
		if t.Breached() || overdue(t, now) {
			overview.BreachedTickets++
		}
		if t.IsClosed {
			continue
		}
		if t.IsPaused() {
			overview.PausedTickets++
			continue
		}
		overview.ActiveTickets++
		if len(riskyDimensions(t, now, OverviewAtRiskPercent)) > 0 {
			overview.AtRiskTickets++
		}
	}
	return overview, nil
}

// overdue reports a pending deadline that has already passed on a running ticket.
func overdue(t *domain.TicketSLA, now time.Time) bool {
	if t.IsClosed || t.IsPaused() {
		return false
	}
	for _, dim := range domain.SLADimensions {
		if t.Pending(dim) && now.After(*t.DueAt(dim)) {
			return true
		}
	}
	return false
}

type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.count++
}

func (m mean) value() float64 {
	if m.count == 0 {
		return 0
	}
	return round1(m.sum / float64(m.count))
}

// computeAverageTimes averages wall-clock minutes from clock start to
// completion, and the configured target minutes, per dimension.
func computeAverageTimes(rows []repository.MetricsRow) domain.AverageTimes {
	var response, responseTarget, resolution, resolutionTarget mean
	for i := range rows {
		row := &rows[i]
		if started := row.SlaStartedAt; started != nil {
			if at := row.SlaResponseAt; at != nil {
				response.add(at.Sub(*started).Minutes())
			}
			if at := row.SlaResolutionAt; at != nil {
				resolution.add(at.Sub(*started).Minutes())
			}
		}
		if row.ResponseTargetMinutes != nil {
			responseTarget.add(float64(*row.ResponseTargetMinutes))
		}
		if row.ResolutionTargetMinutes != nil {
			resolutionTarget.add(float64(*row.ResolutionTargetMinutes))
		}
	}
	return domain.AverageTimes{
		AvgResponseMinutes:         response.value(),
		AvgResponseTargetMinutes:   responseTarget.value(),
		AvgResolutionMinutes:       resolution.value(),
		AvgResolutionTargetMinutes: resolutionTarget.value(),
	}
}

// ComplianceTrend buckets tickets with an outcome by the day or ISO week they
// entered, in UTC, and reports per-period compliance.
func (m *MetricsEngine) ComplianceTrend(ctx context.Context, tenantID string, filter domain.MetricsFilter, bucket domain.TrendBucket) ([]domain.CompliancePoint, error) {
	if bucket != domain.TrendDaily && bucket != domain.TrendWeekly {
		return nil, validation("bucket", "must be day or week")
	}
	start := time.Now()
	rows, err := m.deps.Store.Repositories().Tickets.ListForMetrics(ctx, tenantID, filter)
	m.deps.observe("compliance_trend", start, err)
	if err != nil {
		return nil, err
	}
	return computeTrend(rows, bucket), nil
}

func computeTrend(rows []repository.MetricsRow, bucket domain.TrendBucket) []domain.CompliancePoint {
	points := make(map[time.Time]*domain.CompliancePoint)
	for i := range rows {
		t := &rows[i].TicketSLA
		if !hasOutcome(t) {
			continue
		}
		period := periodStart(t.EnteredAt, bucket)
		p, ok := points[period]
		if !ok {
			p = &domain.CompliancePoint{PeriodStart: period}
			points[period] = p
		}
		p.TicketCount++
		if t.Breached() {
			p.BreachCount++
		}
	}

	result := make([]domain.CompliancePoint, 0, len(points))
	for _, p := range points {
		p.CompliancePercent = round1(ratePercent(p.TicketCount-p.BreachCount, p.TicketCount))
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result
}

func periodStart(t time.Time, bucket domain.TrendBucket) time.Time {
	u := t.UTC()
	day := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	if bucket == domain.TrendDaily {
		return day
	}
	// weeks start on Monday
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
