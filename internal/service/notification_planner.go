package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// NotificationPlanner decides which notification thresholds a ticket has
// crossed and who should hear about it. It only advises; delivery is external.
type NotificationPlanner struct {
	deps   Dependencies
	logger *zap.Logger
	now    func() time.Time
}

// NewNotificationPlanner constructs the planner.
func NewNotificationPlanner(deps Dependencies) *NotificationPlanner {
	return &NotificationPlanner{deps: deps, logger: deps.logger(), now: deps.clock()}
}

// Evaluate returns one advisory per pending dimension that has crossed at
// least one threshold of the ticket's policy, and publishes each of them.
// Paused, closed and SLA-less tickets yield none.
func (p *NotificationPlanner) Evaluate(ctx context.Context, tenantID, ticketID string, now time.Time) (_ []domain.NotificationAdvisory, err error) {
	start := time.Now()
	defer func() { p.deps.observe("evaluate_thresholds", start, err) }()

	repos := p.deps.Store.Repositories()
	ticket, err := repos.Tickets.Get(ctx, tenantID, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	if now.IsZero() {
		now = p.now()
	}
	advisories, err := p.plan(ctx, repos, ticket, now)
	if err != nil {
		return nil, err
	}
	for i := range advisories {
		p.announce(ctx, tenantID, advisories[i])
	}
	return advisories, nil
}

// Sweep evaluates up to limit running tickets closest to a deadline.
func (p *NotificationPlanner) Sweep(ctx context.Context, tenantID string, limit int) (int, error) {
	if limit <= 0 {
		return 0, validation("limit", "must be positive")
	}
	repos := p.deps.Store.Repositories()
	candidates, err := repos.Tickets.ListRunning(ctx, tenantID, limit)
	if err != nil {
		return 0, err
	}
	now := p.now()
	total := 0
	for i := range candidates {
		advisories, err := p.plan(ctx, repos, &candidates[i], now)
		if err != nil {
			p.logger.Warn("evaluate thresholds",
				zap.String("tenant_id", tenantID),
				zap.String("ticket_id", candidates[i].TicketID),
				zap.Error(err))
			continue
		}
		for j := range advisories {
			p.announce(ctx, tenantID, advisories[j])
		}
		total += len(advisories)
	}
	return total, nil
}

func (p *NotificationPlanner) plan(ctx context.Context, repos repository.Repositories, ticket *domain.TicketSLA, now time.Time) ([]domain.NotificationAdvisory, error) {
	advisories := []domain.NotificationAdvisory{}
	if !ticket.HasSLA() || ticket.IsPaused() || ticket.IsClosed || ticket.SlaStartedAt == nil {
		return advisories, nil
	}
	thresholds, err := repos.Thresholds.ListByPolicy(ctx, ticket.TenantID, *ticket.SlaPolicyID)
	if err != nil || len(thresholds) == 0 {
		return advisories, err
	}
	target, err := p.targetFor(ctx, repos, ticket)
	if err != nil {
		return nil, err
	}

	for _, dim := range domain.SLADimensions {
		if !ticket.Pending(dim) {
			continue
		}
		due := *ticket.DueAt(dim)
		pct, ok := percentElapsed(*ticket.SlaStartedAt, due, now)
		if !ok {
			continue
		}
		threshold := highestCrossed(thresholds, pct)
		if threshold == nil {
			continue
		}
		level := target.EscalationLevelAt(pct)
		recipients, err := p.recipients(ctx, repos, ticket, *threshold, level)
		if err != nil {
			return nil, err
		}
		advisories = append(advisories, domain.NotificationAdvisory{
			TicketID:         ticket.TicketID,
			TicketNumber:     ticket.TicketNumber,
			Dimension:        dim,
			ThresholdID:      threshold.ID,
			ThresholdPercent: threshold.Percent,
			Type:             threshold.Type,
			PercentElapsed:   round1(pct),
			DueAt:            due,
			EscalationLevel:  level,
			Recipients:       recipients,
		})
	}
	return advisories, nil
}

// targetFor falls back to the default escalation percents when the ticket
// has no priority target.
func (p *NotificationPlanner) targetFor(ctx context.Context, repos repository.Repositories, ticket *domain.TicketSLA) (domain.SlaPolicyTarget, error) {
	fallback := domain.SlaPolicyTarget{
		Escalation1Percent: domain.DefaultEscalation1Percent,
		Escalation2Percent: domain.DefaultEscalation2Percent,
		Escalation3Percent: domain.DefaultEscalation3Percent,
	}
	if ticket.PriorityID == nil {
		return fallback, nil
	}
	target, err := optional(repos.Targets.GetForPriority(ctx, ticket.TenantID, *ticket.SlaPolicyID, *ticket.PriorityID))
	if err != nil || target == nil {
		return fallback, err
	}
	return *target, nil
}

// highestCrossed expects thresholds ordered by percent ascending.
func highestCrossed(thresholds []domain.SlaNotificationThreshold, pct float64) *domain.SlaNotificationThreshold {
	var crossed *domain.SlaNotificationThreshold
	for i := range thresholds {
		if float64(thresholds[i].Percent) <= pct {
			crossed = &thresholds[i]
		}
	}
	return crossed
}

// recipients lists each user once, under the first role that selected them.
func (p *NotificationPlanner) recipients(ctx context.Context, repos repository.Repositories, ticket *domain.TicketSLA, threshold domain.SlaNotificationThreshold, level domain.EscalationLevel) ([]domain.Recipient, error) {
	out := []domain.Recipient{}
	seen := map[string]bool{}
	add := func(userID string, role domain.RecipientRole, channels []string) {
		if userID == "" || seen[userID] {
			return
		}
		seen[userID] = true
		out = append(out, domain.Recipient{UserID: userID, Role: role, Channels: channels})
	}

	if threshold.NotifyAssignee && ticket.AssignedTo != nil {
		add(*ticket.AssignedTo, domain.RecipientAssignee, threshold.Channels)
	}
	if ticket.BoardID == nil {
		return out, nil
	}
	if threshold.NotifyBoardManager {
		managerID, err := optional(repos.Directory.BoardManagerID(ctx, ticket.TenantID, *ticket.BoardID))
		if err != nil {
			return nil, err
		}
		if managerID != nil {
			add(*managerID, domain.RecipientBoardManager, threshold.Channels)
		}
	}
	if threshold.NotifyEscalationManager && level.Valid() {
		manager, err := optional(repos.Escalations.GetByLevel(ctx, ticket.TenantID, *ticket.BoardID, level))
		if err != nil {
			return nil, err
		}
		if manager != nil {
			add(manager.UserID, domain.RecipientEscalationManager, manager.NotificationChannels)
		}
	}
	return out, nil
}

func (p *NotificationPlanner) announce(ctx context.Context, tenantID string, advisory domain.NotificationAdvisory) {
	if p.deps.Recorder != nil {
		p.deps.Recorder.RecordThresholdCrossed(string(advisory.Dimension), string(advisory.Type))
	}
	p.logger.Info("sla threshold crossed",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", advisory.TicketID),
		zap.String("dimension", string(advisory.Dimension)),
		zap.Int("threshold_percent", advisory.ThresholdPercent),
		zap.Int("escalation_level", int(advisory.EscalationLevel)),
		zap.Int("recipients", len(advisory.Recipients)))
	p.deps.publish(ctx, events.Event{
		Type:     events.EventThresholdCrossed,
		TenantID: tenantID,
		TicketID: advisory.TicketID,
		EntityID: advisory.ThresholdID,
		Payload:  advisory,
	})
}
