package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/calendar"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
)

// DeadlineRequest is the ticket context a deadline is computed for.
type DeadlineRequest struct {
	ClientID   *string
	BoardID    *string
	PriorityID *string
	StartedAt  time.Time
}

// Deadlines are the due dates produced for a ticket context.
type Deadlines struct {
	PolicyID        string
	Source          PolicySource
	ScheduleID      *string
	AlwaysOpen      bool
	StartedAt       time.Time
	ResponseDueAt   *time.Time
	ResolutionDueAt *time.Time
	Target          *domain.SlaPolicyTarget
}

// TicketSLAService runs the SLA clock of individual tickets: it starts it with
// computed deadlines, records completions, and pauses or resumes it.
type TicketSLAService struct {
	deps      Dependencies
	logger    *zap.Logger
	calendars *CalendarService
	now       func() time.Time
}

// NewTicketSLAService constructs the service.
func NewTicketSLAService(deps Dependencies, calendars *CalendarService) *TicketSLAService {
	return &TicketSLAService{deps: deps, logger: deps.logger(), calendars: calendars, now: deps.clock()}
}

// ComputeDeadlines resolves the policy and target for the context and adds
// the target minutes in business time. It returns nil when no policy applies.
func (s *TicketSLAService) ComputeDeadlines(ctx context.Context, tenantID string, req DeadlineRequest) (_ *Deadlines, err error) {
	start := time.Now()
	defer func() { s.deps.observe("compute_deadlines", start, err) }()

	repos := s.deps.Store.Repositories()
	resolved, err := resolvePolicy(ctx, repos, tenantID, req.ClientID, req.BoardID)
	if err != nil || resolved == nil {
		return nil, err
	}
	deadlines := &Deadlines{
		PolicyID:  resolved.Policy.ID,
		Source:    resolved.Source,
		StartedAt: req.StartedAt,
	}
	if req.PriorityID == nil {
		return deadlines, nil
	}
	target, err := optional(repos.Targets.GetForPriority(ctx, tenantID, resolved.Policy.ID, *req.PriorityID))
	if err != nil || target == nil {
		return deadlines, err
	}
	deadlines.Target = target

	cal, scheduleID, err := s.calendarFor(ctx, tenantID, resolved.Policy, *target)
	if err != nil {
		return nil, err
	}
	deadlines.ScheduleID = scheduleID
	deadlines.AlwaysOpen = cal.IsAlwaysOpen()

	for _, dim := range domain.SLADimensions {
		minutes := target.MinutesFor(dim)
		if minutes == nil {
			continue
		}
		due, err := cal.AddBusinessMinutes(req.StartedAt, *minutes)
		if err != nil {
			return nil, calendarError(err, derefOr(scheduleID, ""))
		}
		due = due.UTC()
		switch dim {
		case domain.DimensionResponse:
			deadlines.ResponseDueAt = &due
		case domain.DimensionResolution:
			deadlines.ResolutionDueAt = &due
		}
	}
	return deadlines, nil
}

// calendarFor picks the target's always-open override, then the policy's
// schedule, then the tenant default schedule, and finally an always-open calendar.
func (s *TicketSLAService) calendarFor(ctx context.Context, tenantID string, policy domain.SlaPolicy, target domain.SlaPolicyTarget) (*calendar.Calendar, *string, error) {
	if target.Is24x7 {
		return calendar.AlwaysOpen(), nil, nil
	}
	if policy.ScheduleID != nil {
		cal, err := s.calendars.CalendarFor(ctx, tenantID, *policy.ScheduleID)
		if err != nil {
			return nil, nil, err
		}
		return cal, policy.ScheduleID, nil
	}
	schedule, err := s.calendars.GetDefaultSchedule(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if schedule == nil {
		return calendar.AlwaysOpen(), nil, nil
	}
	cal, err := calendar.FromSchedule(*schedule, schedule.Holidays)
	if err != nil {
		return nil, nil, calendarError(err, schedule.ID)
	}
	return cal, &schedule.ID, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

func (s *TicketSLAService) load(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	ticket, err := s.deps.Store.Repositories().Tickets.Get(ctx, tenantID, ticketID)
	if err != nil {
		return nil, notFound(err, "ticket", ticketID)
	}
	return ticket, nil
}

// GetTicket returns the SLA view of a ticket.
func (s *TicketSLAService) GetTicket(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	return s.load(ctx, tenantID, ticketID)
}

// update runs change against the locked ticket row and writes the SLA columns
// back in the same transaction when change reports a modification.
func (s *TicketSLAService) update(ctx context.Context, tenantID, ticketID string, change func(ticket *domain.TicketSLA) (bool, error)) (*domain.TicketSLA, bool, error) {
	var (
		ticket  *domain.TicketSLA
		changed bool
	)
	err := s.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = repos.Tickets.GetForUpdate(ctx, tenantID, ticketID)
		if err != nil {
			return notFound(err, "ticket", ticketID)
		}
		if changed, err = change(ticket); err != nil || !changed {
			return err
		}
		return notFound(repos.Tickets.UpdateSLA(ctx, ticket), "ticket", ticketID)
	})
	if err != nil {
		return nil, false, err
	}
	return ticket, changed, nil
}

// StartClock resolves the ticket's policy and writes its start and due dates.
// A ticket no policy applies to has its SLA fields cleared.
func (s *TicketSLAService) StartClock(ctx context.Context, tenantID, ticketID string, startedAt time.Time) (*domain.TicketSLA, error) {
	if startedAt.IsZero() {
		startedAt = s.now()
	}
	startedAt = startedAt.UTC()

	var deadlines *Deadlines
	ticket, _, err := s.update(ctx, tenantID, ticketID, func(ticket *domain.TicketSLA) (bool, error) {
		var err error
		deadlines, err = s.ComputeDeadlines(ctx, tenantID, DeadlineRequest{
			ClientID:   ticket.ClientID,
			BoardID:    ticket.BoardID,
			PriorityID: ticket.PriorityID,
			StartedAt:  startedAt,
		})
		if err != nil {
			return false, err
		}

		ticket.SlaPausedAt = nil
		ticket.SlaResponseAt, ticket.SlaResponseMet = nil, nil
		ticket.SlaResolutionAt, ticket.SlaResolutionMet = nil, nil
		if deadlines == nil {
			ticket.SlaPolicyID = nil
			ticket.SlaStartedAt = nil
			ticket.SlaResponseDueAt = nil
			ticket.SlaResolutionDueAt = nil
		} else {
			ticket.SlaPolicyID = &deadlines.PolicyID
			ticket.SlaStartedAt = &startedAt
			ticket.SlaResponseDueAt = deadlines.ResponseDueAt
			ticket.SlaResolutionDueAt = deadlines.ResolutionDueAt
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if deadlines == nil {
		s.logger.Info("no sla policy applies", zap.String("tenant_id", tenantID), zap.String("ticket_id", ticketID))
		return ticket, nil
	}
	s.logger.Info("sla clock started",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.String("policy_id", deadlines.PolicyID),
		zap.String("source", string(deadlines.Source)))
	s.deps.publish(ctx, events.Event{
		Type:     events.EventClockStarted,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload: events.ClockStartedPayload{
			PolicyID:        deadlines.PolicyID,
			StartedAt:       startedAt,
			ResponseDueAt:   deadlines.ResponseDueAt,
			ResolutionDueAt: deadlines.ResolutionDueAt,
		},
	})
	return ticket, nil
}

// RecordResponse stores the first response time and whether it met the deadline.
func (s *TicketSLAService) RecordResponse(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.TicketSLA, error) {
	return s.complete(ctx, tenantID, ticketID, domain.DimensionResponse, at)
}

// RecordResolution stores the resolution time and whether it met the deadline.
func (s *TicketSLAService) RecordResolution(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.TicketSLA, error) {
	return s.complete(ctx, tenantID, ticketID, domain.DimensionResolution, at)
}

// complete keeps the first recorded completion; later calls are no-ops.
func (s *TicketSLAService) complete(ctx context.Context, tenantID, ticketID string, dim domain.SLADimension, at time.Time) (*domain.TicketSLA, error) {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var met *bool
	ticket, changed, err := s.update(ctx, tenantID, ticketID, func(ticket *domain.TicketSLA) (bool, error) {
		if !ticket.HasSLA() || ticket.CompletedAt(dim) != nil {
			return false, nil
		}
		if due := ticket.DueAt(dim); due != nil {
			ok := !at.After(*due)
			met = &ok
		}
		ticket.Complete(dim, at, met)
		return true, nil
	})
	if err != nil || !changed {
		return ticket, err
	}

	s.logger.Info("sla dimension completed",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.String("dimension", string(dim)),
		zap.Boolp("met", met))
	s.deps.publish(ctx, events.Event{
		Type:     events.EventDimensionCompleted,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload:  events.DimensionCompletedPayload{Dimension: dim, CompletedAt: at, Met: met},
	})
	return ticket, nil
}

// Pause freezes the SLA clock. Pausing a paused ticket changes nothing.
func (s *TicketSLAService) Pause(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.TicketSLA, error) {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()
	ticket, changed, err := s.update(ctx, tenantID, ticketID, func(ticket *domain.TicketSLA) (bool, error) {
		if !ticket.HasSLA() || ticket.IsPaused() {
			return false, nil
		}
		ticket.SlaPausedAt = &at
		return true, nil
	})
	if err != nil || !changed {
		return ticket, err
	}
	s.logger.Info("sla clock paused", zap.String("tenant_id", tenantID), zap.String("ticket_id", ticketID))
	s.deps.publish(ctx, events.Event{
		Type:     events.EventClockPaused,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload:  events.ClockPausedPayload{PausedAt: at},
	})
	return ticket, nil
}

// Resume restarts a paused clock. The start and every still-pending due date
// move forward by the paused wall-clock duration.
func (s *TicketSLAService) Resume(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.TicketSLA, error) {
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	var paused time.Duration
	ticket, changed, err := s.update(ctx, tenantID, ticketID, func(ticket *domain.TicketSLA) (bool, error) {
		if !ticket.IsPaused() {
			return false, nil
		}
		paused = at.Sub(*ticket.SlaPausedAt)
		if paused < 0 {
			return false, validation("resumed_at", "must not be before paused_at")
		}
		if ticket.SlaStartedAt != nil {
			shifted := ticket.SlaStartedAt.Add(paused)
			ticket.SlaStartedAt = &shifted
		}
		for _, dim := range domain.SLADimensions {
			if !ticket.Pending(dim) {
				continue
			}
			shifted := ticket.DueAt(dim).Add(paused)
			ticket.SetDueAt(dim, &shifted)
		}
		ticket.SlaPausedAt = nil
		return true, nil
	})
	if err != nil || !changed {
		return ticket, err
	}

	s.logger.Info("sla clock resumed",
		zap.String("tenant_id", tenantID),
		zap.String("ticket_id", ticketID),
		zap.Duration("paused", paused))
	s.deps.publish(ctx, events.Event{
		Type:     events.EventClockResumed,
		TenantID: tenantID,
		TicketID: ticketID,
		Payload:  events.ClockResumedPayload{ResumedAt: at, PausedMinutes: int(paused / time.Minute)},
	})
	return ticket, nil
}
