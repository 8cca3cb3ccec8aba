package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
)

// TicketClockHandler drives the SLA clock of tickets and evaluates thresholds.
type TicketClockHandler struct {
	clocks  *service.TicketSLAService
	planner *service.NotificationPlanner
}

// NewTicketClockHandler constructs handler.
func NewTicketClockHandler(clocks *service.TicketSLAService, planner *service.NotificationPlanner) *TicketClockHandler {
	return &TicketClockHandler{clocks: clocks, planner: planner}
}

type clockTransition func(ctx context.Context, tenantID, ticketID string, at time.Time) (*domain.TicketSLA, error)

func (h *TicketClockHandler) transition(c *fiber.Ctx, fn clockTransition) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ClockEventRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	ticket, err := fn(c.UserContext(), tenantID, id, timeOrZero(req.At))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSLAResponse(ticket)})
}

// GetTicket handles GET /tickets/:id.
func (h *TicketClockHandler) GetTicket(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	ticket, err := h.clocks.GetTicket(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketSLAResponse(ticket)})
}

// StartClock handles POST /tickets/:id/start.
func (h *TicketClockHandler) StartClock(c *fiber.Ctx) error {
	return h.transition(c, h.clocks.StartClock)
}

// RecordResponse handles POST /tickets/:id/response.
func (h *TicketClockHandler) RecordResponse(c *fiber.Ctx) error {
	return h.transition(c, h.clocks.RecordResponse)
}

// RecordResolution handles POST /tickets/:id/resolution.
func (h *TicketClockHandler) RecordResolution(c *fiber.Ctx) error {
	return h.transition(c, h.clocks.RecordResolution)
}

// Pause handles POST /tickets/:id/pause.
func (h *TicketClockHandler) Pause(c *fiber.Ctx) error {
	return h.transition(c, h.clocks.Pause)
}

// Resume handles POST /tickets/:id/resume.
func (h *TicketClockHandler) Resume(c *fiber.Ctx) error {
	return h.transition(c, h.clocks.Resume)
}

// Evaluate handles POST /tickets/:id/evaluate.
func (h *TicketClockHandler) Evaluate(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ClockEventRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	advisories, err := h.planner.Evaluate(c.UserContext(), tenantID, id, timeOrZero(req.At))
	if err != nil {
		return err
	}
	if advisories == nil {
		advisories = []domain.NotificationAdvisory{}
	}
	return c.JSON(fiber.Map{"data": advisories})
}

// Sweep handles POST /sweep?limit=.
func (h *TicketClockHandler) Sweep(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	limit, err := parseIntQuery(c, "limit", 100)
	if err != nil {
		return err
	}
	total, err := h.planner.Sweep(c.UserContext(), tenantID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"advisories": total}})
}

// ComputeDeadlines handles POST /deadlines.
func (h *TicketClockHandler) ComputeDeadlines(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req dto.DeadlineRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	startedAt := timeOrZero(req.StartedAt)
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	deadlines, err := h.clocks.ComputeDeadlines(c.UserContext(), tenantID, service.DeadlineRequest{
		ClientID:   req.ClientID,
		BoardID:    req.BoardID,
		PriorityID: req.PriorityID,
		StartedAt:  startedAt,
	})
	if err != nil {
		return err
	}
	if deadlines == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.DeadlineResponse{
		PolicyID:        deadlines.PolicyID,
		Source:          string(deadlines.Source),
		ScheduleID:      deadlines.ScheduleID,
		AlwaysOpen:      deadlines.AlwaysOpen,
		StartedAt:       deadlines.StartedAt,
		ResponseDueAt:   deadlines.ResponseDueAt,
		ResolutionDueAt: deadlines.ResolutionDueAt,
	}})
}

func ticketSLAResponse(t *domain.TicketSLA) dto.TicketSLAResponse {
	return dto.TicketSLAResponse{
		TicketID:        t.TicketID,
		PolicyID:        t.SlaPolicyID,
		StartedAt:       t.SlaStartedAt,
		PausedAt:        t.SlaPausedAt,
		ResponseAt:      t.SlaResponseAt,
		ResponseDueAt:   t.SlaResponseDueAt,
		ResponseMet:     t.SlaResponseMet,
		ResolutionAt:    t.SlaResolutionAt,
		ResolutionDueAt: t.SlaResolutionDueAt,
		ResolutionMet:   t.SlaResolutionMet,
		Breached:        t.Breached(),
	}
}
