package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
)

// EscalationsHandler manages per-board escalation managers.
type EscalationsHandler struct {
	registry *service.EscalationRegistry
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(registry *service.EscalationRegistry) *EscalationsHandler {
	return &EscalationsHandler{registry: registry}
}

// GetManagers handles GET /boards/:id/escalation-managers.
func (h *EscalationsHandler) GetManagers(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	managers, err := h.registry.GetBoardEscalationManagers(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponses(managers)})
}

// SetManagers handles PUT /boards/:id/escalation-managers.
func (h *EscalationsHandler) SetManagers(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.EscalationManagersRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	configs := make([]service.LevelConfig, 0, len(req.Levels))
	for _, l := range req.Levels {
		configs = append(configs, service.LevelConfig{
			Level:    domain.EscalationLevel(l.Level),
			UserID:   l.UserID,
			Channels: l.Channels,
		})
	}
	managers, err := h.registry.SetBoardEscalationManagers(c.UserContext(), tenantID, id, configs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponses(managers)})
}

func escalationResponses(managers []domain.EscalationManager) []dto.EscalationManagerResponse {
	resp := make([]dto.EscalationManagerResponse, 0, len(managers))
	for _, m := range managers {
		resp = append(resp, dto.EscalationManagerResponse{
			ID:       m.ID,
			BoardID:  m.BoardID,
			Level:    int(m.Level),
			UserID:   m.UserID,
			Channels: m.NotificationChannels,
		})
	}
	return resp
}
