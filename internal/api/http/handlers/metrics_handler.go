package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// MetricsHandler serves SLA reporting endpoints.
type MetricsHandler struct {
	engine       *service.MetricsEngine
	defaultLimit int
	maxLimit     int
}

// NewMetricsHandler constructs handler. defaultLimit and maxLimit bound the
// at-risk list.
func NewMetricsHandler(engine *service.MetricsEngine, defaultLimit, maxLimit int) *MetricsHandler {
	return &MetricsHandler{engine: engine, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Compliance handles GET /metrics/compliance.
func (h *MetricsHandler) Compliance(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	filter, err := parseMetricsFilter(c)
	if err != nil {
		return err
	}
	rate, err := h.engine.ComplianceRate(c.UserContext(), tenantID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rate})
}

// BreachRate handles GET /metrics/breach-rate?by=priority|technician|client.
func (h *MetricsHandler) BreachRate(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	filter, err := parseMetricsFilter(c)
	if err != nil {
		return err
	}
	dim := domain.BreachDimension(c.Query("by", string(domain.BreachByPriority)))
	rates, err := h.engine.BreachRateByDimension(c.UserContext(), tenantID, dim, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rates})
}

// AtRisk handles GET /metrics/at-risk?limit=.
func (h *MetricsHandler) AtRisk(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	limit, err := parseIntQuery(c, "limit", h.defaultLimit)
	if err != nil {
		return err
	}
	if h.maxLimit > 0 && limit > h.maxLimit {
		return apperrors.NewValidationError("invalid query parameter", map[string]any{"limit": "exceeds maximum", "max": h.maxLimit})
	}
	tickets, err := h.engine.TicketsAtRisk(c.UserContext(), tenantID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": tickets})
}

// Overview handles GET /metrics/overview.
func (h *MetricsHandler) Overview(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	filter, err := parseMetricsFilter(c)
	if err != nil {
		return err
	}
	overview, err := h.engine.Overview(c.UserContext(), tenantID, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}

// Trend handles GET /metrics/trend?bucket=day|week.
func (h *MetricsHandler) Trend(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	filter, err := parseMetricsFilter(c)
	if err != nil {
		return err
	}
	bucket := domain.TrendBucket(c.Query("bucket", string(domain.TrendDaily)))
	points, err := h.engine.ComplianceTrend(c.UserContext(), tenantID, filter, bucket)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": points})
}
