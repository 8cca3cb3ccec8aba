package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-engine/internal/api/dto"
	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/service"
)

// PoliciesHandler exposes SLA policies, their targets and thresholds, and
// client or board assignments.
type PoliciesHandler struct {
	catalog  *service.PolicyCatalog
	resolver *service.PolicyResolver
}

// NewPoliciesHandler constructs handler.
func NewPoliciesHandler(catalog *service.PolicyCatalog, resolver *service.PolicyResolver) *PoliciesHandler {
	return &PoliciesHandler{catalog: catalog, resolver: resolver}
}

// ListPolicies handles GET /policies.
func (h *PoliciesHandler) ListPolicies(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	policies, err := h.catalog.ListPolicies(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	resp := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		resp = append(resp, policyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// CreatePolicy handles POST /policies.
func (h *PoliciesHandler) CreatePolicy(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	var req dto.PolicyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.catalog.CreatePolicy(c.UserContext(), tenantID, policyInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": policyDetailResponse(detail)})
}

// GetPolicy handles GET /policies/:id.
func (h *PoliciesHandler) GetPolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	detail, err := h.catalog.GetPolicy(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyDetailResponse(detail)})
}

// GetDefaultPolicy handles GET /policies/default.
func (h *PoliciesHandler) GetDefaultPolicy(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	policy, err := h.catalog.GetDefaultPolicy(c.UserContext(), tenantID)
	if err != nil {
		return err
	}
	if policy == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": policyResponse(policy)})
}

// UpdatePolicy handles PUT /policies/:id.
func (h *PoliciesHandler) UpdatePolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.PolicyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	detail, err := h.catalog.UpdatePolicy(c.UserContext(), tenantID, id, policyInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyDetailResponse(detail)})
}

// DeletePolicy handles DELETE /policies/:id.
func (h *PoliciesHandler) DeletePolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeletePolicy(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// PromotePolicy handles POST /policies/:id/default.
func (h *PoliciesHandler) PromotePolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	detail, err := h.catalog.PromotePolicyToDefault(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": policyDetailResponse(detail)})
}

// ListTargets handles GET /policies/:id/targets.
func (h *PoliciesHandler) ListTargets(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	targets, err := h.catalog.ListTargets(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": targetResponses(targets)})
}

// UpsertTargets handles PUT /policies/:id/targets.
func (h *PoliciesHandler) UpsertTargets(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.TargetsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	inputs := make([]service.TargetInput, 0, len(req.Targets))
	for _, t := range req.Targets {
		inputs = append(inputs, service.TargetInput{
			PriorityID:         t.PriorityID,
			ResponseMinutes:    t.ResponseMinutes,
			ResolutionMinutes:  t.ResolutionMinutes,
			Escalation1Percent: t.Escalation1Percent,
			Escalation2Percent: t.Escalation2Percent,
			Escalation3Percent: t.Escalation3Percent,
			Is24x7:             t.Is24x7,
		})
	}
	targets, err := h.catalog.UpsertTargets(c.UserContext(), tenantID, id, inputs)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": targetResponses(targets)})
}

// DeleteTarget handles DELETE /targets/:id.
func (h *PoliciesHandler) DeleteTarget(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteTarget(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListThresholds handles GET /policies/:id/thresholds.
func (h *PoliciesHandler) ListThresholds(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	thresholds, err := h.catalog.ListThresholds(c.UserContext(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": thresholdResponses(thresholds)})
}

// CreateThreshold handles POST /policies/:id/thresholds.
func (h *PoliciesHandler) CreateThreshold(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ThresholdRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	threshold, err := h.catalog.CreateThreshold(c.UserContext(), tenantID, id, thresholdInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": thresholdResponse(*threshold)})
}

// UpdateThreshold handles PUT /thresholds/:id.
func (h *PoliciesHandler) UpdateThreshold(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.ThresholdRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	threshold, err := h.catalog.UpdateThreshold(c.UserContext(), tenantID, id, thresholdInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": thresholdResponse(*threshold)})
}

// DeleteThreshold handles DELETE /thresholds/:id.
func (h *PoliciesHandler) DeleteThreshold(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	if err := h.catalog.DeleteThreshold(c.UserContext(), tenantID, id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignClientPolicy handles PUT /clients/:id/policy.
func (h *PoliciesHandler) AssignClientPolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.PolicyAssignmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.catalog.AssignClientPolicy(c.UserContext(), tenantID, id, req.PolicyID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AssignBoardPolicy handles PUT /boards/:id/policy.
func (h *PoliciesHandler) AssignBoardPolicy(c *fiber.Ctx) error {
	tenantID, id, err := tenantAndID(c)
	if err != nil {
		return err
	}
	var req dto.PolicyAssignmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := h.catalog.AssignBoardPolicy(c.UserContext(), tenantID, id, req.PolicyID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ResolvePolicy handles GET /policies/resolve?client_id=&board_id=.
func (h *PoliciesHandler) ResolvePolicy(c *fiber.Ctx) error {
	tenantID, err := tenantOf(c)
	if err != nil {
		return err
	}
	resolved, err := h.resolver.Resolve(c.UserContext(), tenantID, optionalQuery(c, "client_id"), optionalQuery(c, "board_id"))
	if err != nil {
		return err
	}
	if resolved == nil {
		return c.JSON(fiber.Map{"data": nil})
	}
	return c.JSON(fiber.Map{"data": dto.ResolvedPolicyResponse{
		Policy: policyResponse(&resolved.Policy),
		Source: string(resolved.Source),
	}})
}

func policyInput(req dto.PolicyRequest) service.PolicyInput {
	return service.PolicyInput{
		Name:           req.Name,
		Description:    req.Description,
		ScheduleID:     req.ScheduleID,
		MakeDefault:    req.MakeDefault,
		SeedThresholds: req.SeedThresholds,
	}
}

func thresholdInput(req dto.ThresholdRequest) service.ThresholdInput {
	return service.ThresholdInput{
		Percent:                 req.Percent,
		Type:                    domain.NotificationType(req.Type),
		NotifyAssignee:          req.NotifyAssignee,
		NotifyBoardManager:      req.NotifyBoardManager,
		NotifyEscalationManager: req.NotifyEscalationManager,
		Channels:                req.Channels,
	}
}

func policyResponse(p *domain.SlaPolicy) dto.PolicyResponse {
	return dto.PolicyResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		IsDefault:   p.IsDefault,
		ScheduleID:  p.ScheduleID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func policyDetailResponse(d *service.PolicyDetail) dto.PolicyResponse {
	resp := policyResponse(&d.Policy)
	resp.Targets = targetResponses(d.Targets)
	resp.Thresholds = thresholdResponses(d.Thresholds)
	return resp
}

func targetResponses(targets []domain.SlaPolicyTarget) []dto.TargetResponse {
	resp := make([]dto.TargetResponse, 0, len(targets))
	for _, t := range targets {
		resp = append(resp, dto.TargetResponse{
			ID:                 t.ID,
			PriorityID:         t.PriorityID,
			ResponseMinutes:    t.ResponseMinutes,
			ResolutionMinutes:  t.ResolutionMinutes,
			Escalation1Percent: t.Escalation1Percent,
			Escalation2Percent: t.Escalation2Percent,
			Escalation3Percent: t.Escalation3Percent,
			Is24x7:             t.Is24x7,
		})
	}
	return resp
}

func thresholdResponses(thresholds []domain.SlaNotificationThreshold) []dto.ThresholdResponse {
	resp := make([]dto.ThresholdResponse, 0, len(thresholds))
	for _, t := range thresholds {
		resp = append(resp, thresholdResponse(t))
	}
	return resp
}

func thresholdResponse(t domain.SlaNotificationThreshold) dto.ThresholdResponse {
	return dto.ThresholdResponse{
		ID:                      t.ID,
		Percent:                 t.Percent,
		Type:                    string(t.Type),
		NotifyAssignee:          t.NotifyAssignee,
		NotifyBoardManager:      t.NotifyBoardManager,
		NotifyEscalationManager: t.NotifyEscalationManager,
		Channels:                t.Channels,
	}
}
