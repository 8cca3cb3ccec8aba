package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/spec-kit/sla-engine/internal/auth"
	"github.com/spec-kit/sla-engine/internal/domain"
	apperrors "github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

const dateLayout = "2006-01-02"

// tenantOf returns the tenant of the authenticated caller.
func tenantOf(c *fiber.Ctx) (string, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.TenantID == "" {
		return "", apperrors.NewUnauthorized("tenant required")
	}
	return principal.TenantID, nil
}

// tenantAndID returns the caller's tenant and the :id path parameter, which
// must be a UUID.
func tenantAndID(c *fiber.Ctx) (string, string, error) {
	tenantID, err := tenantOf(c)
	if err != nil {
		return "", "", err
	}
	id, err := parseUUID("id", c.Params("id"))
	if err != nil {
		return "", "", err
	}
	return tenantID, id, nil
}

func parseUUID(field, val string) (string, error) {
	parsed, err := uuid.Parse(val)
	if err != nil {
		return "", apperrors.NewValidationError("invalid identifier", map[string]any{field: "must be a UUID"})
	}
	return parsed.String(), nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be an integer"})
	}
	return parsed, nil
}

// parseTimeQuery reads an RFC 3339 instant. Missing values yield nil.
func parseTimeQuery(c *fiber.Ctx, key string) (*time.Time, error) {
	val := c.Query(key)
	if val == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid query parameter", map[string]any{key: "must be an RFC 3339 timestamp"})
	}
	return &parsed, nil
}

func requireTimeQuery(c *fiber.Ctx, key string) (time.Time, error) {
	parsed, err := parseTimeQuery(c, key)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return time.Time{}, apperrors.NewValidationError("missing query parameter", map[string]any{key: "required"})
	}
	return *parsed, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	if val := strings.TrimSpace(c.Query(key)); val != "" {
		return &val
	}
	return nil
}

func parseMetricsFilter(c *fiber.Ctx) (domain.MetricsFilter, error) {
	from, err := parseTimeQuery(c, "entered_from")
	if err != nil {
		return domain.MetricsFilter{}, err
	}
	to, err := parseTimeQuery(c, "entered_to")
	if err != nil {
		return domain.MetricsFilter{}, err
	}
	return domain.MetricsFilter{
		EnteredFrom: from,
		EnteredTo:   to,
		BoardID:     optionalQuery(c, "board_id"),
		ClientID:    optionalQuery(c, "client_id"),
		PriorityID:  optionalQuery(c, "priority_id"),
		AssignedTo:  optionalQuery(c, "assigned_to"),
		PolicyID:    optionalQuery(c, "policy_id"),
	}, nil
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
