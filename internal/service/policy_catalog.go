package service

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

const maxPercent = 1000

var channelPattern = regexp.MustCompile(`^[a-z][a-z_]*$`)

// PolicyCatalog owns SLA policies, their per-priority targets and their
// notification thresholds, and the assignment of policies to clients and boards.
type PolicyCatalog struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewPolicyCatalog constructs the service.
func NewPolicyCatalog(deps Dependencies) *PolicyCatalog {
	return &PolicyCatalog{deps: deps, logger: deps.logger()}
}

// PolicyInput describes a policy create or update.
type PolicyInput struct {
	Name        string
	Description string
	ScheduleID  *string
	// MakeDefault and SeedThresholds apply on create only.
	MakeDefault    bool
	SeedThresholds bool
}

// TargetInput is one per-priority target. Zero escalation percents take the defaults.
type TargetInput struct {
	PriorityID         string
	ResponseMinutes    *int
	ResolutionMinutes  *int
	Escalation1Percent int
	Escalation2Percent int
	Escalation3Percent int
	Is24x7             bool
}

// ThresholdInput describes a notification threshold.
type ThresholdInput struct {
	Percent                 int
	Type                    domain.NotificationType
	NotifyAssignee          bool
	NotifyBoardManager      bool
	NotifyEscalationManager bool
	Channels                []string
}

// PolicyDetail is a policy with its targets and thresholds.
type PolicyDetail struct {
	Policy     domain.SlaPolicy
	Targets    []domain.SlaPolicyTarget
	Thresholds []domain.SlaNotificationThreshold
}

func (in *PolicyInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return validation("name", "required")
	}
	if in.ScheduleID != nil && strings.TrimSpace(*in.ScheduleID) == "" {
		in.ScheduleID = nil
	}
	return nil
}

func (c *PolicyCatalog) requireSchedule(ctx context.Context, repos repository.Repositories, tenantID string, scheduleID *string) error {
	if scheduleID == nil {
		return nil
	}
	if _, err := repos.Schedules.GetByID(ctx, tenantID, *scheduleID); err != nil {
		return notFound(err, "schedule", *scheduleID)
	}
	return nil
}

// CreatePolicy stores a policy, optionally seeding the default thresholds and
// promoting it to the tenant default, all in one transaction.
func (c *PolicyCatalog) CreatePolicy(ctx context.Context, tenantID string, input PolicyInput) (*PolicyDetail, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	policy := &domain.SlaPolicy{
		TenantID:    tenantID,
		Name:        input.Name,
		Description: input.Description,
		ScheduleID:  input.ScheduleID,
	}
	var previous *string
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := c.requireSchedule(ctx, repos, tenantID, input.ScheduleID); err != nil {
			return err
		}
		if err := repos.Policies.Create(ctx, policy); err != nil {
			return err
		}
		if input.SeedThresholds {
			for _, seed := range domain.DefaultThresholds() {
				seed := seed
				seed.TenantID = tenantID
				seed.PolicyID = policy.ID
				if err := repos.Thresholds.Create(ctx, &seed); err != nil {
					return err
				}
			}
		}
		if input.MakeDefault {
			prev, err := promotePolicy(ctx, repos, tenantID, policy.ID)
			if err != nil {
				return err
			}
			previous = prev
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("sla policy created",
		zap.String("tenant_id", tenantID),
		zap.String("policy_id", policy.ID),
		zap.Bool("seeded_thresholds", input.SeedThresholds),
		zap.Bool("default", input.MakeDefault))
	if input.MakeDefault {
		c.publishDefaultChanged(ctx, tenantID, previous, policy.ID)
	}
	return c.GetPolicy(ctx, tenantID, policy.ID)
}

// UpdatePolicy changes name, description and schedule.
func (c *PolicyCatalog) UpdatePolicy(ctx context.Context, tenantID, policyID string, input PolicyInput) (*PolicyDetail, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		policy, err := repos.Policies.GetByID(ctx, tenantID, policyID)
		if err != nil {
			return notFound(err, "sla policy", policyID)
		}
		if err := c.requireSchedule(ctx, repos, tenantID, input.ScheduleID); err != nil {
			return err
		}
		policy.Name = input.Name
		policy.Description = input.Description
		policy.ScheduleID = input.ScheduleID
		return repos.Policies.Update(ctx, policy)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("sla policy updated", zap.String("tenant_id", tenantID), zap.String("policy_id", policyID))
	return c.GetPolicy(ctx, tenantID, policyID)
}

// GetPolicy returns the policy with its targets and thresholds.
func (c *PolicyCatalog) GetPolicy(ctx context.Context, tenantID, policyID string) (*PolicyDetail, error) {
	repos := c.deps.Store.Repositories()
	policy, err := repos.Policies.GetByID(ctx, tenantID, policyID)
	if err != nil {
		return nil, notFound(err, "sla policy", policyID)
	}
	targets, err := repos.Targets.ListByPolicy(ctx, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	thresholds, err := repos.Thresholds.ListByPolicy(ctx, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	return &PolicyDetail{Policy: *policy, Targets: targets, Thresholds: thresholds}, nil
}

// ListPolicies returns the tenant's policies, default first.
func (c *PolicyCatalog) ListPolicies(ctx context.Context, tenantID string) ([]domain.SlaPolicy, error) {
	return c.deps.Store.Repositories().Policies.List(ctx, tenantID)
}

// GetDefaultPolicy returns the tenant default, or nil when none is configured.
func (c *PolicyCatalog) GetDefaultPolicy(ctx context.Context, tenantID string) (*domain.SlaPolicy, error) {
	return optional(c.deps.Store.Repositories().Policies.GetDefault(ctx, tenantID))
}

// DeletePolicy removes an unreferenced policy together with its thresholds and targets.
func (c *PolicyCatalog) DeletePolicy(ctx context.Context, tenantID, policyID string) error {
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Policies.GetByID(ctx, tenantID, policyID); err != nil {
			return notFound(err, "sla policy", policyID)
		}
		refs, err := repos.Policies.CountReferences(ctx, tenantID, policyID)
		if err != nil {
			return err
		}
		if refs.Total() > 0 {
			return errorutil.NewConflict("sla policy is in use", map[string]any{
				"policy_id": policyID,
				"clients":   refs.Clients,
				"boards":    refs.Boards,
				"tickets":   refs.Tickets,
			})
		}
		if err := repos.Thresholds.DeleteByPolicy(ctx, tenantID, policyID); err != nil {
			return err
		}
		if err := repos.Targets.DeleteByPolicy(ctx, tenantID, policyID); err != nil {
			return err
		}
		return repos.Policies.Delete(ctx, tenantID, policyID)
	})
	if err != nil {
		return err
	}
	c.logger.Info("sla policy deleted", zap.String("tenant_id", tenantID), zap.String("policy_id", policyID))
	c.deps.publish(ctx, events.Event{Type: events.EventPolicyDeleted, TenantID: tenantID, EntityID: policyID})
	return nil
}

// PromotePolicyToDefault makes the policy the single tenant default.
func (c *PolicyCatalog) PromotePolicyToDefault(ctx context.Context, tenantID, policyID string) (*PolicyDetail, error) {
	var previous *string
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		prev, err := promotePolicy(ctx, repos, tenantID, policyID)
		previous = prev
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("default sla policy promoted", zap.String("tenant_id", tenantID), zap.String("policy_id", policyID))
	c.publishDefaultChanged(ctx, tenantID, previous, policyID)
	return c.GetPolicy(ctx, tenantID, policyID)
}

func promotePolicy(ctx context.Context, repos repository.Repositories, tenantID, policyID string) (*string, error) {
	if _, err := repos.Policies.GetByID(ctx, tenantID, policyID); err != nil {
		return nil, notFound(err, "sla policy", policyID)
	}
	previous, err := repos.Policies.ClearDefault(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if err := repos.Policies.MarkDefault(ctx, tenantID, policyID); err != nil {
		return nil, notFound(err, "sla policy", policyID)
	}
	return previous, nil
}

func (c *PolicyCatalog) publishDefaultChanged(ctx context.Context, tenantID string, previous *string, current string) {
	c.deps.publish(ctx, events.Event{
		Type:     events.EventDefaultPolicyChanged,
		TenantID: tenantID,
		EntityID: current,
		Payload:  events.DefaultChangedPayload{PreviousID: previous, CurrentID: current},
	})
}

func validatePercent(field string, v int) error {
	if v <= 0 || v > maxPercent {
		return validation(field, "must be between 1 and 1000")
	}
	return nil
}

func (in *TargetInput) normalize() error {
	in.PriorityID = strings.TrimSpace(in.PriorityID)
	if in.PriorityID == "" {
		return validation("priority_id", "required")
	}
	if in.ResponseMinutes != nil && *in.ResponseMinutes <= 0 {
		return validation("response_time_minutes", "must be positive")
	}
	if in.ResolutionMinutes != nil && *in.ResolutionMinutes <= 0 {
		return validation("resolution_time_minutes", "must be positive")
	}
	if in.Escalation1Percent == 0 {
		in.Escalation1Percent = domain.DefaultEscalation1Percent
	}
	if in.Escalation2Percent == 0 {
		in.Escalation2Percent = domain.DefaultEscalation2Percent
	}
	if in.Escalation3Percent == 0 {
		in.Escalation3Percent = domain.DefaultEscalation3Percent
	}
	if err := validatePercent("escalation_1_percent", in.Escalation1Percent); err != nil {
		return err
	}
	if err := validatePercent("escalation_2_percent", in.Escalation2Percent); err != nil {
		return err
	}
	return validatePercent("escalation_3_percent", in.Escalation3Percent)
}

// UpsertTargets inserts or updates one target per priority. The batch is
// validated up front and written in a single transaction.
func (c *PolicyCatalog) UpsertTargets(ctx context.Context, tenantID, policyID string, inputs []TargetInput) ([]domain.SlaPolicyTarget, error) {
	if len(inputs) == 0 {
		return nil, validation("targets", "at least one target is required")
	}
	seen := make(map[string]bool, len(inputs))
	for i := range inputs {
		if err := inputs[i].normalize(); err != nil {
			return nil, err
		}
		if seen[inputs[i].PriorityID] {
			return nil, validation("priority_id", "duplicate priority in batch")
		}
		seen[inputs[i].PriorityID] = true
	}

	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Policies.GetByID(ctx, tenantID, policyID); err != nil {
			return notFound(err, "sla policy", policyID)
		}
		for _, in := range inputs {
			ok, err := repos.Directory.PriorityExists(ctx, tenantID, in.PriorityID)
			if err != nil {
				return err
			}
			if !ok {
				return errorutil.NewNotFound("priority", map[string]any{"id": in.PriorityID})
			}
			target := &domain.SlaPolicyTarget{
				TenantID:           tenantID,
				PolicyID:           policyID,
				PriorityID:         in.PriorityID,
				ResponseMinutes:    in.ResponseMinutes,
				ResolutionMinutes:  in.ResolutionMinutes,
				Escalation1Percent: in.Escalation1Percent,
				Escalation2Percent: in.Escalation2Percent,
				Escalation3Percent: in.Escalation3Percent,
				Is24x7:             in.Is24x7,
			}
			if err := repos.Targets.Upsert(ctx, target); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("sla targets upserted",
		zap.String("tenant_id", tenantID),
		zap.String("policy_id", policyID),
		zap.Int("count", len(inputs)))
	return c.ListTargets(ctx, tenantID, policyID)
}

// ListTargets returns the targets of a policy.
func (c *PolicyCatalog) ListTargets(ctx context.Context, tenantID, policyID string) ([]domain.SlaPolicyTarget, error) {
	return c.deps.Store.Repositories().Targets.ListByPolicy(ctx, tenantID, policyID)
}

// DeleteTarget removes one target.
func (c *PolicyCatalog) DeleteTarget(ctx context.Context, tenantID, targetID string) error {
	if err := c.deps.Store.Repositories().Targets.Delete(ctx, tenantID, targetID); err != nil {
		return notFound(err, "sla target", targetID)
	}
	return nil
}

func (in *ThresholdInput) validate() error {
	if in.Percent < 0 || in.Percent > maxPercent {
		return validation("threshold_percent", "must be between 0 and 1000")
	}
	switch in.Type {
	case domain.NotificationWarning, domain.NotificationBreach:
	default:
		return validation("notification_type", "must be warning or breach")
	}
	if len(in.Channels) == 0 {
		return validation("channels", "at least one channel is required")
	}
	for _, ch := range in.Channels {
		if !channelPattern.MatchString(ch) {
			return validation("channels", "invalid channel "+ch)
		}
	}
	return nil
}

// CreateThreshold adds a notification threshold to a policy.
func (c *PolicyCatalog) CreateThreshold(ctx context.Context, tenantID, policyID string, input ThresholdInput) (*domain.SlaNotificationThreshold, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	threshold := &domain.SlaNotificationThreshold{
		TenantID:                tenantID,
		PolicyID:                policyID,
		Percent:                 input.Percent,
		Type:                    input.Type,
		NotifyAssignee:          input.NotifyAssignee,
		NotifyBoardManager:      input.NotifyBoardManager,
		NotifyEscalationManager: input.NotifyEscalationManager,
		Channels:                input.Channels,
	}
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Policies.GetByID(ctx, tenantID, policyID); err != nil {
			return notFound(err, "sla policy", policyID)
		}
		return repos.Thresholds.Create(ctx, threshold)
	})
	if err != nil {
		return nil, err
	}
	return threshold, nil
}

// UpdateThreshold replaces a threshold's settings.
func (c *PolicyCatalog) UpdateThreshold(ctx context.Context, tenantID, thresholdID string, input ThresholdInput) (*domain.SlaNotificationThreshold, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	var threshold *domain.SlaNotificationThreshold
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		existing, err := repos.Thresholds.GetByID(ctx, tenantID, thresholdID)
		if err != nil {
			return notFound(err, "sla threshold", thresholdID)
		}
		existing.Percent = input.Percent
		existing.Type = input.Type
		existing.NotifyAssignee = input.NotifyAssignee
		existing.NotifyBoardManager = input.NotifyBoardManager
		existing.NotifyEscalationManager = input.NotifyEscalationManager
		existing.Channels = input.Channels
		threshold = existing
		return repos.Thresholds.Update(ctx, existing)
	})
	if err != nil {
		return nil, err
	}
	return threshold, nil
}

// DeleteThreshold removes a threshold.
func (c *PolicyCatalog) DeleteThreshold(ctx context.Context, tenantID, thresholdID string) error {
	if err := c.deps.Store.Repositories().Thresholds.Delete(ctx, tenantID, thresholdID); err != nil {
		return notFound(err, "sla threshold", thresholdID)
	}
	return nil
}

// ListThresholds returns a policy's thresholds ordered by percent.
func (c *PolicyCatalog) ListThresholds(ctx context.Context, tenantID, policyID string) ([]domain.SlaNotificationThreshold, error) {
	return c.deps.Store.Repositories().Thresholds.ListByPolicy(ctx, tenantID, policyID)
}

// AssignClientPolicy sets or, with a nil policyID, clears a client's policy override.
func (c *PolicyCatalog) AssignClientPolicy(ctx context.Context, tenantID, clientID string, policyID *string) error {
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := requirePolicy(ctx, repos, tenantID, policyID); err != nil {
			return err
		}
		return notFound(repos.Directory.SetClientPolicy(ctx, tenantID, clientID, policyID), "client", clientID)
	})
	if err != nil {
		return err
	}
	c.logger.Info("client sla policy assigned",
		zap.String("tenant_id", tenantID),
		zap.String("client_id", clientID),
		zap.Stringp("policy_id", policyID))
	return nil
}

// AssignBoardPolicy sets or, with a nil policyID, clears a board's policy override.
func (c *PolicyCatalog) AssignBoardPolicy(ctx context.Context, tenantID, boardID string, policyID *string) error {
	err := c.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := requirePolicy(ctx, repos, tenantID, policyID); err != nil {
			return err
		}
		return notFound(repos.Directory.SetBoardPolicy(ctx, tenantID, boardID, policyID), "board", boardID)
	})
	if err != nil {
		return err
	}
	c.logger.Info("board sla policy assigned",
		zap.String("tenant_id", tenantID),
		zap.String("board_id", boardID),
		zap.Stringp("policy_id", policyID))
	return nil
}

func requirePolicy(ctx context.Context, repos repository.Repositories, tenantID string, policyID *string) error {
	if policyID == nil {
		return nil
	}
	if _, err := repos.Policies.GetByID(ctx, tenantID, *policyID); err != nil {
		return notFound(err, "sla policy", *policyID)
	}
	return nil
}
