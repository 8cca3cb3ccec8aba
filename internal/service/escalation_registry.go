package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-engine/internal/domain"
	"github.com/spec-kit/sla-engine/internal/events"
	"github.com/spec-kit/sla-engine/internal/repository"
	"github.com/spec-kit/sla-engine/pkg/util/errorutil"
)

// LevelConfig configures one escalation level of a board. A nil UserID
// removes the level; empty Channels take the defaults.
type LevelConfig struct {
	Level    domain.EscalationLevel
	UserID   *string
	Channels []string
}

// EscalationRegistry owns per-board escalation managers.
type EscalationRegistry struct {
	deps   Dependencies
	logger *zap.Logger
}

// NewEscalationRegistry constructs the service.
func NewEscalationRegistry(deps Dependencies) *EscalationRegistry {
	return &EscalationRegistry{deps: deps, logger: deps.logger()}
}

func validateLevelConfigs(configs []LevelConfig) error {
	if len(configs) == 0 {
		return validation("levels", "at least one level is required")
	}
	if len(configs) > 3 {
		return validation("levels", "at most three levels")
	}
	seen := make(map[domain.EscalationLevel]bool, len(configs))
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Level.Valid() {
			return validation("escalation_level", "must be 1, 2 or 3")
		}
		if seen[cfg.Level] {
			return validation("escalation_level", "duplicate level in batch")
		}
		seen[cfg.Level] = true
		if cfg.UserID != nil && strings.TrimSpace(*cfg.UserID) == "" {
			return validation("user_id", "must not be blank")
		}
		for _, ch := range cfg.Channels {
			if !channelPattern.MatchString(ch) {
				return validation("notification_channels", "invalid channel "+ch)
			}
		}
	}
	return nil
}

// SetBoardEscalationManagers applies a batch of level configurations. Every
// level is validated, including user existence, before anything is written,
// and the writes share one transaction.
func (r *EscalationRegistry) SetBoardEscalationManagers(ctx context.Context, tenantID, boardID string, configs []LevelConfig) ([]domain.EscalationManager, error) {
	if err := validateLevelConfigs(configs); err != nil {
		return nil, err
	}
	err := r.deps.Store.WithinTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Directory.BoardExists(ctx, tenantID, boardID)
		if err != nil {
			return err
		}
		if !ok {
			return errorutil.NewNotFound("board", map[string]any{"id": boardID})
		}
		for _, cfg := range configs {
			if cfg.UserID == nil {
				continue
			}
			ok, err := repos.Directory.UserExists(ctx, tenantID, *cfg.UserID)
			if err != nil {
				return err
			}
			if !ok {
				return errorutil.NewNotFound("user", map[string]any{"id": *cfg.UserID, "escalation_level": int(cfg.Level)})
			}
		}

		for _, cfg := range configs {
			if cfg.UserID == nil {
				if err := repos.Escalations.DeleteLevel(ctx, tenantID, boardID, cfg.Level); err != nil {
					return err
				}
				continue
			}
			channels := cfg.Channels
			if len(channels) == 0 {
				channels = domain.DefaultEscalationChannels()
			}
			manager := &domain.EscalationManager{
				TenantID:             tenantID,
				BoardID:              boardID,
				Level:                cfg.Level,
				UserID:               *cfg.UserID,
				NotificationChannels: channels,
			}
			if err := repos.Escalations.Upsert(ctx, manager); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	levels := make([]domain.EscalationLevel, 0, len(configs))
	for _, cfg := range configs {
		levels = append(levels, cfg.Level)
	}
	r.logger.Info("escalation managers updated",
		zap.String("tenant_id", tenantID),
		zap.String("board_id", boardID),
		zap.Int("levels", len(levels)))
	r.deps.publish(ctx, events.Event{
		Type:     events.EventEscalationUpdated,
		TenantID: tenantID,
		EntityID: boardID,
		Payload:  events.EscalationUpdatedPayload{BoardID: boardID, Levels: levels},
	})
	return r.GetBoardEscalationManagers(ctx, tenantID, boardID)
}

// GetBoardEscalationManagers returns the configured levels of a board, lowest first.
func (r *EscalationRegistry) GetBoardEscalationManagers(ctx context.Context, tenantID, boardID string) ([]domain.EscalationManager, error) {
	return r.deps.Store.Repositories().Escalations.ListByBoard(ctx, tenantID, boardID)
}

// ManagerForLevel returns the manager of a level, or nil when none is configured.
func (r *EscalationRegistry) ManagerForLevel(ctx context.Context, tenantID, boardID string, level domain.EscalationLevel) (*domain.EscalationManager, error) {
	if !level.Valid() {
		return nil, validation("escalation_level", "must be 1, 2 or 3")
	}
	return optional(r.deps.Store.Repositories().Escalations.GetByLevel(ctx, tenantID, boardID, level))
}
