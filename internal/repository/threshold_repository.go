package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// ThresholdRepository persists notification thresholds of a policy.
type ThresholdRepository interface {
	Create(ctx context.Context, threshold *domain.SlaNotificationThreshold) error
	Update(ctx context.Context, threshold *domain.SlaNotificationThreshold) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SlaNotificationThreshold, error)
	ListByPolicy(ctx context.Context, tenantID, policyID string) ([]domain.SlaNotificationThreshold, error)
	Delete(ctx context.Context, tenantID, id string) error
	DeleteByPolicy(ctx context.Context, tenantID, policyID string) error
}

type thresholdRepository struct {
	db DBTX
}

// NewThresholdRepository instantiates repository.
func NewThresholdRepository(db DBTX) ThresholdRepository {
	return &thresholdRepository{db: db}
}

const thresholdColumns = `id, tenant_id, sla_policy_id, threshold_percent, notification_type, notify_assignee,
               notify_board_manager, notify_escalation_manager, channels, created_at, updated_at`

func (r *thresholdRepository) Create(ctx context.Context, t *domain.SlaNotificationThreshold) error {
	const query = `
        INSERT INTO sla_notification_thresholds (tenant_id, sla_policy_id, threshold_percent, notification_type,
            notify_assignee, notify_board_manager, notify_escalation_manager, channels)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		t.TenantID,
		t.PolicyID,
		t.Percent,
		t.Type,
		t.NotifyAssignee,
		t.NotifyBoardManager,
		t.NotifyEscalationManager,
		t.Channels,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *thresholdRepository) Update(ctx context.Context, t *domain.SlaNotificationThreshold) error {
	const query = `
        UPDATE sla_notification_thresholds SET threshold_percent=$1, notification_type=$2, notify_assignee=$3,
            notify_board_manager=$4, notify_escalation_manager=$5, channels=$6, updated_at=NOW()
        WHERE tenant_id=$7 AND id=$8
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		t.Percent,
		t.Type,
		t.NotifyAssignee,
		t.NotifyBoardManager,
		t.NotifyEscalationManager,
		t.Channels,
		t.TenantID,
		t.ID,
	).Scan(&t.UpdatedAt)
}

func (r *thresholdRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SlaNotificationThreshold, error) {
	query := `SELECT ` + thresholdColumns + ` FROM sla_notification_thresholds WHERE tenant_id=$1 AND id=$2`
	return scanThreshold(r.db.QueryRow(ctx, query, tenantID, id))
}

// ListByPolicy returns thresholds ordered by ascending percent.
func (r *thresholdRepository) ListByPolicy(ctx context.Context, tenantID, policyID string) ([]domain.SlaNotificationThreshold, error) {
	query := `SELECT ` + thresholdColumns + ` FROM sla_notification_thresholds
        WHERE tenant_id=$1 AND sla_policy_id=$2 ORDER BY threshold_percent, created_at`
	rows, err := r.db.Query(ctx, query, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaNotificationThreshold
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func scanThreshold(row pgx.Row) (*domain.SlaNotificationThreshold, error) {
	var t domain.SlaNotificationThreshold
	if err := row.Scan(
		&t.ID,
		&t.TenantID,
		&t.PolicyID,
		&t.Percent,
		&t.Type,
		&t.NotifyAssignee,
		&t.NotifyBoardManager,
		&t.NotifyEscalationManager,
		&t.Channels,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *thresholdRepository) Delete(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `DELETE FROM sla_notification_thresholds WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *thresholdRepository) DeleteByPolicy(ctx context.Context, tenantID, policyID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sla_notification_thresholds WHERE tenant_id=$1 AND sla_policy_id=$2`, tenantID, policyID)
	return err
}
