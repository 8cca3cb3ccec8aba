package repository

import (
	"context"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TargetRepository persists per-priority targets of a policy.
type TargetRepository interface {
	Upsert(ctx context.Context, target *domain.SlaPolicyTarget) error
	ListByPolicy(ctx context.Context, tenantID, policyID string) ([]domain.SlaPolicyTarget, error)
	GetForPriority(ctx context.Context, tenantID, policyID, priorityID string) (*domain.SlaPolicyTarget, error)
	Delete(ctx context.Context, tenantID, id string) error
	DeleteByPolicy(ctx context.Context, tenantID, policyID string) error
}

type targetRepository struct {
	db DBTX
}

// NewTargetRepository instantiates repository.
func NewTargetRepository(db DBTX) TargetRepository {
	return &targetRepository{db: db}
}

const targetColumns = `id, tenant_id, sla_policy_id, priority_id, response_time_minutes, resolution_time_minutes,
               escalation_1_percent, escalation_2_percent, escalation_3_percent, is_24x7, created_at, updated_at`

// Upsert inserts or replaces the target for (policy, priority).
func (r *targetRepository) Upsert(ctx context.Context, t *domain.SlaPolicyTarget) error {
	const query = `
        INSERT INTO sla_policy_targets (tenant_id, sla_policy_id, priority_id, response_time_minutes, resolution_time_minutes,
            escalation_1_percent, escalation_2_percent, escalation_3_percent, is_24x7)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (tenant_id, sla_policy_id, priority_id) DO UPDATE SET
            response_time_minutes=EXCLUDED.response_time_minutes,
            resolution_time_minutes=EXCLUDED.resolution_time_minutes,
            escalation_1_percent=EXCLUDED.escalation_1_percent,
            escalation_2_percent=EXCLUDED.escalation_2_percent,
            escalation_3_percent=EXCLUDED.escalation_3_percent,
            is_24x7=EXCLUDED.is_24x7,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		t.TenantID,
		t.PolicyID,
		t.PriorityID,
		t.ResponseMinutes,
		t.ResolutionMinutes,
		t.Escalation1Percent,
		t.Escalation2Percent,
		t.Escalation3Percent,
		t.Is24x7,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

func (r *targetRepository) ListByPolicy(ctx context.Context, tenantID, policyID string) ([]domain.SlaPolicyTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM sla_policy_targets
        WHERE tenant_id=$1 AND sla_policy_id=$2 ORDER BY priority_id`
	rows, err := r.db.Query(ctx, query, tenantID, policyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaPolicyTarget
	for rows.Next() {
		var t domain.SlaPolicyTarget
		if err := rows.Scan(
			&t.ID,
			&t.TenantID,
			&t.PolicyID,
			&t.PriorityID,
			&t.ResponseMinutes,
			&t.ResolutionMinutes,
			&t.Escalation1Percent,
			&t.Escalation2Percent,
			&t.Escalation3Percent,
			&t.Is24x7,
			&t.CreatedAt,
			&t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func (r *targetRepository) GetForPriority(ctx context.Context, tenantID, policyID, priorityID string) (*domain.SlaPolicyTarget, error) {
	query := `SELECT ` + targetColumns + ` FROM sla_policy_targets
        WHERE tenant_id=$1 AND sla_policy_id=$2 AND priority_id=$3`
	var t domain.SlaPolicyTarget
	if err := r.db.QueryRow(ctx, query, tenantID, policyID, priorityID).Scan(
		&t.ID,
		&t.TenantID,
		&t.PolicyID,
		&t.PriorityID,
		&t.ResponseMinutes,
		&t.ResolutionMinutes,
		&t.Escalation1Percent,
		&t.Escalation2Percent,
		&t.Escalation3Percent,
		&t.Is24x7,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *targetRepository) Delete(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `DELETE FROM sla_policy_targets WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *targetRepository) DeleteByPolicy(ctx context.Context, tenantID, policyID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM sla_policy_targets WHERE tenant_id=$1 AND sla_policy_id=$2`, tenantID, policyID)
	return err
}
