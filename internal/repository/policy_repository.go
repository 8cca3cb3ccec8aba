package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// PolicyRepository encapsulates SLA policy persistence.
type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.SlaPolicy) error
	Update(ctx context.Context, policy *domain.SlaPolicy) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.SlaPolicy, error)
	GetDefault(ctx context.Context, tenantID string) (*domain.SlaPolicy, error)
	List(ctx context.Context, tenantID string) ([]domain.SlaPolicy, error)
	Delete(ctx context.Context, tenantID, id string) error
	ClearDefault(ctx context.Context, tenantID string) (*string, error)
	MarkDefault(ctx context.Context, tenantID, id string) error
	CountReferences(ctx context.Context, tenantID, id string) (domain.PolicyReferences, error)
}

type policyRepository struct {
	db DBTX
}

// NewPolicyRepository instantiates repository.
func NewPolicyRepository(db DBTX) PolicyRepository {
	return &policyRepository{db: db}
}

const policyColumns = `id, tenant_id, name, description, is_default, business_hours_schedule_id, created_at, updated_at`

func (r *policyRepository) Create(ctx context.Context, p *domain.SlaPolicy) error {
	const query = `
        INSERT INTO sla_policies (tenant_id, name, description, is_default, business_hours_schedule_id)
        VALUES ($1,$2,$3,FALSE,$4)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, p.TenantID, p.Name, p.Description, p.ScheduleID).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *policyRepository) Update(ctx context.Context, p *domain.SlaPolicy) error {
	const query = `
        UPDATE sla_policies SET name=$1, description=$2, business_hours_schedule_id=$3, updated_at=NOW()
        WHERE tenant_id=$4 AND id=$5
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query, p.Name, p.Description, p.ScheduleID, p.TenantID, p.ID).Scan(&p.UpdatedAt)
}

func (r *policyRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.SlaPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE tenant_id=$1 AND id=$2`
	return scanPolicy(r.db.QueryRow(ctx, query, tenantID, id))
}

func (r *policyRepository) GetDefault(ctx context.Context, tenantID string) (*domain.SlaPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE tenant_id=$1 AND is_default`
	return scanPolicy(r.db.QueryRow(ctx, query, tenantID))
}

func (r *policyRepository) List(ctx context.Context, tenantID string) ([]domain.SlaPolicy, error) {
	query := `SELECT ` + policyColumns + ` FROM sla_policies WHERE tenant_id=$1 ORDER BY is_default DESC, name`
	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SlaPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func scanPolicy(row pgx.Row) (*domain.SlaPolicy, error) {
	var p domain.SlaPolicy
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.IsDefault, &p.ScheduleID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *policyRepository) Delete(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `DELETE FROM sla_policies WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

// ClearDefault must run inside a transaction; it takes the tenant's default
// lock and returns the id of the default it cleared, if any.
func (r *policyRepository) ClearDefault(ctx context.Context, tenantID string) (*string, error) {
	if err := lockTenantScope(ctx, r.db, "policy-default", tenantID); err != nil {
		return nil, err
	}
	var previous string
	err := r.db.QueryRow(ctx, `
        UPDATE sla_policies SET is_default=FALSE, updated_at=NOW()
        WHERE tenant_id=$1 AND is_default
        RETURNING id`, tenantID).Scan(&previous)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &previous, nil
}

func (r *policyRepository) MarkDefault(ctx context.Context, tenantID, id string) error {
	return mustAffect(r.db.Exec(ctx, `
        UPDATE sla_policies SET is_default=TRUE, updated_at=NOW()
        WHERE tenant_id=$1 AND id=$2`, tenantID, id))
}

func (r *policyRepository) CountReferences(ctx context.Context, tenantID, id string) (domain.PolicyReferences, error) {
	const query = `
        SELECT
            (SELECT COUNT(*) FROM clients WHERE tenant_id=$1 AND sla_policy_id=$2),
            (SELECT COUNT(*) FROM boards WHERE tenant_id=$1 AND sla_policy_id=$2),
            (SELECT COUNT(*) FROM tickets WHERE tenant_id=$1 AND sla_policy_id=$2)`
	var refs domain.PolicyReferences
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&refs.Clients, &refs.Boards, &refs.Tickets)
	return refs, err
}
