package repository

import (
	"context"
)

// DirectoryRepository reads the collaborator entities this engine references
// but does not own: users, clients, boards and priorities. The only writes are
// the SLA policy assignments on clients and boards.
type DirectoryRepository interface {
	UserExists(ctx context.Context, tenantID, userID string) (bool, error)
	ClientExists(ctx context.Context, tenantID, clientID string) (bool, error)
	BoardExists(ctx context.Context, tenantID, boardID string) (bool, error)
	PriorityExists(ctx context.Context, tenantID, priorityID string) (bool, error)

	ClientPolicyID(ctx context.Context, tenantID, clientID string) (*string, error)
	BoardPolicyID(ctx context.Context, tenantID, boardID string) (*string, error)
	SetClientPolicy(ctx context.Context, tenantID, clientID string, policyID *string) error
	SetBoardPolicy(ctx context.Context, tenantID, boardID string, policyID *string) error

	BoardManagerID(ctx context.Context, tenantID, boardID string) (*string, error)
}

type directoryRepository struct {
	db DBTX
}

// NewDirectoryRepository returns a Postgres-backed implementation.
func NewDirectoryRepository(db DBTX) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *directoryRepository) UserExists(ctx context.Context, tenantID, userID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE tenant_id=$1 AND id=$2)`, tenantID, userID)
}

func (r *directoryRepository) ClientExists(ctx context.Context, tenantID, clientID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE tenant_id=$1 AND id=$2)`, tenantID, clientID)
}

func (r *directoryRepository) BoardExists(ctx context.Context, tenantID, boardID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM boards WHERE tenant_id=$1 AND id=$2)`, tenantID, boardID)
}

func (r *directoryRepository) PriorityExists(ctx context.Context, tenantID, priorityID string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM priorities WHERE tenant_id=$1 AND id=$2)`, tenantID, priorityID)
}

// ClientPolicyID returns pgx.ErrNoRows when the client does not exist and a
// nil id when it exists without an assignment.
func (r *directoryRepository) ClientPolicyID(ctx context.Context, tenantID, clientID string) (*string, error) {
	var policyID *string
	err := r.db.QueryRow(ctx, `SELECT sla_policy_id FROM clients WHERE tenant_id=$1 AND id=$2`, tenantID, clientID).Scan(&policyID)
	return policyID, err
}

func (r *directoryRepository) BoardPolicyID(ctx context.Context, tenantID, boardID string) (*string, error) {
	var policyID *string
	err := r.db.QueryRow(ctx, `SELECT sla_policy_id FROM boards WHERE tenant_id=$1 AND id=$2`, tenantID, boardID).Scan(&policyID)
	return policyID, err
}

func (r *directoryRepository) SetClientPolicy(ctx context.Context, tenantID, clientID string, policyID *string) error {
	return mustAffect(r.db.Exec(ctx, `UPDATE clients SET sla_policy_id=$1 WHERE tenant_id=$2 AND id=$3`, policyID, tenantID, clientID))
}

func (r *directoryRepository) SetBoardPolicy(ctx context.Context, tenantID, boardID string, policyID *string) error {
	return mustAffect(r.db.Exec(ctx, `UPDATE boards SET sla_policy_id=$1 WHERE tenant_id=$2 AND id=$3`, policyID, tenantID, boardID))
}

func (r *directoryRepository) BoardManagerID(ctx context.Context, tenantID, boardID string) (*string, error) {
	var managerID *string
	err := r.db.QueryRow(ctx, `SELECT manager_user_id FROM boards WHERE tenant_id=$1 AND id=$2`, tenantID, boardID).Scan(&managerID)
	return managerID, err
}
