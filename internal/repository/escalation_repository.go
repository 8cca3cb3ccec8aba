package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// EscalationRepository persists per-board escalation managers.
type EscalationRepository interface {
	Upsert(ctx context.Context, manager *domain.EscalationManager) error
	DeleteLevel(ctx context.Context, tenantID, boardID string, level domain.EscalationLevel) error
	ListByBoard(ctx context.Context, tenantID, boardID string) ([]domain.EscalationManager, error)
	GetByLevel(ctx context.Context, tenantID, boardID string, level domain.EscalationLevel) (*domain.EscalationManager, error)
}

type escalationRepository struct {
	db DBTX
}

// NewEscalationRepository instantiates repository.
func NewEscalationRepository(db DBTX) EscalationRepository {
	return &escalationRepository{db: db}
}

const escalationColumns = `id, tenant_id, board_id, escalation_level, user_id, notification_channels, created_at, updated_at`

func (r *escalationRepository) Upsert(ctx context.Context, m *domain.EscalationManager) error {
	const query = `
        INSERT INTO escalation_managers (tenant_id, board_id, escalation_level, user_id, notification_channels)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id, board_id, escalation_level) DO UPDATE SET
            user_id=EXCLUDED.user_id,
            notification_channels=EXCLUDED.notification_channels,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query, m.TenantID, m.BoardID, int(m.Level), m.UserID, m.NotificationChannels).
		Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// DeleteLevel removes the manager for a level. Missing rows are not an error.
func (r *escalationRepository) DeleteLevel(ctx context.Context, tenantID, boardID string, level domain.EscalationLevel) error {
	_, err := r.db.Exec(ctx, `
        DELETE FROM escalation_managers WHERE tenant_id=$1 AND board_id=$2 AND escalation_level=$3`,
		tenantID, boardID, int(level))
	return err
}

func (r *escalationRepository) ListByBoard(ctx context.Context, tenantID, boardID string) ([]domain.EscalationManager, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_managers
        WHERE tenant_id=$1 AND board_id=$2 ORDER BY escalation_level`
	rows, err := r.db.Query(ctx, query, tenantID, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EscalationManager
	for rows.Next() {
		m, err := scanEscalation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *m)
	}
	return result, rows.Err()
}

func (r *escalationRepository) GetByLevel(ctx context.Context, tenantID, boardID string, level domain.EscalationLevel) (*domain.EscalationManager, error) {
	query := `SELECT ` + escalationColumns + ` FROM escalation_managers
        WHERE tenant_id=$1 AND board_id=$2 AND escalation_level=$3`
	return scanEscalation(r.db.QueryRow(ctx, query, tenantID, boardID, int(level)))
}

func scanEscalation(row pgx.Row) (*domain.EscalationManager, error) {
	var m domain.EscalationManager
	var level int
	if err := row.Scan(&m.ID, &m.TenantID, &m.BoardID, &level, &m.UserID, &m.NotificationChannels, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Level = domain.EscalationLevel(level)
	return &m, nil
}
