package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// MetricsRow is a ticket SLA snapshot joined with the targets of its policy.
type MetricsRow struct {
	domain.TicketSLA
	ResponseTargetMinutes   *int
	ResolutionTargetMinutes *int
}

// TicketSLARepository reads tickets and writes only their SLA columns.
type TicketSLARepository interface {
	Get(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error)
	GetForUpdate(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error)
	UpdateSLA(ctx context.Context, ticket *domain.TicketSLA) error
	ListForMetrics(ctx context.Context, tenantID string, filter domain.MetricsFilter) ([]MetricsRow, error)
	ListAtRiskCandidates(ctx context.Context, tenantID string, now time.Time, limit int) ([]domain.TicketSLA, error)
	ListRunning(ctx context.Context, tenantID string, limit int) ([]domain.TicketSLA, error)
}

type ticketSLARepository struct {
	db DBTX
}

// NewTicketSLARepository instantiates repository.
func NewTicketSLARepository(db DBTX) TicketSLARepository {
	return &ticketSLARepository{db: db}
}

const ticketSLASelect = `
        SELECT t.id, t.tenant_id, t.ticket_number, t.title, t.client_id, COALESCE(c.name, ''), t.board_id,
               t.priority_id, COALESCE(p.name, ''), t.assigned_to, COALESCE(u.name, ''), COALESCE(s.is_closed, FALSE),
               t.entered_at, t.sla_policy_id, t.sla_started_at, t.sla_paused_at,
               t.sla_response_at, t.sla_response_due_at, t.sla_response_met,
               t.sla_resolution_at, t.sla_resolution_due_at, t.sla_resolution_met`

const ticketSLAJoins = `
        FROM tickets t
        LEFT JOIN clients c ON c.tenant_id=t.tenant_id AND c.id=t.client_id
        LEFT JOIN priorities p ON p.tenant_id=t.tenant_id AND p.id=t.priority_id
        LEFT JOIN users u ON u.tenant_id=t.tenant_id AND u.id=t.assigned_to
        LEFT JOIN statuses s ON s.tenant_id=t.tenant_id AND s.id=t.status_id`

func (r *ticketSLARepository) Get(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	return r.get(ctx, ticketSLASelect+ticketSLAJoins+` WHERE t.tenant_id=$1 AND t.id=$2`, tenantID, ticketID)
}

// GetForUpdate locks the ticket row until the surrounding transaction ends.
// Outside a transaction the lock is released as soon as the row is read.
func (r *ticketSLARepository) GetForUpdate(ctx context.Context, tenantID, ticketID string) (*domain.TicketSLA, error) {
	return r.get(ctx, ticketSLASelect+ticketSLAJoins+` WHERE t.tenant_id=$1 AND t.id=$2 FOR UPDATE OF t`, tenantID, ticketID)
}

func (r *ticketSLARepository) get(ctx context.Context, query, tenantID, ticketID string) (*domain.TicketSLA, error) {
	var ticket domain.TicketSLA
	if err := r.db.QueryRow(ctx, query, tenantID, ticketID).Scan(ticketSLADest(&ticket)...); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func ticketSLADest(t *domain.TicketSLA) []any {
	return []any{
		&t.TicketID,
		&t.TenantID,
		&t.TicketNumber,
		&t.Title,
		&t.ClientID,
		&t.ClientName,
		&t.BoardID,
		&t.PriorityID,
		&t.PriorityName,
		&t.AssignedTo,
		&t.AssigneeName,
		&t.IsClosed,
		&t.EnteredAt,
		&t.SlaPolicyID,
		&t.SlaStartedAt,
		&t.SlaPausedAt,
		&t.SlaResponseAt,
		&t.SlaResponseDueAt,
		&t.SlaResponseMet,
		&t.SlaResolutionAt,
		&t.SlaResolutionDueAt,
		&t.SlaResolutionMet,
	}
}

// UpdateSLA writes every sla_* column of the ticket.
func (r *ticketSLARepository) UpdateSLA(ctx context.Context, t *domain.TicketSLA) error {
	const query = `
        UPDATE tickets SET sla_policy_id=$1, sla_started_at=$2, sla_paused_at=$3,
            sla_response_at=$4, sla_response_due_at=$5, sla_response_met=$6,
            sla_resolution_at=$7, sla_resolution_due_at=$8, sla_resolution_met=$9
        WHERE tenant_id=$10 AND id=$11`
	return mustAffect(r.db.Exec(ctx, query,
		t.SlaPolicyID,
		t.SlaStartedAt,
		t.SlaPausedAt,
		t.SlaResponseAt,
		t.SlaResponseDueAt,
		t.SlaResponseMet,
		t.SlaResolutionAt,
		t.SlaResolutionDueAt,
		t.SlaResolutionMet,
		t.TenantID,
		t.TicketID,
	))
}

// ListForMetrics returns every SLA-governed ticket matching the filter.
func (r *ticketSLARepository) ListForMetrics(ctx context.Context, tenantID string, filter domain.MetricsFilter) ([]MetricsRow, error) {
	clauses := []string{"t.tenant_id=$1", "t.sla_policy_id IS NOT NULL"}
	args := []any{tenantID}

	if filter.EnteredFrom != nil {
		args = append(args, *filter.EnteredFrom)
		clauses = append(clauses, fmt.Sprintf("t.entered_at >= $%d", len(args)))
	}
	if filter.EnteredTo != nil {
		args = append(args, *filter.EnteredTo)
		clauses = append(clauses, fmt.Sprintf("t.entered_at <= $%d", len(args)))
	}
	if filter.BoardID != nil {
		args = append(args, *filter.BoardID)
		clauses = append(clauses, fmt.Sprintf("t.board_id=$%d", len(args)))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		clauses = append(clauses, fmt.Sprintf("t.client_id=$%d", len(args)))
	}
	if filter.PriorityID != nil {
		args = append(args, *filter.PriorityID)
		clauses = append(clauses, fmt.Sprintf("t.priority_id=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.PolicyID != nil {
		args = append(args, *filter.PolicyID)
		clauses = append(clauses, fmt.Sprintf("t.sla_policy_id=$%d", len(args)))
	}

	query := ticketSLASelect + `, tg.response_time_minutes, tg.resolution_time_minutes` + ticketSLAJoins + `
        LEFT JOIN sla_policy_targets tg ON tg.tenant_id=t.tenant_id AND tg.sla_policy_id=t.sla_policy_id AND tg.priority_id=t.priority_id
        WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY t.entered_at`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MetricsRow
	for rows.Next() {
		var row MetricsRow
		dest := append(ticketSLADest(&row.TicketSLA), &row.ResponseTargetMinutes, &row.ResolutionTargetMinutes)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

const runningTicketsWhere = `
        WHERE t.tenant_id=$1
          AND t.sla_policy_id IS NOT NULL
          AND t.sla_started_at IS NOT NULL
          AND t.sla_paused_at IS NULL
          AND COALESCE(s.is_closed, FALSE) = FALSE`

// ListAtRiskCandidates returns open, running tickets with a deadline that is
// pending and still ahead of now, ordered by the earliest such deadline.
// Tickets whose every pending deadline has passed are left out.
func (r *ticketSLARepository) ListAtRiskCandidates(ctx context.Context, tenantID string, now time.Time, limit int) ([]domain.TicketSLA, error) {
	query := ticketSLASelect + ticketSLAJoins + runningTicketsWhere + `
          AND ((t.sla_response_at IS NULL AND t.sla_response_due_at > $2)
            OR (t.sla_resolution_at IS NULL AND t.sla_resolution_due_at > $2))
        ORDER BY LEAST(
            CASE WHEN t.sla_response_at IS NULL AND t.sla_response_due_at > $2 THEN t.sla_response_due_at END,
            CASE WHEN t.sla_resolution_at IS NULL AND t.sla_resolution_due_at > $2 THEN t.sla_resolution_due_at END)
        LIMIT $3`
	rows, err := r.db.Query(ctx, query, tenantID, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketSLAs(rows)
}

// ListRunning returns open, running tickets with a pending deadline, overdue
// ones included, earliest deadline first.
func (r *ticketSLARepository) ListRunning(ctx context.Context, tenantID string, limit int) ([]domain.TicketSLA, error) {
	query := ticketSLASelect + ticketSLAJoins + runningTicketsWhere + `
          AND ((t.sla_response_due_at IS NOT NULL AND t.sla_response_at IS NULL)
            OR (t.sla_resolution_due_at IS NOT NULL AND t.sla_resolution_at IS NULL))
        ORDER BY LEAST(
            CASE WHEN t.sla_response_at IS NULL THEN t.sla_response_due_at END,
            CASE WHEN t.sla_resolution_at IS NULL THEN t.sla_resolution_due_at END)
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTicketSLAs(rows)
}

func scanTicketSLAs(rows pgx.Rows) ([]domain.TicketSLA, error) {
	var result []domain.TicketSLA
	for rows.Next() {
		var ticket domain.TicketSLA
		if err := rows.Scan(ticketSLADest(&ticket)...); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
