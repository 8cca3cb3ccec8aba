package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so repositories run the same
// SQL inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to one connection or transaction.
type Repositories struct {
	Schedules   ScheduleRepository
	Policies    PolicyRepository
	Targets     TargetRepository
	Thresholds  ThresholdRepository
	Escalations EscalationRepository
	Directory   DirectoryRepository
	Tickets     TicketSLARepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repositories() Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

// NewRepositories binds all repositories to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Schedules:   NewScheduleRepository(db),
		Policies:    NewPolicyRepository(db),
		Targets:     NewTargetRepository(db),
		Thresholds:  NewThresholdRepository(db),
		Escalations: NewEscalationRepository(db),
		Directory:   NewDirectoryRepository(db),
		Tickets:     NewTicketSLARepository(db),
	}
}

type pgStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewStore creates a Store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, repos: NewRepositories(pool)}
}

func (s *pgStore) Repositories() Repositories {
	return s.repos
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s *pgStore) WithinTx(ctx context.Context, fn func(repos Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// lockTenantScope serializes writers on (scope, tenant) until the surrounding
// transaction ends. Outside a transaction the lock is released immediately.
func lockTenantScope(ctx context.Context, db DBTX, scope, tenantID string) error {
	_, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope+":"+tenantID)
	return err
}

func mustAffect(cmd pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
