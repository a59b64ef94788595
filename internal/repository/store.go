package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionConflict is returned when an optimistic update lost against a
// concurrent writer on the same ticket row.
var ErrVersionConflict = errors.New("version conflict")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// standalone or inside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories bundles every repository bound to one DBTX.
type Repositories struct {
	Users   UserRepository
	Tickets TicketRepository
	Audits  AuditRepository
}

// Store provides pool-backed repositories and a transaction boundary. A
// ticket mutation and its audit append always run through InTx so they
// commit or roll back together.
type Store interface {
	Repos() Repositories
	InTx(ctx context.Context, fn func(Repositories) error) error
}

type pgStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewStore builds a Postgres-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, repos: newRepositories(pool)}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Users:   NewUserRepository(db),
		Tickets: NewTicketRepository(db),
		Audits:  NewAuditRepository(db),
	}
}

func (s *pgStore) Repos() Repositories {
	return s.repos
}

func (s *pgStore) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(newRepositories(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
