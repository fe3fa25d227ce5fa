package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

var (
	// ErrStaleWrite is returned when a conditional update matched no row
	// because the version or status moved underneath the caller.
	ErrStaleWrite = errors.New("repository: stale write")
	// ErrDuplicate wraps unique constraint violations.
	ErrDuplicate = errors.New("repository: duplicate")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups the write-side repositories that take part in one unit of work.
type Repositories struct {
	Tickets     TicketRepository
	Escalations EscalationRepository
	History     TicketHistoryRepository
}

// UnitOfWork runs fn with repositories bound to a single transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

type pgUnitOfWork struct {
	pool *pgxpool.Pool
}

// NewUnitOfWork wraps the pool in a transaction runner.
func NewUnitOfWork(pool *pgxpool.Pool) UnitOfWork {
	return &pgUnitOfWork{pool: pool}
}

func (u *pgUnitOfWork) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := u.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	repos := Repositories{
		Tickets:     NewTicketRepository(tx),
		Escalations: NewEscalationRepository(tx),
		History:     NewTicketHistoryRepository(tx),
	}
	if err := fn(repos); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func statusStrings(statuses []domain.TicketStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
