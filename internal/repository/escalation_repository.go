package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

// EscalationRepository persists escalation records.
type EscalationRepository interface {
	// CreateIfAbsent inserts e unless a record for (ticket, level) exists.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, e *domain.Escalation) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Escalation, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error)
	ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.Escalation, error)
	// Resolve stamps resolved_at on an unresolved record. It reports false
	// when the record was already resolved.
	Resolve(ctx context.Context, id string, resolvedBy *string, at time.Time) (bool, error)
}

type escalationRepository struct {
	db DBTX
}

// NewEscalationRepository instantiates the repository.
func NewEscalationRepository(db DBTX) EscalationRepository {
	return &escalationRepository{db: db}
}

const escalationColumns = `id, ticket_id, level, escalated_from, escalated_to, escalated_by, reason, auto_escalated,
               escalated_at, resolved_at, resolved_by`

func (r *escalationRepository) CreateIfAbsent(ctx context.Context, e *domain.Escalation) (bool, error) {
	const query = `
        INSERT INTO ticket_escalations (ticket_id, level, escalated_from, escalated_to, escalated_by, reason, auto_escalated, escalated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (ticket_id, level) DO NOTHING
        RETURNING id`
	err := r.db.QueryRow(ctx, query,
		e.TicketID,
		int(e.Level),
		e.EscalatedFrom,
		e.EscalatedTo,
		e.EscalatedBy,
		e.Reason,
		e.AutoEscalated,
		e.EscalatedAt,
	).Scan(&e.ID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *escalationRepository) GetByID(ctx context.Context, id string) (*domain.Escalation, error) {
	records, err := r.query(ctx, `SELECT `+escalationColumns+` FROM ticket_escalations WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &records[0], nil
}

func (r *escalationRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Escalation, error) {
	return r.query(ctx, `SELECT `+escalationColumns+` FROM ticket_escalations WHERE ticket_id=$1 ORDER BY escalated_at DESC, level DESC`, ticketID)
}

func (r *escalationRepository) ListByTickets(ctx context.Context, ticketIDs []string) (map[string][]domain.Escalation, error) {
	out := make(map[string][]domain.Escalation, len(ticketIDs))
	if len(ticketIDs) == 0 {
		return out, nil
	}
	records, err := r.query(ctx, `SELECT `+escalationColumns+` FROM ticket_escalations WHERE ticket_id::text = ANY($1) ORDER BY level ASC`, ticketIDs)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		out[rec.TicketID] = append(out[rec.TicketID], rec)
	}
	return out, nil
}

func (r *escalationRepository) Resolve(ctx context.Context, id string, resolvedBy *string, at time.Time) (bool, error) {
	const query = `
        UPDATE ticket_escalations SET resolved_at=$1, resolved_by=$2
        WHERE id=$3 AND resolved_at IS NULL`
	cmd, err := r.db.Exec(ctx, query, at, resolvedBy, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *escalationRepository) query(ctx context.Context, query string, args ...any) ([]domain.Escalation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Escalation
	for rows.Next() {
		var (
			e     domain.Escalation
			level int
		)
		if err := rows.Scan(
			&e.ID,
			&e.TicketID,
			&level,
			&e.EscalatedFrom,
			&e.EscalatedTo,
			&e.EscalatedBy,
			&e.Reason,
			&e.AutoEscalated,
			&e.EscalatedAt,
			&e.ResolvedAt,
			&e.ResolvedBy,
		); err != nil {
			return nil, err
		}
		e.Level = domain.EscalationLevel(level)
		result = append(result, e)
	}
	return result, rows.Err()
}
