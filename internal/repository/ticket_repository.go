package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID *string
	AssigneeID  *string
	HostelBlock *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// UpdateIfVersion writes ticket only when the stored row still carries
	// expectedVersion and, if allowed is non-empty, one of those statuses.
	// On success ticket.Version and ticket.UpdatedAt are refreshed.
	UpdateIfVersion(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, allowed []domain.TicketStatus) error
	ListByStatuses(ctx context.Context, statuses []domain.TicketStatus) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountActiveByAssignees(ctx context.Context, staffIDs []string) (map[string]int, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, ticket_number, title, description, category, custom_category, priority, is_emergency,
               status, hostel_block, requester_id, assigned_to, assigned_at, last_progress_at, resolved_at,
               closed_at, escalation_urgent, version, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (ticket_number, title, description, category, custom_category, priority, is_emergency,
            status, hostel_block, requester_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, version, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.TicketNumber,
		ticket.Title,
		ticket.Description,
		string(ticket.Category),
		ticket.CustomCategory,
		string(ticket.Priority),
		ticket.IsEmergency,
		string(ticket.Status),
		ticket.HostelBlock,
		ticket.RequesterID,
	).Scan(&ticket.ID, &ticket.Version, &ticket.CreatedAt, &ticket.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: ticket number %s", ErrDuplicate, ticket.TicketNumber)
	}
	return err
}

func (r *ticketRepository) UpdateIfVersion(ctx context.Context, ticket *domain.Ticket, expectedVersion int64, allowed []domain.TicketStatus) error {
	query := `
        UPDATE tickets SET priority=$1, status=$2, assigned_to=$3, assigned_at=$4, last_progress_at=$5,
            resolved_at=$6, closed_at=$7, escalation_urgent=$8, version=version+1, updated_at=NOW()
        WHERE id=$9 AND version=$10`
	args := []any{
		string(ticket.Priority),
		string(ticket.Status),
		ticket.AssignedTo,
		ticket.AssignedAt,
		ticket.LastProgressAt,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.EscalationUrgent,
		ticket.ID,
		expectedVersion,
	}
	if len(allowed) > 0 {
		args = append(args, statusStrings(allowed))
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	query += " RETURNING version, updated_at"

	err := r.db.QueryRow(ctx, query, args...).Scan(&ticket.Version, &ticket.UpdatedAt)
	if err == pgx.ErrNoRows {
		return ErrStaleWrite
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &tickets[0], nil
}

func (r *ticketRepository) ListByStatuses(ctx context.Context, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status = ANY($1) ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Query(ctx, query, statusStrings(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.HostelBlock != nil {
		args = append(args, *filter.HostelBlock)
		clauses = append(clauses, fmt.Sprintf("hostel_block=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, statusStrings(filter.Statuses))
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountActiveByAssignees(ctx context.Context, staffIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(staffIDs))
	if len(staffIDs) == 0 {
		return counts, nil
	}
	const query = `
        SELECT assigned_to::text, COUNT(*) FROM tickets
        WHERE assigned_to::text = ANY($1) AND status = ANY($2)
        GROUP BY assigned_to`
	rows, err := r.db.Query(ctx, query, staffIDs, statusStrings(domain.WorkloadStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var (
			ticket   domain.Ticket
			category string
			priority string
			status   string
		)
		if err := rows.Scan(
			&ticket.ID,
			&ticket.TicketNumber,
			&ticket.Title,
			&ticket.Description,
			&category,
			&ticket.CustomCategory,
			&priority,
			&ticket.IsEmergency,
			&status,
			&ticket.HostelBlock,
			&ticket.RequesterID,
			&ticket.AssignedTo,
			&ticket.AssignedAt,
			&ticket.LastProgressAt,
			&ticket.ResolvedAt,
			&ticket.ClosedAt,
			&ticket.EscalationUrgent,
			&ticket.Version,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		ticket.Category = domain.TicketCategory(category)
		ticket.Priority = domain.TicketPriority(priority)
		ticket.Status = domain.TicketStatus(status)
		result = append(result, ticket)
	}
	return result, rows.Err()
}
