package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

// WorkloadStats summarises a staff member's ticket history.
type WorkloadStats struct {
	StaffID        string
	Total          int
	Active         int
	Completed      int
	CompletionRate float64
}

// StaffRepository is the staff directory. Students, staff and admins live in
// the same users table.
type StaffRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetMany(ctx context.Context, ids []string) (map[string]domain.User, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.User, error)
	ListActiveByVerticals(ctx context.Context, verticals []domain.StaffVertical) ([]domain.User, error)
	ListActiveByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
	WorkloadStats(ctx context.Context, staffID string) (*WorkloadStats, error)
}

// StaffFilter defines query params for directory listing.
type StaffFilter struct {
	Role     *domain.UserRole
	Vertical *domain.StaffVertical
	Active   *bool
	Limit    int
	Offset   int
}

type staffRepository struct {
	db DBTX
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(db DBTX) StaffRepository {
	return &staffRepository{db: db}
}

const userColumns = `id, name, email, role, staff_vertical, hostel_block, is_active, created_at, updated_at`

func (r *staffRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, role, staff_vertical, hostel_block, is_active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	var vertical *string
	if user.StaffVertical != nil {
		v := string(*user.StaffVertical)
		vertical = &v
	}
	err := r.db.QueryRow(ctx, query,
		user.Name,
		strings.ToLower(user.Email),
		string(user.Role),
		vertical,
		user.HostelBlock,
		user.Active,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
	}
	return err
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &users[0], nil
}

func (r *staffRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.User, error) {
	out := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	users, err := r.query(ctx, `SELECT `+userColumns+` FROM users WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.User, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Role != nil {
		args = append(args, string(*filter.Role))
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Vertical != nil {
		args = append(args, string(*filter.Vertical))
		clauses = append(clauses, fmt.Sprintf("staff_vertical=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("is_active=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		userColumns, strings.Join(clauses, " AND "), limit, offset)
	return r.query(ctx, query, args...)
}

func (r *staffRepository) ListActiveByVerticals(ctx context.Context, verticals []domain.StaffVertical) ([]domain.User, error) {
	if len(verticals) == 0 {
		return nil, nil
	}
	names := make([]string, len(verticals))
	for i, v := range verticals {
		names[i] = string(v)
	}
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active AND staff_vertical = ANY($1) ORDER BY id`, names)
}

func (r *staffRepository) ListActiveByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active AND role=$1 ORDER BY id`, string(role))
}

func (r *staffRepository) WorkloadStats(ctx context.Context, staffID string) (*WorkloadStats, error) {
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = ANY($2)),
               COUNT(*) FILTER (WHERE status = 'CLOSED')
        FROM tickets WHERE assigned_to=$1`
	stats := &WorkloadStats{StaffID: staffID}
	if err := r.db.QueryRow(ctx, query, staffID, statusStrings(domain.WorkloadStatuses)).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Completed,
	); err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats, nil
}

func (r *staffRepository) query(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var (
			user     domain.User
			role     string
			vertical *string
		)
		if err := rows.Scan(
			&user.ID,
			&user.Name,
			&user.Email,
			&role,
			&vertical,
			&user.HostelBlock,
			&user.Active,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		user.Role = domain.UserRole(role)
		if vertical != nil {
			v := domain.StaffVertical(*vertical)
			user.StaffVertical = &v
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
