package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

// MappingFilter narrows admin mapping listings.
type MappingFilter struct {
	StaffID    *string
	Category   *string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// MappingRepository persists staff routing mappings. Rows are never hard-deleted.
type MappingRepository interface {
	ListActiveForCategory(ctx context.Context, category string) ([]domain.StaffMapping, error)
	GetByID(ctx context.Context, id string) (*domain.StaffMapping, error)
	List(ctx context.Context, filter MappingFilter) ([]domain.StaffMapping, error)
	Create(ctx context.Context, mapping *domain.StaffMapping) error
	Update(ctx context.Context, mapping *domain.StaffMapping) error
	Deactivate(ctx context.Context, id string) (*domain.StaffMapping, error)
}

type mappingRepository struct {
	db DBTX
}

// NewMappingRepository instantiates the repository.
func NewMappingRepository(db DBTX) MappingRepository {
	return &mappingRepository{db: db}
}

const mappingColumns = `id, staff_id, hostel_block, category, priority_level, capacity_weight, expertise_level,
               is_active, created_at, updated_at`

func (r *mappingRepository) ListActiveForCategory(ctx context.Context, category string) ([]domain.StaffMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM staff_mappings
        WHERE is_active AND LOWER(category) = LOWER($1) ORDER BY priority_level ASC, id ASC`
	return r.query(ctx, query, strings.TrimSpace(category))
}

func (r *mappingRepository) GetByID(ctx context.Context, id string) (*domain.StaffMapping, error) {
	mappings, err := r.query(ctx, `SELECT `+mappingColumns+` FROM staff_mappings WHERE id=$1`, id)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &mappings[0], nil
}

func (r *mappingRepository) List(ctx context.Context, filter MappingFilter) ([]domain.StaffMapping, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.StaffID != nil {
		args = append(args, *filter.StaffID)
		clauses = append(clauses, fmt.Sprintf("staff_id=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, strings.TrimSpace(*filter.Category))
		clauses = append(clauses, fmt.Sprintf("LOWER(category)=LOWER($%d)", len(args)))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "is_active")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM staff_mappings WHERE %s ORDER BY category ASC, priority_level ASC, id ASC LIMIT %d OFFSET %d`,
		mappingColumns, strings.Join(clauses, " AND "), limit, offset)
	return r.query(ctx, query, args...)
}

func (r *mappingRepository) Create(ctx context.Context, mapping *domain.StaffMapping) error {
	const query = `
        INSERT INTO staff_mappings (staff_id, hostel_block, category, priority_level, capacity_weight, expertise_level, is_active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	err := r.db.QueryRow(ctx, query,
		mapping.StaffID,
		mapping.HostelBlock,
		mapping.Category,
		mapping.PriorityLevel,
		mapping.CapacityWeight,
		mapping.ExpertiseLevel,
		mapping.Active,
	).Scan(&mapping.ID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: active mapping for staff %s and category %s", ErrDuplicate, mapping.StaffID, mapping.Category)
	}
	return err
}

func (r *mappingRepository) Update(ctx context.Context, mapping *domain.StaffMapping) error {
	const query = `
        UPDATE staff_mappings
        SET hostel_block=$1, category=$2, priority_level=$3, capacity_weight=$4, expertise_level=$5, is_active=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		mapping.HostelBlock,
		mapping.Category,
		mapping.PriorityLevel,
		mapping.CapacityWeight,
		mapping.ExpertiseLevel,
		mapping.Active,
		mapping.ID,
	).Scan(&mapping.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: active mapping for staff %s and category %s", ErrDuplicate, mapping.StaffID, mapping.Category)
	}
	return err
}

func (r *mappingRepository) Deactivate(ctx context.Context, id string) (*domain.StaffMapping, error) {
	query := `UPDATE staff_mappings SET is_active=false, updated_at=NOW() WHERE id=$1 RETURNING ` + mappingColumns
	mappings, err := r.query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &mappings[0], nil
}

func (r *mappingRepository) query(ctx context.Context, query string, args ...any) ([]domain.StaffMapping, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffMapping
	for rows.Next() {
		var m domain.StaffMapping
		if err := rows.Scan(
			&m.ID,
			&m.StaffID,
			&m.HostelBlock,
			&m.Category,
			&m.PriorityLevel,
			&m.CapacityWeight,
			&m.ExpertiseLevel,
			&m.Active,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}
