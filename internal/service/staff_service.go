package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// StaffService manages the staff directory.
type StaffService struct {
	staff repository.StaffRepository
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role     *domain.UserRole
	Vertical *domain.StaffVertical
	Active   *bool
	Limit    int
	Offset   int
}

// StaffInput describes a new directory entry.
type StaffInput struct {
	Name        string
	Email       string
	Role        domain.UserRole
	Vertical    *domain.StaffVertical
	HostelBlock *string
}

// StaffDependencies encapsulates repositories required for directory management.
type StaffDependencies struct {
	StaffRepo repository.StaffRepository
}

// NewStaffService constructs the service.
func NewStaffService(deps StaffDependencies) *StaffService {
	return &StaffService{staff: deps.StaffRepo}
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateStaff adds a directory entry.
func (s *StaffService) CreateStaff(ctx context.Context, actor domain.Actor, input StaffInput) (*domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	details := map[string]any{}
	if name == "" {
		details["name"] = "required"
	}
	if _, err := mail.ParseAddress(email); err != nil {
		details["email"] = "invalid email"
	}
	if !input.Role.Valid() {
		details["role"] = "unknown role"
	}
	if input.Vertical != nil && !input.Vertical.Valid() {
		details["staff_vertical"] = "unknown vertical"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid staff member", details)
	}

	user := &domain.User{
		Name:          name,
		Email:         email,
		Role:          input.Role,
		StaffVertical: input.Vertical,
		HostelBlock:   input.HostelBlock,
		Active:        true,
	}
	if err := s.staff.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ListStaff lists directory entries with filters.
func (s *StaffService) ListStaff(ctx context.Context, actor domain.Actor, filters StaffListFilters) ([]domain.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.staff.List(ctx, repository.StaffFilter{
		Role:     filters.Role,
		Vertical: filters.Vertical,
		Active:   filters.Active,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetStaff fetches one directory entry. Staff may read their own record.
func (s *StaffService) GetStaff(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if actor.ID != id {
		if err := requireAdmin(actor); err != nil {
			return nil, err
		}
	}
	user, err := s.staff.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
