package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// StaffAPI is the directory surface.
type StaffAPI interface {
	CreateStaff(ctx context.Context, actor domain.Actor, input service.StaffInput) (*domain.User, error)
	ListStaff(ctx context.Context, actor domain.Actor, filters service.StaffListFilters) ([]domain.User, error)
	GetStaff(ctx context.Context, actor domain.Actor, id string) (*domain.User, error)
}

// WorkloadReader reports staff workload.
type WorkloadReader interface {
	WorkloadStats(ctx context.Context, staffID string) (*repository.WorkloadStats, error)
}

// StaffHandler serves directory and workload endpoints.
type StaffHandler struct {
	staff    StaffAPI
	workload WorkloadReader
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staff StaffAPI, workload WorkloadReader) *StaffHandler {
	return &StaffHandler{staff: staff, workload: workload}
}

// List GET /staff.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filters := service.StaffListFilters{Limit: limit, Offset: offset}
	if filters.Active, err = queryBool(c, "active"); err != nil {
		return err
	}
	if role := queryString(c, "role"); role != nil {
		r := domain.UserRole(*role)
		filters.Role = &r
	}
	if vertical := queryString(c, "vertical"); vertical != nil {
		v := domain.StaffVertical(*vertical)
		filters.Vertical = &v
	}
	users, err := h.staff.ListStaff(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffList(users)})
}

// Create POST /staff.
func (h *StaffHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateStaffRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	user, err := h.staff.CreateStaff(c.UserContext(), actor, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewStaffResponse(user)})
}

// Get GET /staff/:id.
func (h *StaffHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	user, err := h.staff.GetStaff(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStaffResponse(user)})
}

// Workload GET /staff/:id/workload. Staff may read their own numbers.
func (h *StaffHandler) Workload(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id := c.Params("id")
	if actor.Role != domain.RoleAdmin && actor.ID != id {
		return apperrors.NewForbidden("workload is visible to admins and the staff member")
	}
	stats, err := h.workload.WorkloadStats(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewWorkloadResponse(stats)})
}
