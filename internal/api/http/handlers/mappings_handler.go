package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// MappingAPI is the mapping administration surface.
type MappingAPI interface {
	CreateMapping(ctx context.Context, actor domain.Actor, input service.MappingInput) (*domain.StaffMapping, error)
	UpdateMapping(ctx context.Context, actor domain.Actor, id string, input service.MappingInput) (*domain.StaffMapping, error)
	DeactivateMapping(ctx context.Context, actor domain.Actor, id string) (*domain.StaffMapping, error)
	ListMappings(ctx context.Context, actor domain.Actor, filter repository.MappingFilter) ([]domain.StaffMapping, error)
}

// MappingsHandler serves /admin/mappings.
type MappingsHandler struct {
	mappings MappingAPI
}

// NewMappingsHandler constructs handler.
func NewMappingsHandler(mappings MappingAPI) *MappingsHandler {
	return &MappingsHandler{mappings: mappings}
}

// List GET /admin/mappings.
func (h *MappingsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	filter := repository.MappingFilter{
		StaffID:    queryString(c, "staff_id"),
		ActiveOnly: c.Query("include_inactive") != "true",
		Limit:      limit,
		Offset:     offset,
	}
	if category := queryString(c, "category"); category != nil {
		normalized := service.NormalizeCategory(*category)
		filter.Category = &normalized
	}
	mappings, err := h.mappings.ListMappings(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMappingList(mappings)})
}

// Create POST /admin/mappings.
func (h *MappingsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.MappingRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	mapping, err := h.mappings.CreateMapping(c.UserContext(), actor, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewMappingResponse(mapping)})
}

// Update PUT /admin/mappings/:id.
func (h *MappingsHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.MappingRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	mapping, err := h.mappings.UpdateMapping(c.UserContext(), actor, c.Params("id"), req.Input())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMappingResponse(mapping)})
}

// Deactivate DELETE /admin/mappings/:id. Mappings are soft-deleted.
func (h *MappingsHandler) Deactivate(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	mapping, err := h.mappings.DeactivateMapping(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMappingResponse(mapping)})
}
