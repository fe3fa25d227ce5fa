package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// TicketAPI is the ticket lifecycle surface the handler needs.
type TicketAPI interface {
	CreateTicket(ctx context.Context, actor domain.Actor, input service.TicketCreateInput) (*domain.Ticket, error)
	GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
	ListTickets(ctx context.Context, actor domain.Actor, filter service.TicketListFilter) ([]domain.Ticket, error)
	TransitionStatus(ctx context.Context, ticketID string, to domain.TicketStatus, actor domain.Actor, comment string) (*domain.Ticket, error)
	ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error)
}

// AssignmentAPI is the assignment surface the handlers need.
type AssignmentAPI interface {
	AutoAssign(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error)
	AssignTo(ctx context.Context, ticketID, staffID string, actor domain.Actor) (*domain.Ticket, error)
	WorkloadStats(ctx context.Context, staffID string) (*repository.WorkloadStats, error)
}

// EscalationReader exposes a ticket's escalation chain.
type EscalationReader interface {
	History(ctx context.Context, ticketID string) (*service.EscalationHistory, error)
}

// TicketsHandler serves ticket endpoints.
type TicketsHandler struct {
	tickets     TicketAPI
	assignments AssignmentAPI
	escalations EscalationReader
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets TicketAPI, assignments AssignmentAPI, escalations EscalationReader) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignments: assignments, escalations: escalations}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, req.Input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	ticket, err := h.tickets.GetTicket(ctx, actor, c.Params("id"))
	if err != nil {
		return err
	}
	chain, err := h.escalations.History(ctx, ticket.ID)
	if err != nil {
		return err
	}
	history, err := h.tickets.ListHistory(ctx, actor, ticket.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetail(ticket, chain, history)})
}

// AutoAssign POST /tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.assignments.AutoAssign(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.assignments.AssignTo(c.UserContext(), c.Params("id"), req.StaffID, actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// Transition POST /tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.TransitionStatus(c.UserContext(), c.Params("id"), req.Status, actor, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	limit, offset, err := pagination(c)
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		AssigneeID:  queryString(c, "assigned_to"),
		HostelBlock: queryString(c, "hostel_block"),
		Limit:       limit,
		Offset:      offset,
	}
	for _, s := range splitQuery(c, "status") {
		status := domain.TicketStatus(s)
		if !status.Valid() {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": s})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, p := range splitQuery(c, "priority") {
		priority := domain.TicketPriority(p)
		if !priority.Valid() {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": p})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}
	if filter.CreatedFrom, err = queryTime(c, "created_from"); err != nil {
		return filter, err
	}
	if filter.CreatedTo, err = queryTime(c, "created_to"); err != nil {
		return filter, err
	}
	return filter, nil
}

func queryTime(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid "+key+"; expected RFC3339", map[string]any{key: raw})
	}
	return &t, nil
}
