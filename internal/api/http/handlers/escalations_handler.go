package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/hostel-dispatch/internal/api/dto"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// EscalationAPI is the escalation surface the handler needs.
type EscalationAPI interface {
	EscalationReader
	ManualEscalate(ctx context.Context, input service.ManualEscalationInput, actor domain.Actor) (*domain.Escalation, error)
	Resolve(ctx context.Context, escalationID string, actor domain.Actor) (*domain.Escalation, error)
	RunScan(ctx context.Context, now time.Time, dryRun bool) (*service.ScanReport, error)
}

// TicketViewer authorizes read access to a ticket.
type TicketViewer interface {
	GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error)
}

// EscalationsHandler serves escalation endpoints.
type EscalationsHandler struct {
	escalations EscalationAPI
	tickets     TicketViewer
	clock       func() time.Time
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalations EscalationAPI, tickets TicketViewer) *EscalationsHandler {
	return &EscalationsHandler{escalations: escalations, tickets: tickets, clock: time.Now}
}

// ListForTicket GET /tickets/:id/escalations.
func (h *EscalationsHandler) ListForTicket(c *fiber.Ctx) error {
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
	return c.JSON(fiber.Map{"data": dto.NewEscalationHistoryResponse(chain)})
}

// Create POST /tickets/:id/escalations.
func (h *EscalationsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateEscalationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	record, err := h.escalations.ManualEscalate(c.UserContext(), service.ManualEscalationInput{
		TicketID:      c.Params("id"),
		Level:         domain.EscalationLevel(req.Level),
		TargetStaffID: req.TargetStaffID,
		Reason:        req.Reason,
	}, actor)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewEscalationResponse(record)})
}

// Resolve POST /escalations/:id/resolve.
func (h *EscalationsHandler) Resolve(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	record, err := h.escalations.Resolve(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponse(record)})
}

// Scan POST /admin/escalations/scan.
func (h *EscalationsHandler) Scan(c *fiber.Ctx) error {
	var req dto.ScanRequest
	if err := bindOptionalBody(c, &req); err != nil {
		return err
	}
	report, err := h.escalations.RunScan(c.UserContext(), h.clock().UTC(), req.DryRun)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewScanReportResponse(report)})
}
