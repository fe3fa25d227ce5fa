package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/lifecycle"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// Assigner places freshly filed tickets with staff.
type Assigner interface {
	AutoAssign(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	uow        repository.UnitOfWork
	assigner   Assigner
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	UnitOfWork  repository.UnitOfWork
	// Assigner is optional; when set, new tickets are auto-assigned on a
	// best-effort basis.
	Assigner   Assigner
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title          string
	Description    string
	Category       domain.TicketCategory
	CustomCategory *string
	Priority       domain.TicketPriority
	IsEmergency    bool
	HostelBlock    string
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	AssigneeID  *string
	HostelBlock *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// studentTransitions are the only targets a requester may move their own ticket to.
var studentTransitions = map[domain.TicketStatus]bool{
	domain.TicketStatusClosed:    true,
	domain.TicketStatusReopened:  true,
	domain.TicketStatusCancelled: true,
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		uow:        deps.UnitOfWork,
		assigner:   deps.Assigner,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		now:        clock,
	}
}

// CreateTicket files a ticket for the actor. The priority defaults from the
// category, and an emergency flag forces EMERGENCY.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if actor.IsSystem() {
		return nil, apperrors.NewUnauthorized("requester required")
	}
	title := strings.TrimSpace(input.Title)
	block := strings.TrimSpace(input.HostelBlock)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if block == "" {
		details["hostel_block"] = "required"
	}
	if !input.Category.Valid() {
		details["category"] = "unknown category"
	}
	if input.Priority != "" && !input.Priority.Valid() {
		details["priority"] = "unknown priority"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	ticket := &domain.Ticket{
		TicketNumber: generateTicketNumber(),
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Category:     input.Category,
		Priority:     input.Priority,
		IsEmergency:  input.IsEmergency,
		Status:       domain.TicketStatusOpen,
		HostelBlock:  block,
		RequesterID:  actor.ID,
	}
	if input.CustomCategory != nil {
		if custom := strings.TrimSpace(*input.CustomCategory); custom != "" {
			ticket.CustomCategory = &custom
		}
	}
	if ticket.Priority == "" {
		ticket.Priority = ticket.Category.DefaultPriority()
	}
	if ticket.IsEmergency {
		ticket.Priority = domain.TicketPriorityEmergency
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketCreatedPayload{
			TicketNumber: ticket.TicketNumber,
			Category:     ticket.EffectiveCategory(),
			HostelBlock:  ticket.HostelBlock,
			Priority:     ticket.Priority,
			Title:        ticket.Title,
		},
	})

	if s.assigner == nil {
		return ticket, nil
	}
	assigned, err := s.assigner.AutoAssign(ctx, ticket.ID, domain.SystemActor)
	if err != nil {
		// The ticket stays OPEN for an administrator to route by hand.
		s.logger.Info("ticket left unassigned",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err))
		return ticket, nil
	}
	return assigned, nil
}

// GetTicket returns a ticket the actor may see.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := findTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, ticket) {
		return nil, apperrors.NewForbidden("ticket belongs to another requester")
	}
	return ticket, nil
}

// ListTickets lists tickets scoped by role: students see their own, staff
// their assigned ones, admins everything.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		AssigneeID:  filter.AssigneeID,
		HostelBlock: filter.HostelBlock,
		Statuses:    filter.Statuses,
		Priorities:  filter.Priorities,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	switch actor.Role {
	case domain.RoleStudent:
		id := actor.ID
		repoFilter.RequesterID = &id
	case domain.RoleStaff:
		id := actor.ID
		repoFilter.AssigneeID = &id
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// TransitionStatus moves a ticket through the lifecycle. Assignment has its
// own path and is rejected here.
func (s *TicketService) TransitionStatus(ctx context.Context, ticketID string, to domain.TicketStatus, actor domain.Actor, comment string) (*domain.Ticket, error) {
	if !to.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": to})
	}
	if to == domain.TicketStatusAssigned {
		return nil, apperrors.NewValidationError("use assignment to move a ticket to ASSIGNED", map[string]any{"status": to})
	}

	ticket, err := findTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorizeTransition(actor, ticket, to); err != nil {
		return nil, err
	}

	next, err := lifecycle.Transition(ticket, to, actor, s.now())
	if err != nil {
		return nil, err
	}

	comment = strings.TrimSpace(comment)
	err = s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Tickets.UpdateIfVersion(ctx, next, ticket.Version, []domain.TicketStatus{ticket.Status}); err != nil {
			return err
		}
		return repos.History.Create(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangedByID: actor.IDPtr(),
			ChangeType:  domain.ChangeTypeStatus,
			OldValue:    map[string]any{"status": ticket.Status},
			NewValue:    map[string]any{"status": next.Status, "comment": comment},
		})
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", ticket.ID),
		zap.String("from", string(ticket.Status)),
		zap.String("to", string(next.Status)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus:   ticket.Status,
			NewStatus:   next.Status,
			RequesterID: ticket.RequesterID,
			Comment:     comment,
		},
	})
	return next, nil
}

// ListHistory returns the audit trail of a ticket the actor may see.
func (s *TicketService) ListHistory(ctx context.Context, actor domain.Actor, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func authorizeTransition(actor domain.Actor, ticket *domain.Ticket, to domain.TicketStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleStudent:
		if ticket.RequesterID != actor.ID {
			return apperrors.NewForbidden("ticket belongs to another requester")
		}
		if !studentTransitions[to] {
			return apperrors.NewForbidden("requesters cannot move a ticket to this status")
		}
		return nil
	case domain.RoleStaff:
		if ticket.AssignedTo == nil || *ticket.AssignedTo != actor.ID {
			return apperrors.NewForbidden("ticket is not assigned to you")
		}
		return nil
	default:
		return apperrors.NewForbidden("unknown role")
	}
}

func canView(actor domain.Actor, ticket *domain.Ticket) bool {
	switch actor.Role {
	case domain.RoleStudent:
		return ticket.RequesterID == actor.ID
	default:
		return true
	}
}

func generateTicketNumber() string {
	return "HTK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
