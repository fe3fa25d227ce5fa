package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/assignment"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/lifecycle"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

var assignableStatuses = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusReopened}

// AssignmentService handles ticket assignment operations.
type AssignmentService struct {
	engine     *assignment.Engine
	tickets    repository.TicketRepository
	staff      repository.StaffRepository
	mappings   repository.MappingRepository
	uow        repository.UnitOfWork
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	StaffRepo   repository.StaffRepository
	MappingRepo repository.MappingRepository
	UnitOfWork  repository.UnitOfWork
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AssignmentService{
		engine:     assignment.NewEngine(),
		tickets:    deps.TicketRepo,
		staff:      deps.StaffRepo,
		mappings:   deps.MappingRepo,
		uow:        deps.UnitOfWork,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// SelectAssignee loads the current mapping and workload snapshot and ranks it.
func (s *AssignmentService) SelectAssignee(ctx context.Context, ticket *domain.Ticket) (string, error) {
	snap, err := s.snapshot(ctx, ticket)
	if err != nil {
		return "", err
	}
	return s.engine.SelectAssignee(ticket, snap)
}

// AutoAssign picks the best staff member for the ticket and assigns it with a
// compare-and-set on the ticket version. Losing a race yields CONFLICT.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID string, actor domain.Actor) (*domain.Ticket, error) {
	ticket, err := findTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.AllowsAssignment() {
		s.metrics.RecordAssignment("conflict")
		return nil, notAssignable(ticket)
	}

	staffID, err := s.SelectAssignee(ctx, ticket)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNoEligibleStaff) {
			s.metrics.RecordAssignment("no_eligible_staff")
			s.logger.Warn("no eligible staff for ticket",
				zap.String("ticket_id", ticket.ID),
				zap.String("category", ticket.EffectiveCategory()),
				zap.String("hostel_block", ticket.HostelBlock))
		}
		return nil, err
	}
	return s.assign(ctx, ticket, staffID, actor, true)
}

// AssignTo assigns the ticket to a specific staff member (admin only).
func (s *AssignmentService) AssignTo(ctx context.Context, ticketID, staffID string, actor domain.Actor) (*domain.Ticket, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("only administrators can assign tickets manually")
	}
	assignee, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active || assignee.Role != domain.RoleStaff {
		return nil, apperrors.NewValidationError("assignee must be an active staff member", map[string]any{"staff_id": staffID})
	}

	ticket, err := findTicket(ctx, s.tickets, ticketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.AllowsAssignment() {
		return nil, notAssignable(ticket)
	}
	return s.assign(ctx, ticket, assignee.ID, actor, false)
}

// WorkloadStats reports the assignment counters of one staff member.
func (s *AssignmentService) WorkloadStats(ctx context.Context, staffID string) (*repository.WorkloadStats, error) {
	if _, err := s.staff.GetByID(ctx, staffID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return nil, apperrors.MapError(err)
	}
	stats, err := s.staff.WorkloadStats(ctx, staffID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// OnAssignmentMade records the assignee change and notifies the assignee. It
// runs inside the assignment transaction; the event is published by the caller
// after commit.
func (s *AssignmentService) OnAssignmentMade(ctx context.Context, repos repository.Repositories, before, after *domain.Ticket, actor domain.Actor) error {
	if err := repos.History.Create(ctx, &domain.TicketHistory{
		TicketID:    after.ID,
		ChangedByID: actor.IDPtr(),
		ChangeType:  domain.ChangeTypeAssignee,
		OldValue:    map[string]any{"assigned_to": before.AssignedTo},
		NewValue:    map[string]any{"assigned_to": after.AssignedTo},
	}); err != nil {
		return err
	}
	return repos.History.Create(ctx, &domain.TicketHistory{
		TicketID:    after.ID,
		ChangedByID: actor.IDPtr(),
		ChangeType:  domain.ChangeTypeStatus,
		OldValue:    map[string]any{"status": before.Status},
		NewValue:    map[string]any{"status": after.Status},
	})
}

func (s *AssignmentService) assign(ctx context.Context, ticket *domain.Ticket, staffID string, actor domain.Actor, automatic bool) (*domain.Ticket, error) {
	staged := ticket.Clone()
	staged.AssignedTo = &staffID
	next, err := lifecycle.Transition(staged, domain.TicketStatusAssigned, actor, s.now())
	if err != nil {
		return nil, err
	}

	err = s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		if err := repos.Tickets.UpdateIfVersion(ctx, next, ticket.Version, assignableStatuses); err != nil {
			return err
		}
		return s.OnAssignmentMade(ctx, repos, ticket, next, actor)
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			s.metrics.RecordAssignment("conflict")
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordAssignment("assigned")
	s.logger.Info("ticket assigned",
		zap.String("ticket_id", next.ID),
		zap.String("staff_id", staffID),
		zap.Bool("automatic", automatic))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: next.ID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketAssignedPayload{
			PreviousStaffID: ticket.AssignedTo,
			StaffID:         staffID,
			Automatic:       automatic,
		},
	})
	return next, nil
}

func (s *AssignmentService) snapshot(ctx context.Context, ticket *domain.Ticket) (assignment.Snapshot, error) {
	mappings, err := s.mappings.ListActiveForCategory(ctx, ticket.EffectiveCategory())
	if err != nil {
		return assignment.Snapshot{}, apperrors.MapError(err)
	}
	matching := assignment.MatchingMappings(mappings, ticket.EffectiveCategory(), ticket.HostelBlock)
	ids := uniqueStaffIDs(matching)

	users, err := s.staff.GetMany(ctx, ids)
	if err != nil {
		return assignment.Snapshot{}, apperrors.MapError(err)
	}
	load, err := s.tickets.CountActiveByAssignees(ctx, ids)
	if err != nil {
		return assignment.Snapshot{}, apperrors.MapError(err)
	}

	profiles := make(map[string]assignment.StaffProfile, len(users))
	for id, u := range users {
		profiles[id] = assignment.StaffProfile{User: u, ActiveTickets: load[id]}
	}
	return assignment.Snapshot{Mappings: matching, Staff: profiles}, nil
}

func findTicket(ctx context.Context, tickets repository.TicketRepository, ticketID string) (*domain.Ticket, error) {
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func notAssignable(ticket *domain.Ticket) error {
	return apperrors.NewConflict("ticket cannot be assigned in its current status", map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})
}

func uniqueStaffIDs(mappings []domain.StaffMapping) []string {
	seen := make(map[string]struct{}, len(mappings))
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if _, ok := seen[m.StaffID]; ok {
			continue
		}
		seen[m.StaffID] = struct{}{}
		ids = append(ids, m.StaffID)
	}
	return ids
}
