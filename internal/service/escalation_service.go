package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/config"
	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/escalation"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// errSkipAction aborts the per-action transaction without surfacing an error.
var errSkipAction = errors.New("escalation action no longer applies")

// EscalationService runs the escalation ladder against stored tickets.
type EscalationService struct {
	tickets     repository.TicketRepository
	escalations repository.EscalationRepository
	staff       repository.StaffRepository
	uow         repository.UnitOfWork
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	cfg         config.EscalationConfig
	now         func() time.Time
}

// EscalationDependencies bundles repositories for the escalation service.
type EscalationDependencies struct {
	TicketRepo     repository.TicketRepository
	EscalationRepo repository.EscalationRepository
	StaffRepo      repository.StaffRepository
	UnitOfWork     repository.UnitOfWork
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Config         config.EscalationConfig
	Clock          func() time.Time
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &EscalationService{
		tickets:     deps.TicketRepo,
		escalations: deps.EscalationRepo,
		staff:       deps.StaffRepo,
		uow:         deps.UnitOfWork,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		cfg:         deps.Config,
		now:         clock,
	}
}

// ScanReport summarises one pass over the escalatable tickets.
type ScanReport struct {
	Actions    []escalation.Action
	Applied    []domain.Escalation
	MaxReached []string
	Skipped    []string
	DryRun     bool
}

// ManualEscalationInput describes a user-initiated escalation.
type ManualEscalationInput struct {
	TicketID      string
	Level         domain.EscalationLevel
	TargetStaffID string
	Reason        string
}

// EscalationHistory is the escalation chain of one ticket.
type EscalationHistory struct {
	TicketID     string
	CurrentLevel domain.EscalationLevel
	Status       domain.EscalationStatus
	Active       *domain.Escalation
	Records      []domain.Escalation
}

// ScanForEligibleTickets evaluates every escalatable ticket at now and returns
// the actions that should be applied. It performs no writes.
func (s *EscalationService) ScanForEligibleTickets(ctx context.Context, now time.Time) (*ScanReport, error) {
	tickets, err := s.tickets.ListByStatuses(ctx, domain.EscalatableStatuses)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	report := &ScanReport{}
	if len(tickets) == 0 {
		return report, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
	}
	records, err := s.escalations.ListByTickets(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	selector, err := s.targetSelector(ctx)
	if err != nil {
		return nil, err
	}

	for i := range tickets {
		ticket := &tickets[i]
		history := records[ticket.ID]
		decision := escalation.Evaluate(ticket, history, now)
		if decision.MaxReached {
			report.MaxReached = append(report.MaxReached, ticket.ID)
			continue
		}
		if !decision.Eligible {
			continue
		}

		target, ok := selector.Pick(decision.NextLevel)
		if !ok {
			s.logger.Warn("no escalation target available",
				zap.String("ticket_id", ticket.ID),
				zap.Int("level", int(decision.NextLevel)))
			report.Skipped = append(report.Skipped, ticket.ID)
			continue
		}

		from := ticket.AssignedTo
		if active := escalation.Active(history); active != nil {
			escalatedTo := active.EscalatedTo
			from = &escalatedTo
		}
		report.Actions = append(report.Actions, escalation.Action{
			TicketID:      ticket.ID,
			NewLevel:      decision.NextLevel,
			TargetStaffID: target,
			FromStaffID:   from,
			Reason:        decision.Reason(),
			AutoEscalated: true,
		})
	}
	return report, nil
}

// ApplyActions writes each action in its own transaction. Actions whose level
// already exists for the ticket are skipped, so re-applying a scan is harmless.
// Failures of single actions are collected and returned together.
func (s *EscalationService) ApplyActions(ctx context.Context, actions []escalation.Action, now time.Time) ([]domain.Escalation, error) {
	var (
		applied []domain.Escalation
		errs    []error
	)
	for _, action := range actions {
		record, err := s.apply(ctx, action, domain.SystemActor, now)
		switch {
		case errors.Is(err, errSkipAction):
			s.logger.Debug("escalation action skipped",
				zap.String("ticket_id", action.TicketID),
				zap.Int("level", int(action.NewLevel)))
		case err != nil:
			s.logger.Error("failed to apply escalation",
				zap.String("ticket_id", action.TicketID),
				zap.Int("level", int(action.NewLevel)),
				zap.Error(err))
			errs = append(errs, err)
		default:
			applied = append(applied, *record)
		}
	}
	return applied, errors.Join(errs...)
}

// RunScan scans and, unless dryRun, applies the resulting actions.
func (s *EscalationService) RunScan(ctx context.Context, now time.Time, dryRun bool) (*ScanReport, error) {
	started := time.Now()
	report, err := s.ScanForEligibleTickets(ctx, now)
	if err != nil {
		return nil, err
	}
	report.DryRun = dryRun
	if !dryRun && len(report.Actions) > 0 {
		report.Applied, err = s.ApplyActions(ctx, report.Actions, now)
	}
	s.metrics.ObserveScan(time.Since(started), len(report.Applied))
	s.logger.Info("escalation scan finished",
		zap.Int("actions", len(report.Actions)),
		zap.Int("applied", len(report.Applied)),
		zap.Int("max_reached", len(report.MaxReached)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Bool("dry_run", dryRun))
	return report, err
}

// ManualEscalate raises a ticket to input.Level regardless of elapsed time.
func (s *EscalationService) ManualEscalate(ctx context.Context, input ManualEscalationInput, actor domain.Actor) (*domain.Escalation, error) {
	if !actor.Role.CanEscalate() {
		return nil, apperrors.NewForbidden("only staff and administrators can escalate tickets")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("reason is required", nil)
	}

	ticket, err := findTicket(ctx, s.tickets, input.TicketID)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.IsActive() {
		return nil, apperrors.NewConflict("ticket is no longer active", map[string]any{
			"ticket_id": ticket.ID,
			"status":    ticket.Status,
		})
	}
	records, err := s.escalations.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := escalation.ValidateManualLevel(escalation.CurrentLevel(records), input.Level); err != nil {
		return nil, err
	}

	target, err := s.resolveTarget(ctx, input)
	if err != nil {
		return nil, err
	}
	from := ticket.AssignedTo
	if active := escalation.Active(records); active != nil {
		escalatedTo := active.EscalatedTo
		from = &escalatedTo
	}

	record, err := s.apply(ctx, escalation.Action{
		TicketID:      ticket.ID,
		NewLevel:      input.Level,
		TargetStaffID: target,
		FromStaffID:   from,
		Reason:        escalation.ReasonManual + ": " + reason,
	}, actor, s.now())
	if errors.Is(err, errSkipAction) {
		return nil, apperrors.NewConflict("ticket was escalated concurrently", map[string]any{
			"ticket_id": ticket.ID,
			"level":     int(input.Level),
		})
	}
	return record, err
}

// Resolve closes out an escalation. Only the escalated-to user or an
// administrator may resolve; the ticket itself is left untouched.
func (s *EscalationService) Resolve(ctx context.Context, escalationID string, actor domain.Actor) (*domain.Escalation, error) {
	record, err := s.escalations.GetByID(ctx, escalationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("escalation", map[string]any{"escalation_id": escalationID})
		}
		return nil, apperrors.MapError(err)
	}
	if actor.Role != domain.RoleAdmin && actor.ID != record.EscalatedTo {
		return nil, apperrors.NewForbidden("only the escalation target or an administrator can resolve it")
	}
	if record.Resolved() {
		return nil, apperrors.NewAlreadyResolved(record.ID)
	}

	now := s.now()
	err = s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		ok, err := repos.Escalations.Resolve(ctx, record.ID, actor.IDPtr(), now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.NewAlreadyResolved(record.ID)
		}
		return repos.History.Create(ctx, &domain.TicketHistory{
			TicketID:    record.TicketID,
			ChangedByID: actor.IDPtr(),
			ChangeType:  domain.ChangeTypeEscalationResolved,
			OldValue:    map[string]any{"escalation_id": record.ID, "level": int(record.Level)},
			NewValue:    map[string]any{"resolved_at": now},
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	record.ResolvedAt = &now
	record.ResolvedBy = actor.IDPtr()
	s.metrics.RecordEscalationResolved(int(record.Level))
	s.logger.Info("escalation resolved",
		zap.String("escalation_id", record.ID),
		zap.String("ticket_id", record.TicketID),
		zap.Int("level", int(record.Level)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventEscalationResolved,
		TicketID: record.TicketID,
		Actor:    events.ActorFrom(actor),
		Payload: events.EscalationResolvedPayload{
			EscalationID: record.ID,
			Level:        record.Level,
			EscalatedTo:  record.EscalatedTo,
		},
	})
	return record, nil
}

// History returns the ticket's escalation records, newest first.
func (s *EscalationService) History(ctx context.Context, ticketID string) (*EscalationHistory, error) {
	if _, err := findTicket(ctx, s.tickets, ticketID); err != nil {
		return nil, err
	}
	records, err := s.escalations.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	current := escalation.CurrentLevel(records)
	return &EscalationHistory{
		TicketID:     ticketID,
		CurrentLevel: current,
		Status:       domain.StatusForLevel(current),
		Active:       escalation.Active(records),
		Records:      records,
	}, nil
}

func (s *EscalationService) apply(ctx context.Context, action escalation.Action, actor domain.Actor, now time.Time) (*domain.Escalation, error) {
	record := &domain.Escalation{
		TicketID:      action.TicketID,
		Level:         action.NewLevel,
		EscalatedFrom: action.FromStaffID,
		EscalatedTo:   action.TargetStaffID,
		EscalatedBy:   actor.IDPtr(),
		Reason:        action.Reason,
		AutoEscalated: action.AutoEscalated,
		EscalatedAt:   now,
	}

	var (
		bumped      bool
		requesterID string
	)
	err := s.uow.WithinTx(ctx, func(repos repository.Repositories) error {
		ticket, err := repos.Tickets.GetByID(ctx, action.TicketID)
		if err != nil {
			return err
		}
		requesterID = ticket.RequesterID
		if action.AutoEscalated && !ticket.Status.Escalatable() {
			return errSkipAction
		}
		if !action.AutoEscalated && !ticket.Status.IsActive() {
			return errSkipAction
		}
		existing, err := repos.Escalations.ListByTicket(ctx, ticket.ID)
		if err != nil {
			return err
		}
		if action.NewLevel <= escalation.CurrentLevel(existing) {
			return errSkipAction
		}
		created, err := repos.Escalations.CreateIfAbsent(ctx, record)
		if err != nil {
			return err
		}
		if !created {
			return errSkipAction
		}

		next := ticket.Clone()
		next.EscalationUrgent = true
		next.UpdatedAt = now
		if s.shouldBumpPriority(ticket.Priority, action.NewLevel) {
			next.Priority = domain.TicketPriorityHigh
			bumped = true
		}
		if err := repos.Tickets.UpdateIfVersion(ctx, next, ticket.Version, nil); err != nil {
			return err
		}

		if bumped {
			if err := repos.History.Create(ctx, &domain.TicketHistory{
				TicketID:    ticket.ID,
				ChangedByID: actor.IDPtr(),
				ChangeType:  domain.ChangeTypePriority,
				OldValue:    map[string]any{"priority": ticket.Priority},
				NewValue:    map[string]any{"priority": next.Priority},
			}); err != nil {
				return err
			}
		}
		return repos.History.Create(ctx, &domain.TicketHistory{
			TicketID:    ticket.ID,
			ChangedByID: actor.IDPtr(),
			ChangeType:  domain.ChangeTypeEscalation,
			OldValue:    map[string]any{"level": int(escalation.CurrentLevel(existing))},
			NewValue: map[string]any{
				"level":        int(record.Level),
				"escalated_to": record.EscalatedTo,
				"reason":       record.Reason,
			},
		})
	})
	if err != nil {
		if errors.Is(err, errSkipAction) {
			return nil, err
		}
		if errors.Is(err, repository.ErrStaleWrite) {
			return nil, apperrors.NewConflict("ticket was modified concurrently", map[string]any{"ticket_id": action.TicketID})
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": action.TicketID})
		}
		return nil, apperrors.MapError(err)
	}

	s.metrics.RecordEscalation(int(record.Level), record.AutoEscalated)
	s.logger.Info("ticket escalated",
		zap.String("ticket_id", record.TicketID),
		zap.String("staff_id", record.EscalatedTo),
		zap.Int("level", int(record.Level)),
		zap.Bool("auto", record.AutoEscalated),
		zap.Bool("priority_bumped", bumped))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketEscalated,
		TicketID: record.TicketID,
		Actor:    events.ActorFrom(actor),
		Payload: events.TicketEscalatedPayload{
			EscalationID:  record.ID,
			Level:         record.Level,
			LevelName:     record.Level.String(),
			EscalatedTo:   record.EscalatedTo,
			EscalatedFrom: record.EscalatedFrom,
			RequesterID:   requesterID,
			Reason:        record.Reason,
			AutoEscalated: record.AutoEscalated,
		},
	})
	return record, nil
}

func (s *EscalationService) shouldBumpPriority(priority domain.TicketPriority, level domain.EscalationLevel) bool {
	if !s.cfg.BumpPriority || !level.IsCritical() {
		return false
	}
	return priority == domain.TicketPriorityLow || priority == domain.TicketPriorityMedium
}

func (s *EscalationService) resolveTarget(ctx context.Context, input ManualEscalationInput) (string, error) {
	if id := strings.TrimSpace(input.TargetStaffID); id != "" {
		user, err := s.staff.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", apperrors.NewNotFound("staff", map[string]any{"staff_id": id})
			}
			return "", apperrors.MapError(err)
		}
		if !user.Active || user.Role == domain.RoleStudent {
			return "", apperrors.NewValidationError("escalation target must be active staff", map[string]any{"staff_id": id})
		}
		return user.ID, nil
	}

	selector, err := s.targetSelector(ctx)
	if err != nil {
		return "", err
	}
	target, ok := selector.Peek(input.Level)
	if !ok {
		return "", apperrors.NewConflict("no escalation target available", map[string]any{"level": int(input.Level)})
	}
	return target, nil
}

// targetSelector loads every user who may receive an escalation at any level,
// together with their open workload.
func (s *EscalationService) targetSelector(ctx context.Context) (*escalation.TargetSelector, error) {
	seen := map[domain.StaffVertical]struct{}{}
	var verticals []domain.StaffVertical
	for level := domain.LevelStaffMember; level <= domain.MaxEscalationLevel; level++ {
		for _, v := range escalation.NotificationRoles(level) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			verticals = append(verticals, v)
		}
	}

	holders, err := s.staff.ListActiveByVerticals(ctx, verticals)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	admins, err := s.staff.ListActiveByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	users := make([]domain.User, 0, len(holders)+len(admins))
	ids := make([]string, 0, len(holders)+len(admins))
	known := map[string]struct{}{}
	for _, u := range append(holders, admins...) {
		if _, ok := known[u.ID]; ok {
			continue
		}
		known[u.ID] = struct{}{}
		users = append(users, u)
		ids = append(ids, u.ID)
	}

	load, err := s.tickets.CountActiveByAssignees(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return escalation.NewTargetSelector(users, load), nil
}
