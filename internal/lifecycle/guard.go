// Package lifecycle holds the ticket status transition table and applies
// transitions with their timestamp side effects.
package lifecycle

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusAssigned, domain.TicketStatusCancelled},
	domain.TicketStatusAssigned:   {domain.TicketStatusInProgress, domain.TicketStatusOnHold, domain.TicketStatusCancelled},
	domain.TicketStatusInProgress: {domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusOnHold:     {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusReopened},
	domain.TicketStatusClosed:     {domain.TicketStatusReopened},
	domain.TicketStatusCancelled:  {domain.TicketStatusOpen},
	domain.TicketStatusReopened:   {domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusCancelled},
}

// NextStatuses returns the statuses reachable from current.
func NextStatuses(current domain.TicketStatus) []domain.TicketStatus {
	next := allowedTransitions[current]
	out := make([]domain.TicketStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Transition applies to on a copy of ticket. The input is never modified, so a
// rejected transition leaves no trace.
func Transition(ticket *domain.Ticket, to domain.TicketStatus, actor domain.Actor, now time.Time) (*domain.Ticket, error) {
	if ticket == nil {
		return nil, apperrors.NewValidationError("ticket required", nil)
	}
	if !CanTransition(ticket.Status, to) {
		return nil, apperrors.NewIllegalTransition(string(ticket.Status), string(to))
	}
	if to == domain.TicketStatusAssigned && ticket.AssignedTo == nil {
		return nil, apperrors.NewValidationError("assignee required for ASSIGNED", map[string]any{"ticket_id": ticket.ID})
	}

	next := ticket.Clone()
	next.Status = to
	stamp := now
	next.LastProgressAt = &stamp
	next.UpdatedAt = now

	switch to {
	case domain.TicketStatusAssigned:
		next.AssignedAt = &stamp
	case domain.TicketStatusResolved:
		next.ResolvedAt = &stamp
		next.EscalationUrgent = false
	case domain.TicketStatusClosed:
		next.ClosedAt = &stamp
		next.EscalationUrgent = false
	case domain.TicketStatusReopened:
		next.ResolvedAt = nil
		next.ClosedAt = nil
	case domain.TicketStatusOpen:
		next.AssignedAt = nil
	}

	if !to.HoldsAssignee() {
		next.AssignedTo = nil
	}
	return next, nil
}
