package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

var staffActor = domain.Actor{ID: "staff-1", Role: domain.RoleStaff}

func strPtr(v string) *string { return &v }

func TestCanTransition_Table(t *testing.T) {
	tests := []struct {
		from domain.TicketStatus
		to   []domain.TicketStatus
	}{
		{domain.TicketStatusOpen, []domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusCancelled}},
		{domain.TicketStatusAssigned, []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusOnHold, domain.TicketStatusCancelled}},
		{domain.TicketStatusInProgress, []domain.TicketStatus{domain.TicketStatusOnHold, domain.TicketStatusResolved, domain.TicketStatusCancelled}},
		{domain.TicketStatusOnHold, []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusCancelled}},
		{domain.TicketStatusResolved, []domain.TicketStatus{domain.TicketStatusClosed, domain.TicketStatusReopened}},
		{domain.TicketStatusClosed, []domain.TicketStatus{domain.TicketStatusReopened}},
		{domain.TicketStatusCancelled, []domain.TicketStatus{domain.TicketStatusOpen}},
		{domain.TicketStatusReopened, []domain.TicketStatus{domain.TicketStatusAssigned, domain.TicketStatusInProgress, domain.TicketStatusCancelled}},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			allowed := map[domain.TicketStatus]bool{}
			for _, to := range tt.to {
				allowed[to] = true
			}
			for _, to := range domain.AllTicketStatuses {
				assert.Equal(t, allowed[to], CanTransition(tt.from, to), "%s -> %s", tt.from, to)
			}
			assert.ElementsMatch(t, tt.to, NextStatuses(tt.from))
		})
	}
}

func TestTransition_RejectsEveryPairOutsideTable(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for _, from := range domain.AllTicketStatuses {
		for _, to := range domain.AllTicketStatuses {
			if CanTransition(from, to) {
				continue
			}
			ticket := &domain.Ticket{ID: "t-1", Status: from, AssignedTo: strPtr("staff-1"), Version: 3}
			before := *ticket

			got, err := Transition(ticket, to, staffActor, now)

			require.Error(t, err, "%s -> %s", from, to)
			assert.Nil(t, got)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))
			assert.Equal(t, before, *ticket, "ticket mutated on rejected %s -> %s", from, to)
		}
	}
}

func TestTransition_ResolvedToInProgressIsIllegal(t *testing.T) {
	ticket := &domain.Ticket{ID: "t-4", Status: domain.TicketStatusResolved, AssignedTo: strPtr("staff-1")}

	_, err := Transition(ticket, domain.TicketStatusInProgress, staffActor, time.Now())

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIllegalTransition))
	assert.Equal(t, domain.TicketStatusResolved, ticket.Status)
}

func TestTransition_StampsSideEffects(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("assigned requires assignee", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusOpen}
		_, err := Transition(ticket, domain.TicketStatusAssigned, staffActor, now)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

		ticket.AssignedTo = strPtr("staff-1")
		got, err := Transition(ticket, domain.TicketStatusAssigned, staffActor, now)
		require.NoError(t, err)
		require.NotNil(t, got.AssignedAt)
		assert.Equal(t, now, *got.AssignedAt)
		assert.Equal(t, now, *got.LastProgressAt)
	})

	t.Run("resolved clears urgency", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusInProgress, AssignedTo: strPtr("staff-1"), EscalationUrgent: true}
		got, err := Transition(ticket, domain.TicketStatusResolved, staffActor, now)
		require.NoError(t, err)
		assert.Equal(t, now, *got.ResolvedAt)
		assert.False(t, got.EscalationUrgent)
		assert.Equal(t, "staff-1", *got.AssignedTo)
		assert.True(t, ticket.EscalationUrgent, "input must stay untouched")
	})

	t.Run("on hold keeps urgency", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusInProgress, AssignedTo: strPtr("staff-1"), EscalationUrgent: true}
		got, err := Transition(ticket, domain.TicketStatusOnHold, staffActor, now)
		require.NoError(t, err)
		assert.True(t, got.EscalationUrgent)
	})

	t.Run("closed stamps closed_at and drops assignee", func(t *testing.T) {
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusResolved, AssignedTo: strPtr("staff-1"), EscalationUrgent: true}
		got, err := Transition(ticket, domain.TicketStatusClosed, staffActor, now)
		require.NoError(t, err)
		assert.Equal(t, now, *got.ClosedAt)
		assert.Nil(t, got.AssignedTo)
		assert.False(t, got.EscalationUrgent)
	})

	t.Run("reopened clears completion stamps", func(t *testing.T) {
		resolved := now.Add(-time.Hour)
		ticket := &domain.Ticket{ID: "t-1", Status: domain.TicketStatusClosed, ResolvedAt: &resolved, ClosedAt: &resolved}
		got, err := Transition(ticket, domain.TicketStatusReopened, staffActor, now)
		require.NoError(t, err)
		assert.Nil(t, got.ResolvedAt)
		assert.Nil(t, got.ClosedAt)
		assert.True(t, got.Status.AllowsAssignment())
	})
}

func TestStatusPredicates(t *testing.T) {
	for _, s := range domain.AllTicketStatuses {
		terminal := s == domain.TicketStatusClosed || s == domain.TicketStatusCancelled
		assert.Equal(t, !terminal, s.AllowsStatusChange(), s)
		assert.Equal(t, !terminal, s.AllowsComments(), s)
		assert.Equal(t, !terminal, s.AllowsAttachments(), s)
		assert.Equal(t, s == domain.TicketStatusOpen || s == domain.TicketStatusReopened, s.AllowsAssignment(), s)
		assert.Equal(t, s == domain.TicketStatusResolved, s.RequiresUserConfirmation(), s)
		assert.Equal(t, s == domain.TicketStatusResolved || s == domain.TicketStatusClosed, s.IndicatesCompletion(), s)
	}
}
