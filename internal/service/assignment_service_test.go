package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/observability"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

var adminActor = domain.Actor{ID: "ADM", Role: domain.RoleAdmin}

func newAssignmentFixture(t *testing.T) (*memStore, *AssignmentService, *recorder) {
	t.Helper()
	store := newMemStore(testNow)
	store.addUser(staffUser("S1", domain.VerticalElectrical))
	store.addUser(staffUser("S2", domain.VerticalElectrical))
	store.addMapping(domain.StaffMapping{StaffID: "S1", Category: "ELECTRICAL_ISSUES", PriorityLevel: 1, CapacityWeight: 1, ExpertiseLevel: 3, Active: true})
	store.addMapping(domain.StaffMapping{StaffID: "S2", Category: "ELECTRICAL_ISSUES", PriorityLevel: 2, CapacityWeight: 1, ExpertiseLevel: 5, Active: true})
	store.addTicket(domain.Ticket{
		ID:          "T-A",
		Title:       "Socket sparks",
		Category:    domain.CategoryElectricalIssues,
		Priority:    domain.TicketPriorityHigh,
		Status:      domain.TicketStatusOpen,
		HostelBlock: "A",
		RequesterID: "STU",
		CreatedAt:   testNow.Add(-time.Hour),
	})

	dispatcher, rec := newRecordingDispatcher(events.EventTicketAssigned)
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:  &fakeTickets{store},
		StaffRepo:   &fakeStaff{store},
		MappingRepo: &fakeMappings{store},
		UnitOfWork:  &fakeUnitOfWork{store},
		Dispatcher:  dispatcher,
		Metrics:     observability.NewMetrics(),
		Clock:       func() time.Time { return testNow },
	})
	return store, svc, rec
}

func TestAutoAssign_AssignsTopRankedStaff(t *testing.T) {
	store, svc, rec := newAssignmentFixture(t)

	ticket, err := svc.AutoAssign(context.Background(), "T-A", domain.SystemActor)
	require.NoError(t, err)

	require.NotNil(t, ticket.AssignedTo)
	assert.Equal(t, "S1", *ticket.AssignedTo)
	assert.Equal(t, domain.TicketStatusAssigned, ticket.Status)
	assert.Equal(t, testNow, *ticket.AssignedAt)
	assert.Equal(t, int64(2), ticket.Version)

	stored := store.ticket("T-A")
	assert.Equal(t, domain.TicketStatusAssigned, stored.Status)

	history := store.historyOf("T-A")
	require.Len(t, history, 2)
	assert.Equal(t, domain.ChangeTypeAssignee, history[0].ChangeType)
	assert.Equal(t, domain.ChangeTypeStatus, history[1].ChangeType)
	assert.Nil(t, history[0].ChangedByID)

	published := rec.all()
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketAssignedPayload)
	require.True(t, ok)
	assert.Equal(t, "S1", payload.StaffID)
	assert.True(t, payload.Automatic)
	assert.NotEmpty(t, published[0].ID)
}

func TestAutoAssign_NoEligibleStaffLeavesTicketOpen(t *testing.T) {
	store, svc, rec := newAssignmentFixture(t)
	store.addTicket(domain.Ticket{
		ID:          "T-H",
		Category:    domain.CategoryHVAC,
		Priority:    domain.TicketPriorityMedium,
		Status:      domain.TicketStatusOpen,
		HostelBlock: "C",
	})

	_, err := svc.AutoAssign(context.Background(), "T-H", domain.SystemActor)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNoEligibleStaff))

	stored := store.ticket("T-H")
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	assert.Empty(t, rec.all())
}

func TestAutoAssign_RejectsNonAssignableStatus(t *testing.T) {
	store, svc, _ := newAssignmentFixture(t)
	store.addTicket(domain.Ticket{
		ID:         "T-P",
		Category:   domain.CategoryElectricalIssues,
		Status:     domain.TicketStatusInProgress,
		AssignedTo: strPtr("S2"),
	})

	_, err := svc.AutoAssign(context.Background(), "T-P", domain.SystemActor)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, "S2", *store.ticket("T-P").AssignedTo)
}

func TestAutoAssign_UnknownTicket(t *testing.T) {
	_, svc, _ := newAssignmentFixture(t)

	_, err := svc.AutoAssign(context.Background(), "missing", domain.SystemActor)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestAutoAssign_ConcurrentCallsAssignOnce(t *testing.T) {
	store, svc, rec := newAssignmentFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AutoAssign(context.Background(), "T-A", domain.SystemActor)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperrors.HasCode(err, apperrors.CodeConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, int64(2), store.ticket("T-A").Version)
	assert.Len(t, store.historyOf("T-A"), 2)
	assert.Len(t, rec.all(), 1)
}

func TestAutoAssign_RollsBackWhenHistoryFails(t *testing.T) {
	store, svc, rec := newAssignmentFixture(t)
	store.failHistory = true

	_, err := svc.AutoAssign(context.Background(), "T-A", domain.SystemActor)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	stored := store.ticket("T-A")
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Nil(t, stored.AssignedTo)
	assert.Equal(t, int64(1), stored.Version)
	assert.Empty(t, rec.all())
}

func TestAssignTo(t *testing.T) {
	tests := []struct {
		name    string
		actor   domain.Actor
		staffID string
		setup   func(*memStore)
		code    string
	}{
		{name: "admin assigns", actor: adminActor, staffID: "S2"},
		{name: "staff cannot assign", actor: domain.Actor{ID: "S1", Role: domain.RoleStaff}, staffID: "S2", code: apperrors.CodeForbidden},
		{name: "unknown staff", actor: adminActor, staffID: "nobody", code: apperrors.CodeNotFound},
		{
			name:    "inactive staff",
			actor:   adminActor,
			staffID: "S3",
			setup: func(s *memStore) {
				u := staffUser("S3", domain.VerticalElectrical)
				u.Active = false
				s.addUser(u)
			},
			code: apperrors.CodeValidation,
		},
		{
			name:    "student is not staff",
			actor:   adminActor,
			staffID: "STU",
			setup: func(s *memStore) {
				s.addUser(domain.User{ID: "STU", Role: domain.RoleStudent, Active: true})
			},
			code: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc, rec := newAssignmentFixture(t)
			if tt.setup != nil {
				tt.setup(store)
			}

			ticket, err := svc.AssignTo(context.Background(), "T-A", tt.staffID, tt.actor)
			if tt.code != "" {
				assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
				assert.Equal(t, domain.TicketStatusOpen, store.ticket("T-A").Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.staffID, *ticket.AssignedTo)
			history := store.historyOf("T-A")
			require.NotEmpty(t, history)
			assert.Equal(t, "ADM", *history[0].ChangedByID)
			payload := rec.all()[0].Payload.(events.TicketAssignedPayload)
			assert.False(t, payload.Automatic)
		})
	}
}

func TestWorkloadStats(t *testing.T) {
	store, svc, _ := newAssignmentFixture(t)
	store.addTicket(domain.Ticket{ID: "T-1", Status: domain.TicketStatusClosed, AssignedTo: strPtr("S1")})
	store.addTicket(domain.Ticket{ID: "T-2", Status: domain.TicketStatusInProgress, AssignedTo: strPtr("S1")})
	store.addTicket(domain.Ticket{ID: "T-3", Status: domain.TicketStatusOnHold, AssignedTo: strPtr("S1")})
	store.addTicket(domain.Ticket{ID: "T-4", Status: domain.TicketStatusClosed, AssignedTo: strPtr("S1")})

	stats, err := svc.WorkloadStats(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 2, stats.Active)
	assert.Equal(t, 2, stats.Completed)
	assert.InDelta(t, 0.5, stats.CompletionRate, 1e-9)

	_, err = svc.WorkloadStats(context.Background(), "ghost")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSelectAssignee_PrefersLessLoadedAtEqualRank(t *testing.T) {
	store, svc, _ := newAssignmentFixture(t)
	store.addUser(staffUser("S4", domain.VerticalElectrical))
	store.addMapping(domain.StaffMapping{StaffID: "S4", Category: "electrical_issues", PriorityLevel: 1, CapacityWeight: 1, ExpertiseLevel: 3, Active: true})
	store.addTicket(domain.Ticket{ID: "T-9", Status: domain.TicketStatusAssigned, AssignedTo: strPtr("S1")})

	ticket := store.ticket("T-A")
	got, err := svc.SelectAssignee(context.Background(), &ticket)
	require.NoError(t, err)
	assert.Equal(t, "S4", got)
}
