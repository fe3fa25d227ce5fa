package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/events"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
)

var errHistoryDown = errors.New("history store unavailable")

// memStore backs every fake repository. WithinTx serializes transactions and
// restores a snapshot when fn fails.
type memStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	tickets     map[string]domain.Ticket
	escalations map[string]domain.Escalation
	users       map[string]domain.User
	mappings    map[string]domain.StaffMapping
	history     []domain.TicketHistory
	seq         int

	failHistory bool
	now         time.Time
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		tickets:     map[string]domain.Ticket{},
		escalations: map[string]domain.Escalation{},
		users:       map[string]domain.User{},
		mappings:    map[string]domain.StaffMapping{},
		now:         now,
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%03d", prefix, s.seq)
}

func (s *memStore) repos() repository.Repositories {
	return repository.Repositories{
		Tickets:     &fakeTickets{s},
		Escalations: &fakeEscalations{s},
		History:     &fakeHistory{s},
	}
}

func (s *memStore) addUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) addTicket(t domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Version == 0 {
		t.Version = 1
	}
	s.tickets[t.ID] = t
}

func (s *memStore) addEscalation(e domain.Escalation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = s.nextID("E")
	}
	s.escalations[e.ID] = e
}

func (s *memStore) addMapping(m domain.StaffMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = s.nextID("M")
	}
	s.mappings[m.ID] = m
}

func (s *memStore) ticket(id string) domain.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickets[id]
}

func (s *memStore) historyOf(ticketID string) []domain.TicketHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range s.history {
		if h.TicketID == ticketID {
			out = append(out, h)
		}
	}
	return out
}

func (s *memStore) escalationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.escalations)
}

type snapshot struct {
	tickets     map[string]domain.Ticket
	escalations map[string]domain.Escalation
	history     []domain.TicketHistory
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		escalations: make(map[string]domain.Escalation, len(s.escalations)),
		history:     append([]domain.TicketHistory(nil), s.history...),
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	for k, v := range s.escalations {
		snap.escalations[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets = snap.tickets
	s.escalations = snap.escalations
	s.history = snap.history
}

type fakeUnitOfWork struct{ s *memStore }

func (u *fakeUnitOfWork) WithinTx(_ context.Context, fn func(repository.Repositories) error) error {
	u.s.txMu.Lock()
	defer u.s.txMu.Unlock()
	snap := u.s.snapshot()
	if err := fn(u.s.repos()); err != nil {
		u.s.restore(snap)
		return err
	}
	return nil
}

type fakeTickets struct{ s *memStore }

func (r *fakeTickets) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.nextID("T")
	t.Version = 1
	t.CreatedAt = r.s.now
	t.UpdatedAt = r.s.now
	r.s.tickets[t.ID] = *t.Clone()
	return nil
}

func (r *fakeTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r *fakeTickets) UpdateIfVersion(_ context.Context, t *domain.Ticket, expectedVersion int64, allowed []domain.TicketStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[t.ID]
	if !ok || stored.Version != expectedVersion {
		return repository.ErrStaleWrite
	}
	if len(allowed) > 0 && !containsStatus(allowed, stored.Status) {
		return repository.ErrStaleWrite
	}
	t.Version = expectedVersion + 1
	r.s.tickets[t.ID] = *t.Clone()
	return nil
}

func (r *fakeTickets) ListByStatuses(_ context.Context, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if containsStatus(statuses, t.Status) {
			out = append(out, *t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTickets) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if f.RequesterID != nil && t.RequesterID != *f.RequesterID {
			continue
		}
		if f.AssigneeID != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssigneeID) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
			continue
		}
		out = append(out, *t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTickets) CountActiveByAssignees(_ context.Context, ids []string) (map[string]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]int{}
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	for _, t := range r.s.tickets {
		if t.AssignedTo != nil && wanted[*t.AssignedTo] && containsStatus(domain.WorkloadStatuses, t.Status) {
			out[*t.AssignedTo]++
		}
	}
	return out, nil
}

type fakeEscalations struct{ s *memStore }

func (r *fakeEscalations) CreateIfAbsent(_ context.Context, e *domain.Escalation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.escalations {
		if existing.TicketID == e.TicketID && existing.Level == e.Level {
			return false, nil
		}
	}
	e.ID = r.s.nextID("E")
	r.s.escalations[e.ID] = *e
	return true, nil
}

func (r *fakeEscalations) GetByID(_ context.Context, id string) (*domain.Escalation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escalations[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &e, nil
}

func (r *fakeEscalations) ListByTicket(_ context.Context, ticketID string) ([]domain.Escalation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Escalation
	for _, e := range r.s.escalations {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Level > out[j].Level })
	return out, nil
}

func (r *fakeEscalations) ListByTickets(_ context.Context, ids []string) (map[string][]domain.Escalation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := map[string][]domain.Escalation{}
	for _, e := range r.s.escalations {
		if wanted[e.TicketID] {
			out[e.TicketID] = append(out[e.TicketID], e)
		}
	}
	for id := range out {
		records := out[id]
		sort.Slice(records, func(i, j int) bool { return records[i].Level < records[j].Level })
	}
	return out, nil
}

func (r *fakeEscalations) Resolve(_ context.Context, id string, resolvedBy *string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.escalations[id]
	if !ok || e.ResolvedAt != nil {
		return false, nil
	}
	e.ResolvedAt = &at
	e.ResolvedBy = resolvedBy
	r.s.escalations[id] = e
	return true, nil
}

type fakeHistory struct{ s *memStore }

func (r *fakeHistory) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failHistory {
		return errHistoryDown
	}
	h.ID = r.s.nextID("H")
	h.CreatedAt = r.s.now
	r.s.history = append(r.s.history, *h)
	return nil
}

func (r *fakeHistory) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.s.historyOf(ticketID), nil
}

type fakeStaff struct{ s *memStore }

func (r *fakeStaff) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrDuplicate
		}
	}
	u.ID = r.s.nextID("U")
	r.s.users[u.ID] = *u
	return nil
}

func (r *fakeStaff) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r *fakeStaff) GetMany(_ context.Context, ids []string) (map[string]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[string]domain.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *fakeStaff) List(_ context.Context, f repository.StaffFilter) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if f.Role != nil && u.Role != *f.Role {
			continue
		}
		if f.Active != nil && u.Active != *f.Active {
			continue
		}
		out = append(out, u)
	}
	sortUsers(out)
	return out, nil
}

func (r *fakeStaff) ListActiveByVerticals(_ context.Context, verticals []domain.StaffVertical) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if !u.Active || u.StaffVertical == nil {
			continue
		}
		for _, v := range verticals {
			if *u.StaffVertical == v {
				out = append(out, u)
				break
			}
		}
	}
	sortUsers(out)
	return out, nil
}

func (r *fakeStaff) ListActiveByRole(_ context.Context, role domain.UserRole) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, u := range r.s.users {
		if u.Active && u.Role == role {
			out = append(out, u)
		}
	}
	sortUsers(out)
	return out, nil
}

func (r *fakeStaff) WorkloadStats(_ context.Context, staffID string) (*repository.WorkloadStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stats := &repository.WorkloadStats{StaffID: staffID}
	for _, t := range r.s.tickets {
		if t.AssignedTo == nil || *t.AssignedTo != staffID {
			continue
		}
		stats.Total++
		if containsStatus(domain.WorkloadStatuses, t.Status) {
			stats.Active++
		}
		if t.Status == domain.TicketStatusClosed {
			stats.Completed++
		}
	}
	if stats.Total > 0 {
		stats.CompletionRate = float64(stats.Completed) / float64(stats.Total)
	}
	return stats, nil
}

type fakeMappings struct{ s *memStore }

func (r *fakeMappings) ListActiveForCategory(_ context.Context, category string) ([]domain.StaffMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StaffMapping
	for _, m := range r.s.mappings {
		if m.Active && strings.EqualFold(m.Category, strings.TrimSpace(category)) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMappings) GetByID(_ context.Context, id string) (*domain.StaffMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mappings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &m, nil
}

func (r *fakeMappings) List(_ context.Context, f repository.MappingFilter) ([]domain.StaffMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StaffMapping
	for _, m := range r.s.mappings {
		if f.ActiveOnly && !m.Active {
			continue
		}
		if f.StaffID != nil && m.StaffID != *f.StaffID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMappings) Create(_ context.Context, m *domain.StaffMapping) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.conflicts(m) {
		return repository.ErrDuplicate
	}
	m.ID = r.s.nextID("M")
	r.s.mappings[m.ID] = *m
	return nil
}

func (r *fakeMappings) Update(_ context.Context, m *domain.StaffMapping) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.mappings[m.ID]; !ok {
		return pgx.ErrNoRows
	}
	if r.conflicts(m) {
		return repository.ErrDuplicate
	}
	r.s.mappings[m.ID] = *m
	return nil
}

func (r *fakeMappings) Deactivate(_ context.Context, id string) (*domain.StaffMapping, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mappings[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	m.Active = false
	r.s.mappings[id] = m
	return &m, nil
}

func (r *fakeMappings) conflicts(m *domain.StaffMapping) bool {
	for _, existing := range r.s.mappings {
		if existing.ID == m.ID || !existing.Active {
			continue
		}
		if existing.StaffID == m.StaffID &&
			strings.EqualFold(existing.Category, m.Category) &&
			blockKey(existing.HostelBlock) == blockKey(m.HostelBlock) {
			return true
		}
	}
	return false
}

func blockKey(b *string) string {
	if b == nil {
		return ""
	}
	return *b
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

func sortUsers(users []domain.User) {
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
}

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher(types ...events.EventType) (events.Dispatcher, *recorder) {
	d := events.NewInMemoryDispatcher(nil)
	rec := &recorder{}
	for _, t := range types {
		d.Subscribe(t, func(_ context.Context, e events.Event) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.events = append(rec.events, e)
			return nil
		})
	}
	return d, rec
}

func (r *recorder) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func verticalPtr(v domain.StaffVertical) *domain.StaffVertical { return &v }

func staffUser(id string, vertical domain.StaffVertical) domain.User {
	return domain.User{ID: id, Name: id, Email: strings.ToLower(id) + "@hostel.test", Role: domain.RoleStaff, StaffVertical: verticalPtr(vertical), Active: true}
}
