// Package escalation defines the five-tier escalation ladder: thresholds,
// the trigger predicate and target selection. It performs no I/O.
package escalation

import (
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

const (
	ReasonTimeThreshold = "TIME_THRESHOLD_EXCEEDED"
	ReasonManual        = "MANUAL_ESCALATION"
)

var baseHours = map[domain.EscalationLevel]int{
	domain.LevelStaffMember:             4,
	domain.LevelTeamLead:                8,
	domain.LevelDepartmentHead:          12,
	domain.LevelHostelAdministration:    24,
	domain.LevelInstituteAdministration: 48,
}

var notificationRoles = map[domain.EscalationLevel][]domain.StaffVertical{
	domain.LevelStaffMember: {
		domain.VerticalElectrical, domain.VerticalPlumbing, domain.VerticalHVAC,
		domain.VerticalITSupport, domain.VerticalGeneralMaintenance, domain.VerticalHousekeeping,
	},
	domain.LevelTeamLead:                {domain.VerticalBlockSupervisor, domain.VerticalMaintenanceSupervisor},
	domain.LevelDepartmentHead:          {domain.VerticalHostelWarden, domain.VerticalAssistantWarden},
	domain.LevelHostelAdministration:    {domain.VerticalHostelWarden, domain.VerticalChiefWarden},
	domain.LevelInstituteAdministration: {domain.VerticalChiefWarden, domain.VerticalAdminOfficer},
}

// ThresholdHours returns the idle hours after which level is reached for priority.
func ThresholdHours(level domain.EscalationLevel, priority domain.TicketPriority) int {
	base := baseHours[level]
	switch priority {
	case domain.TicketPriorityEmergency:
		return max(1, base/4)
	case domain.TicketPriorityHigh:
		return max(2, base/2)
	case domain.TicketPriorityLow:
		return base * 2
	default:
		return base
	}
}

// Threshold is ThresholdHours as a duration.
func Threshold(level domain.EscalationLevel, priority domain.TicketPriority) time.Duration {
	return time.Duration(ThresholdHours(level, priority)) * time.Hour
}

// NotificationRoles lists the verticals notified at level, in preference order.
func NotificationRoles(level domain.EscalationLevel) []domain.StaffVertical {
	roles := notificationRoles[level]
	out := make([]domain.StaffVertical, len(roles))
	copy(out, roles)
	return out
}

// CurrentLevel is the highest level ever recorded for the ticket.
func CurrentLevel(records []domain.Escalation) domain.EscalationLevel {
	current := domain.LevelNone
	for _, r := range records {
		if r.Level > current {
			current = r.Level
		}
	}
	return current
}

// Active returns the highest-level record, or nil.
func Active(records []domain.Escalation) *domain.Escalation {
	var active *domain.Escalation
	for i := range records {
		if active == nil || records[i].Level > active.Level {
			active = &records[i]
		}
	}
	return active
}

// ReferenceTime is the last moment the ticket showed movement: assignment,
// status progress, or escalation activity. It falls back to creation.
func ReferenceTime(ticket *domain.Ticket, records []domain.Escalation) time.Time {
	ref := ticket.CreatedAt
	later := func(t *time.Time) {
		if t != nil && t.After(ref) {
			ref = *t
		}
	}
	later(ticket.AssignedAt)
	later(ticket.LastProgressAt)
	for i := range records {
		later(&records[i].EscalatedAt)
		later(records[i].ResolvedAt)
	}
	return ref
}

// Decision is the outcome of evaluating one ticket against the ladder.
type Decision struct {
	TicketID     string
	CurrentLevel domain.EscalationLevel
	NextLevel    domain.EscalationLevel
	Reference    time.Time
	Elapsed      time.Duration
	Threshold    time.Duration
	Eligible     bool
	MaxReached   bool
}

// Reason formats the automatic escalation reason.
func (d Decision) Reason() string {
	return fmt.Sprintf("%s: no progress for %s (threshold %s for %s)",
		ReasonTimeThreshold, d.Elapsed.Truncate(time.Minute), d.Threshold, d.NextLevel)
}

// Evaluate applies the trigger predicate to ticket at now.
func Evaluate(ticket *domain.Ticket, records []domain.Escalation, now time.Time) Decision {
	current := CurrentLevel(records)
	d := Decision{TicketID: ticket.ID, CurrentLevel: current}
	if !ticket.Status.Escalatable() {
		return d
	}
	if !current.CanEscalate() {
		d.MaxReached = true
		return d
	}

	d.NextLevel = current + 1
	d.Reference = ReferenceTime(ticket, records)
	d.Elapsed = now.Sub(d.Reference)
	d.Threshold = Threshold(d.NextLevel, ticket.Priority)
	d.Eligible = d.Elapsed > d.Threshold
	return d
}

// ValidateManualLevel enforces the monotonic level rule for manual escalation.
func ValidateManualLevel(current, target domain.EscalationLevel) error {
	if !target.Valid() {
		return apperrors.NewInvalidLevel("escalation level must be between 1 and 5", map[string]any{
			"target_level": int(target),
		})
	}
	if target <= current {
		return apperrors.NewInvalidLevel("escalation level must be above the current level", map[string]any{
			"current_level": int(current),
			"target_level":  int(target),
		})
	}
	return nil
}

// Action is a pending escalation produced by a scan.
type Action struct {
	TicketID      string
	NewLevel      domain.EscalationLevel
	TargetStaffID string
	FromStaffID   *string
	Reason        string
	AutoEscalated bool
}

// TargetSelector picks escalation targets. It keeps its own load counters so
// that successive picks within one scan spread across people.
type TargetSelector struct {
	users []domain.User
	load  map[string]int
}

// NewTargetSelector seeds the selector with the directory and current open workload.
func NewTargetSelector(users []domain.User, load map[string]int) *TargetSelector {
	counts := make(map[string]int, len(load))
	for id, n := range load {
		counts[id] = n
	}
	return &TargetSelector{users: users, load: counts}
}

// Pick returns the target for level and counts the pick against them. The
// second result is false when nobody can take the escalation.
func (s *TargetSelector) Pick(level domain.EscalationLevel) (string, bool) {
	id, ok := s.Peek(level)
	if ok {
		s.load[id]++
	}
	return id, ok
}

// Peek is Pick without recording the load.
func (s *TargetSelector) Peek(level domain.EscalationLevel) (string, bool) {
	rank := map[domain.StaffVertical]int{}
	for i, v := range notificationRoles[level] {
		rank[v] = i
	}

	type option struct {
		id    string
		load  int
		order int
	}
	var holders, admins []option
	for _, u := range s.users {
		if !u.Active {
			continue
		}
		if u.StaffVertical != nil {
			if order, ok := rank[*u.StaffVertical]; ok {
				holders = append(holders, option{id: u.ID, load: s.load[u.ID], order: order})
				continue
			}
		}
		if u.Role == domain.RoleAdmin {
			admins = append(admins, option{id: u.ID, load: s.load[u.ID]})
		}
	}

	pool := holders
	if len(pool) == 0 {
		pool = admins
	}
	if len(pool) == 0 {
		return "", false
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].load != pool[j].load {
			return pool[i].load < pool[j].load
		}
		if pool[i].order != pool[j].order {
			return pool[i].order < pool[j].order
		}
		return pool[i].id < pool[j].id
	})
	return pool[0].id, true
}
