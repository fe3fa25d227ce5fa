// Package assignment ranks staff candidates for a ticket from the mapping
// table and the current workload snapshot.
package assignment

import (
	"sort"
	"strings"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

// StaffProfile is the directory view of a candidate at selection time.
type StaffProfile struct {
	User          domain.User
	ActiveTickets int
}

// Snapshot is everything SelectAssignee reads. Selection is a pure function of it.
type Snapshot struct {
	Mappings []domain.StaffMapping
	Staff    map[string]StaffProfile
}

// Candidate is an ephemeral, scored view of one eligible staff member.
type Candidate struct {
	StaffID        string
	Mapping        domain.StaffMapping
	ActiveTickets  int
	MaxActive      int
	CanEmergency   bool
	WorkloadRatio  float64
	PriorityLevel  int
	ExpertiseLevel int
}

// AtCapacity reports whether the candidate reached the vertical ceiling.
func (c Candidate) AtCapacity() bool {
	return c.ActiveTickets >= c.MaxActive
}

// Engine selects assignees. It holds no state.
type Engine struct{}

// NewEngine constructs the engine.
func NewEngine() *Engine {
	return &Engine{}
}

// SelectAssignee returns the best-ranked staff id for ticket or a NO_ELIGIBLE_STAFF error.
func (e *Engine) SelectAssignee(ticket *domain.Ticket, snap Snapshot) (string, error) {
	ranked, err := e.Rank(ticket, snap)
	if err != nil {
		return "", err
	}
	return ranked[0].StaffID, nil
}

// Rank returns the candidates in selection order after the capacity and
// emergency filters. The slice is never empty when err is nil.
func (e *Engine) Rank(ticket *domain.Ticket, snap Snapshot) ([]Candidate, error) {
	category := ticket.EffectiveCategory()
	matching := MatchingMappings(snap.Mappings, category, ticket.HostelBlock)
	if len(matching) == 0 {
		return nil, apperrors.NewNoEligibleStaff(category, ticket.HostelBlock)
	}

	candidates := buildCandidates(matching, snap.Staff)
	if len(candidates) == 0 {
		return nil, apperrors.NewNoEligibleStaff(category, ticket.HostelBlock)
	}

	pool := underCapacity(candidates)
	if len(pool) == 0 {
		// every candidate is full; degrade to the full list rather than fail
		pool = candidates
	}

	if ticket.NeedsEmergencyHandling() {
		if capable := emergencyCapable(pool); len(capable) > 0 {
			pool = capable
		}
	}

	sortCandidates(pool)
	return pool, nil
}

// MatchingMappings filters active mappings for category that cover block.
func MatchingMappings(mappings []domain.StaffMapping, category, block string) []domain.StaffMapping {
	category = strings.TrimSpace(category)
	var out []domain.StaffMapping
	for _, m := range mappings {
		if !m.Active {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(m.Category), category) {
			continue
		}
		if m.BlockSpecific() && !strings.EqualFold(*m.HostelBlock, block) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func buildCandidates(mappings []domain.StaffMapping, staff map[string]StaffProfile) []Candidate {
	best := make(map[string]domain.StaffMapping, len(mappings))
	for _, m := range mappings {
		current, seen := best[m.StaffID]
		if !seen || preferMapping(m, current) {
			best[m.StaffID] = m
		}
	}

	out := make([]Candidate, 0, len(best))
	for staffID, m := range best {
		profile, ok := staff[staffID]
		if !ok || !profile.User.Active || profile.User.Role != domain.RoleStaff {
			continue
		}
		weight := m.CapacityWeight
		if weight <= 0 {
			weight = 1
		}
		out = append(out, Candidate{
			StaffID:        staffID,
			Mapping:        m,
			ActiveTickets:  profile.ActiveTickets,
			MaxActive:      profile.User.MaxActiveTickets(),
			CanEmergency:   profile.User.CanHandleEmergencies(),
			WorkloadRatio:  float64(profile.ActiveTickets) / weight,
			PriorityLevel:  m.PriorityLevel,
			ExpertiseLevel: m.ExpertiseLevel,
		})
	}
	return out
}

// preferMapping decides between two mappings of the same staff member: a
// block-specific one beats an all-blocks one, then the lower priority level.
func preferMapping(candidate, current domain.StaffMapping) bool {
	if candidate.BlockSpecific() != current.BlockSpecific() {
		return candidate.BlockSpecific()
	}
	if candidate.PriorityLevel != current.PriorityLevel {
		return candidate.PriorityLevel < current.PriorityLevel
	}
	if candidate.ExpertiseLevel != current.ExpertiseLevel {
		return candidate.ExpertiseLevel > current.ExpertiseLevel
	}
	return candidate.ID < current.ID
}

func underCapacity(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.AtCapacity() {
			out = append(out, c)
		}
	}
	return out
}

func emergencyCapable(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.CanEmergency {
			out = append(out, c)
		}
	}
	return out
}

func sortCandidates(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.PriorityLevel != b.PriorityLevel {
			return a.PriorityLevel < b.PriorityLevel
		}
		if a.ExpertiseLevel != b.ExpertiseLevel {
			return a.ExpertiseLevel > b.ExpertiseLevel
		}
		if a.WorkloadRatio != b.WorkloadRatio {
			return a.WorkloadRatio < b.WorkloadRatio
		}
		return a.StaffID < b.StaffID
	})
}
