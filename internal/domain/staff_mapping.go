package domain

import "time"

// StaffMapping routes a (hostel block, category) pair to a staff member.
// A nil HostelBlock applies to every block.
type StaffMapping struct {
	ID             string
	StaffID        string
	HostelBlock    *string
	Category       string
	PriorityLevel  int
	CapacityWeight float64
	ExpertiseLevel int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BlockSpecific reports whether the mapping targets one block.
func (m *StaffMapping) BlockSpecific() bool {
	return m.HostelBlock != nil && *m.HostelBlock != ""
}
