package domain

import "time"

// EscalationLevel is one of five tiers of organizational authority.
type EscalationLevel int

const (
	LevelNone                    EscalationLevel = 0
	LevelStaffMember             EscalationLevel = 1
	LevelTeamLead                EscalationLevel = 2
	LevelDepartmentHead          EscalationLevel = 3
	LevelHostelAdministration    EscalationLevel = 4
	LevelInstituteAdministration EscalationLevel = 5

	MaxEscalationLevel = LevelInstituteAdministration
)

var levelNames = map[EscalationLevel]string{
	LevelStaffMember:             "Staff Member",
	LevelTeamLead:                "Team Lead",
	LevelDepartmentHead:          "Department Head",
	LevelHostelAdministration:    "Hostel Administration",
	LevelInstituteAdministration: "Institute Administration",
}

// Valid reports whether l is within 1..5.
func (l EscalationLevel) Valid() bool {
	return l >= LevelStaffMember && l <= MaxEscalationLevel
}

// String returns the display name of the level.
func (l EscalationLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "None"
}

// CanEscalate is false once the top tier is reached.
func (l EscalationLevel) CanEscalate() bool {
	return l < MaxEscalationLevel
}

// IsCritical marks the two administration tiers.
func (l EscalationLevel) IsCritical() bool {
	return l >= LevelHostelAdministration
}

// EscalationStatus is the derived standing of a ticket's escalation chain.
type EscalationStatus string

const (
	EscalationStatusNone      EscalationStatus = "NONE"
	EscalationStatusNormal    EscalationStatus = "NORMAL"
	EscalationStatusEscalated EscalationStatus = "ESCALATED"
	EscalationStatusCritical  EscalationStatus = "CRITICAL"
)

// StatusForLevel derives the chain standing from the active level.
func StatusForLevel(l EscalationLevel) EscalationStatus {
	switch {
	case l <= LevelNone:
		return EscalationStatusNone
	case l.IsCritical():
		return EscalationStatusCritical
	case l >= LevelTeamLead:
		return EscalationStatusEscalated
	default:
		return EscalationStatusNormal
	}
}

// Escalation is a persisted escalation record.
type Escalation struct {
	ID            string
	TicketID      string
	Level         EscalationLevel
	EscalatedFrom *string
	EscalatedTo   string
	EscalatedBy   *string
	Reason        string
	AutoEscalated bool
	EscalatedAt   time.Time
	ResolvedAt    *time.Time
	ResolvedBy    *string
}

// Resolved reports whether the record has been closed out.
func (e *Escalation) Resolved() bool {
	return e.ResolvedAt != nil
}
