package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusOnHold     TicketStatus = "ON_HOLD"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// AllTicketStatuses lists every status in declaration order.
var AllTicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusOnHold,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusCancelled,
	TicketStatusReopened,
}

// WorkloadStatuses are the statuses counted as a staff member's open workload.
var WorkloadStatuses = []TicketStatus{
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusOnHold,
}

// EscalatableStatuses are the statuses scanned by the escalation ladder.
var EscalatableStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusOnHold,
	TicketStatusReopened,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range AllTicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsActive is false only for CLOSED and CANCELLED.
func (s TicketStatus) IsActive() bool {
	return s != TicketStatusClosed && s != TicketStatusCancelled
}

// AllowsAssignment reports whether a ticket in this status may be (re)assigned.
func (s TicketStatus) AllowsAssignment() bool {
	return s == TicketStatusOpen || s == TicketStatusReopened
}

// AllowsStatusChange reports whether any outgoing change is permitted.
func (s TicketStatus) AllowsStatusChange() bool {
	return s.IsActive()
}

// AllowsComments reports whether comments can be posted.
func (s TicketStatus) AllowsComments() bool {
	return s.IsActive()
}

// AllowsAttachments reports whether attachments can be added.
func (s TicketStatus) AllowsAttachments() bool {
	return s.IsActive()
}

// IndicatesCompletion is true once work is done.
func (s TicketStatus) IndicatesCompletion() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// RequiresUserConfirmation is true while the requester's feedback is pending.
func (s TicketStatus) RequiresUserConfirmation() bool {
	return s == TicketStatusResolved
}

// HoldsAssignee reports whether a ticket in this status may carry an assignee.
func (s TicketStatus) HoldsAssignee() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusInProgress, TicketStatusOnHold, TicketStatusResolved:
		return true
	default:
		return false
	}
}

// Escalatable reports whether the escalation ladder considers this status.
func (s TicketStatus) Escalatable() bool {
	for _, st := range EscalatableStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow       TicketPriority = "LOW"
	TicketPriorityMedium    TicketPriority = "MEDIUM"
	TicketPriorityHigh      TicketPriority = "HIGH"
	TicketPriorityEmergency TicketPriority = "EMERGENCY"
)

var priorityLevels = map[TicketPriority]int{
	TicketPriorityLow:       1,
	TicketPriorityMedium:    2,
	TicketPriorityHigh:      3,
	TicketPriorityEmergency: 4,
}

// Level returns the numeric weight of the priority (LOW=1 .. EMERGENCY=4), 0 if unknown.
func (p TicketPriority) Level() int {
	return priorityLevels[p]
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	_, ok := priorityLevels[p]
	return ok
}

// Ticket is the aggregate for a reported facilities issue.
type Ticket struct {
	ID               string
	TicketNumber     string
	Title            string
	Description      string
	Category         TicketCategory
	CustomCategory   *string
	Priority         TicketPriority
	IsEmergency      bool
	Status           TicketStatus
	HostelBlock      string
	RequesterID      string
	AssignedTo       *string
	AssignedAt       *time.Time
	LastProgressAt   *time.Time
	ResolvedAt       *time.Time
	ClosedAt         *time.Time
	EscalationUrgent bool
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// EffectiveCategory returns the custom category when present, else the enum category.
func (t *Ticket) EffectiveCategory() string {
	if t.CustomCategory != nil {
		if custom := strings.TrimSpace(*t.CustomCategory); custom != "" {
			return custom
		}
	}
	return string(t.Category)
}

// NeedsEmergencyHandling reports whether emergency-capable staff should be preferred.
func (t *Ticket) NeedsEmergencyHandling() bool {
	return t.IsEmergency || t.Priority == TicketPriorityEmergency || t.Category == CategorySafetySecurity
}

// Clone returns a deep copy so callers can stage changes without touching the original.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.CustomCategory = cloneString(t.CustomCategory)
	c.AssignedTo = cloneString(t.AssignedTo)
	c.AssignedAt = cloneTime(t.AssignedAt)
	c.LastProgressAt = cloneTime(t.LastProgressAt)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
