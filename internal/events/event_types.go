package events

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventEscalationResolved  EventType = "escalation_resolved"
)

// Actor encapsulates actor metadata for an event. A nil UserID marks the system.
type Actor struct {
	UserID *string         `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{UserID: a.IDPtr(), Role: a.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string                `json:"ticket_number"`
	Category     string                `json:"category"`
	HostelBlock  string                `json:"hostel_block"`
	Priority     domain.TicketPriority `json:"priority"`
	Title        string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus   domain.TicketStatus `json:"old_status"`
	NewStatus   domain.TicketStatus `json:"new_status"`
	RequesterID string              `json:"requester_id,omitempty"`
	Comment     string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	PreviousStaffID *string `json:"previous_staff_id,omitempty"`
	StaffID         string  `json:"staff_id"`
	Automatic       bool    `json:"automatic"`
}

// TicketEscalatedPayload payload.
type TicketEscalatedPayload struct {
	EscalationID  string                 `json:"escalation_id"`
	Level         domain.EscalationLevel `json:"level"`
	LevelName     string                 `json:"level_name"`
	EscalatedTo   string                 `json:"escalated_to"`
	EscalatedFrom *string                `json:"escalated_from,omitempty"`
	RequesterID   string                 `json:"requester_id,omitempty"`
	Reason        string                 `json:"reason"`
	AutoEscalated bool                   `json:"auto_escalated"`
}

// EscalationResolvedPayload payload.
type EscalationResolvedPayload struct {
	EscalationID string                 `json:"escalation_id"`
	Level        domain.EscalationLevel `json:"level"`
	EscalatedTo  string                 `json:"escalated_to"`
}
