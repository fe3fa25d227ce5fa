package dto

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string                `json:"title" validate:"required,max=200"`
	Description    string                `json:"description" validate:"max=5000"`
	Category       domain.TicketCategory `json:"category" validate:"required"`
	CustomCategory *string               `json:"custom_category" validate:"omitempty,max=100"`
	Priority       domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH EMERGENCY"`
	IsEmergency    bool                  `json:"is_emergency"`
	HostelBlock    string                `json:"hostel_block" validate:"required,max=50"`
}

// Input converts the request for the service layer.
func (r CreateTicketRequest) Input() service.TicketCreateInput {
	return service.TicketCreateInput{
		Title:          r.Title,
		Description:    r.Description,
		Category:       r.Category,
		CustomCategory: r.CustomCategory,
		Priority:       r.Priority,
		IsEmergency:    r.IsEmergency,
		HostelBlock:    r.HostelBlock,
	}
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	Status  domain.TicketStatus `json:"status" validate:"required"`
	Comment string              `json:"comment" validate:"max=2000"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID               string                `json:"id"`
	TicketNumber     string                `json:"ticket_number"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	Category         domain.TicketCategory `json:"category"`
	CategoryName     string                `json:"category_name"`
	CustomCategory   *string               `json:"custom_category,omitempty"`
	Priority         domain.TicketPriority `json:"priority"`
	IsEmergency      bool                  `json:"is_emergency"`
	Status           domain.TicketStatus   `json:"status"`
	HostelBlock      string                `json:"hostel_block"`
	RequesterID      string                `json:"requester_id"`
	AssignedTo       *string               `json:"assigned_to"`
	AssignedAt       *time.Time            `json:"assigned_at"`
	LastProgressAt   *time.Time            `json:"last_progress_at"`
	ResolvedAt       *time.Time            `json:"resolved_at"`
	ClosedAt         *time.Time            `json:"closed_at"`
	EscalationUrgent bool                  `json:"escalation_urgent"`
	Version          int64                 `json:"version"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// TicketDetailResponse adds the escalation chain and audit trail.
type TicketDetailResponse struct {
	TicketResponse
	Escalation *EscalationHistoryResponse `json:"escalation"`
	History    []HistoryResponse          `json:"history"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	ChangedByID *string                 `json:"changed_by_id"`
	ChangeType  domain.TicketChangeType `json:"change_type"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		Title:            t.Title,
		Description:      t.Description,
		Category:         t.Category,
		CategoryName:     domain.TicketCategory(t.EffectiveCategory()).DisplayName(),
		CustomCategory:   t.CustomCategory,
		Priority:         t.Priority,
		IsEmergency:      t.IsEmergency,
		Status:           t.Status,
		HostelBlock:      t.HostelBlock,
		RequesterID:      t.RequesterID,
		AssignedTo:       t.AssignedTo,
		AssignedAt:       t.AssignedAt,
		LastProgressAt:   t.LastProgressAt,
		ResolvedAt:       t.ResolvedAt,
		ClosedAt:         t.ClosedAt,
		EscalationUrgent: t.EscalationUrgent,
		Version:          t.Version,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// NewTicketList maps a slice of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewTicketDetail combines a ticket with its chain and history.
func NewTicketDetail(t *domain.Ticket, chain *service.EscalationHistory, history []domain.TicketHistory) TicketDetailResponse {
	detail := TicketDetailResponse{
		TicketResponse: NewTicketResponse(t),
		History:        make([]HistoryResponse, 0, len(history)),
	}
	if chain != nil {
		resp := NewEscalationHistoryResponse(chain)
		detail.Escalation = &resp
	}
	for _, h := range history {
		detail.History = append(detail.History, HistoryResponse{
			ID:          h.ID,
			ChangedByID: h.ChangedByID,
			ChangeType:  h.ChangeType,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return detail
}
