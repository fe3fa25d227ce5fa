package dto

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/escalation"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// CreateEscalationRequest payload for a manual escalation. Level range is
// checked by the ladder so the error carries INVALID_ESCALATION_LEVEL.
type CreateEscalationRequest struct {
	Level         int    `json:"level" validate:"required"`
	TargetStaffID string `json:"target_staff_id"`
	Reason        string `json:"reason" validate:"required,max=1000"`
}

// ScanRequest payload for an on-demand scan.
type ScanRequest struct {
	DryRun bool `json:"dry_run"`
}

// EscalationResponse is the wire form of an escalation record.
type EscalationResponse struct {
	ID            string                 `json:"id"`
	TicketID      string                 `json:"ticket_id"`
	Level         domain.EscalationLevel `json:"level"`
	LevelName     string                 `json:"level_name"`
	EscalatedFrom *string                `json:"escalated_from"`
	EscalatedTo   string                 `json:"escalated_to"`
	EscalatedBy   *string                `json:"escalated_by"`
	Reason        string                 `json:"reason"`
	AutoEscalated bool                   `json:"auto_escalated"`
	EscalatedAt   time.Time              `json:"escalated_at"`
	ResolvedAt    *time.Time             `json:"resolved_at"`
	ResolvedBy    *string                `json:"resolved_by"`
}

// EscalationHistoryResponse is a ticket's chain.
type EscalationHistoryResponse struct {
	TicketID     string                  `json:"ticket_id"`
	CurrentLevel domain.EscalationLevel  `json:"current_level"`
	Status       domain.EscalationStatus `json:"status"`
	Active       *EscalationResponse     `json:"active"`
	Records      []EscalationResponse    `json:"records"`
}

// ActionResponse is a proposed escalation from a scan.
type ActionResponse struct {
	TicketID      string                 `json:"ticket_id"`
	NewLevel      domain.EscalationLevel `json:"new_level"`
	TargetStaffID string                 `json:"target_staff_id"`
	FromStaffID   *string                `json:"from_staff_id"`
	Reason        string                 `json:"reason"`
}

// ScanReportResponse summarises a scan.
type ScanReportResponse struct {
	DryRun     bool                 `json:"dry_run"`
	Actions    []ActionResponse     `json:"actions"`
	Applied    []EscalationResponse `json:"applied"`
	MaxReached []string             `json:"max_reached"`
	Skipped    []string             `json:"skipped"`
}

// NewEscalationResponse maps a domain record.
func NewEscalationResponse(e *domain.Escalation) EscalationResponse {
	return EscalationResponse{
		ID:            e.ID,
		TicketID:      e.TicketID,
		Level:         e.Level,
		LevelName:     e.Level.String(),
		EscalatedFrom: e.EscalatedFrom,
		EscalatedTo:   e.EscalatedTo,
		EscalatedBy:   e.EscalatedBy,
		Reason:        e.Reason,
		AutoEscalated: e.AutoEscalated,
		EscalatedAt:   e.EscalatedAt,
		ResolvedAt:    e.ResolvedAt,
		ResolvedBy:    e.ResolvedBy,
	}
}

func newEscalationList(records []domain.Escalation) []EscalationResponse {
	items := make([]EscalationResponse, 0, len(records))
	for i := range records {
		items = append(items, NewEscalationResponse(&records[i]))
	}
	return items
}

// NewEscalationHistoryResponse maps a chain.
func NewEscalationHistoryResponse(h *service.EscalationHistory) EscalationHistoryResponse {
	resp := EscalationHistoryResponse{
		TicketID:     h.TicketID,
		CurrentLevel: h.CurrentLevel,
		Status:       h.Status,
		Records:      newEscalationList(h.Records),
	}
	if h.Active != nil {
		active := NewEscalationResponse(h.Active)
		resp.Active = &active
	}
	return resp
}

// NewScanReportResponse maps a scan report.
func NewScanReportResponse(r *service.ScanReport) ScanReportResponse {
	resp := ScanReportResponse{
		DryRun:     r.DryRun,
		Actions:    make([]ActionResponse, 0, len(r.Actions)),
		Applied:    newEscalationList(r.Applied),
		MaxReached: nonNil(r.MaxReached),
		Skipped:    nonNil(r.Skipped),
	}
	for _, a := range r.Actions {
		resp.Actions = append(resp.Actions, newActionResponse(a))
	}
	return resp
}

func newActionResponse(a escalation.Action) ActionResponse {
	return ActionResponse{
		TicketID:      a.TicketID,
		NewLevel:      a.NewLevel,
		TargetStaffID: a.TargetStaffID,
		FromStaffID:   a.FromStaffID,
		Reason:        a.Reason,
	}
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
