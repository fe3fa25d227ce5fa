package dto

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// CreateStaffRequest payload for a directory entry.
type CreateStaffRequest struct {
	Name        string                `json:"name" validate:"required,max=200"`
	Email       string                `json:"email" validate:"required,email"`
	Role        domain.UserRole       `json:"role" validate:"required,oneof=STUDENT STAFF ADMIN"`
	Vertical    *domain.StaffVertical `json:"staff_vertical"`
	HostelBlock *string               `json:"hostel_block" validate:"omitempty,max=50"`
}

// Input converts the request for the service layer.
func (r CreateStaffRequest) Input() service.StaffInput {
	return service.StaffInput{
		Name:        r.Name,
		Email:       r.Email,
		Role:        r.Role,
		Vertical:    r.Vertical,
		HostelBlock: r.HostelBlock,
	}
}

// StaffResponse is the wire form of a directory record.
type StaffResponse struct {
	ID               string                `json:"id"`
	Name             string                `json:"name"`
	Email            string                `json:"email"`
	Role             domain.UserRole       `json:"role"`
	Vertical         *domain.StaffVertical `json:"staff_vertical"`
	HostelBlock      *string               `json:"hostel_block"`
	Active           bool                  `json:"active"`
	MaxActiveTickets int                   `json:"max_active_tickets"`
	CreatedAt        time.Time             `json:"created_at"`
}

// WorkloadResponse summarises a staff member's tickets.
type WorkloadResponse struct {
	StaffID        string  `json:"staff_id"`
	Total          int     `json:"total"`
	Active         int     `json:"active"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// NewStaffResponse maps a directory record.
func NewStaffResponse(u *domain.User) StaffResponse {
	return StaffResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		Vertical:         u.StaffVertical,
		HostelBlock:      u.HostelBlock,
		Active:           u.Active,
		MaxActiveTickets: u.MaxActiveTickets(),
		CreatedAt:        u.CreatedAt,
	}
}

// NewStaffList maps a slice of directory records.
func NewStaffList(users []domain.User) []StaffResponse {
	items := make([]StaffResponse, 0, len(users))
	for i := range users {
		items = append(items, NewStaffResponse(&users[i]))
	}
	return items
}

// NewWorkloadResponse maps repository stats.
func NewWorkloadResponse(s *repository.WorkloadStats) WorkloadResponse {
	return WorkloadResponse{
		StaffID:        s.StaffID,
		Total:          s.Total,
		Active:         s.Active,
		Completed:      s.Completed,
		CompletionRate: s.CompletionRate,
	}
}
