package dto

import (
	"time"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/service"
)

// MappingRequest is the create/update payload for a staff mapping. On update
// staff_id may be omitted.
type MappingRequest struct {
	StaffID        string  `json:"staff_id"`
	HostelBlock    *string `json:"hostel_block" validate:"omitempty,max=50"`
	Category       string  `json:"category" validate:"required,max=100"`
	PriorityLevel  int     `json:"priority_level" validate:"required,min=1"`
	CapacityWeight float64 `json:"capacity_weight" validate:"required,gt=0"`
	ExpertiseLevel int     `json:"expertise_level" validate:"required,min=1,max=5"`
}

// Input converts the request for the service layer.
func (r MappingRequest) Input() service.MappingInput {
	return service.MappingInput{
		StaffID:        r.StaffID,
		HostelBlock:    r.HostelBlock,
		Category:       r.Category,
		PriorityLevel:  r.PriorityLevel,
		CapacityWeight: r.CapacityWeight,
		ExpertiseLevel: r.ExpertiseLevel,
	}
}

// MappingResponse is the wire form of a mapping.
type MappingResponse struct {
	ID             string    `json:"id"`
	StaffID        string    `json:"staff_id"`
	HostelBlock    *string   `json:"hostel_block"`
	Category       string    `json:"category"`
	PriorityLevel  int       `json:"priority_level"`
	CapacityWeight float64   `json:"capacity_weight"`
	ExpertiseLevel int       `json:"expertise_level"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewMappingResponse maps a domain mapping.
func NewMappingResponse(m *domain.StaffMapping) MappingResponse {
	return MappingResponse{
		ID:             m.ID,
		StaffID:        m.StaffID,
		HostelBlock:    m.HostelBlock,
		Category:       m.Category,
		PriorityLevel:  m.PriorityLevel,
		CapacityWeight: m.CapacityWeight,
		ExpertiseLevel: m.ExpertiseLevel,
		Active:         m.Active,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// NewMappingList maps a slice of mappings.
func NewMappingList(mappings []domain.StaffMapping) []MappingResponse {
	items := make([]MappingResponse, 0, len(mappings))
	for i := range mappings {
		items = append(items, NewMappingResponse(&mappings[i]))
	}
	return items
}
