package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

const maxExpertiseLevel = 5

// MappingService administers the routing table used by the assignment engine.
type MappingService struct {
	mappings repository.MappingRepository
	staff    repository.StaffRepository
	logger   *zap.Logger
}

// MappingDependencies bundles repositories for mapping administration.
type MappingDependencies struct {
	MappingRepo repository.MappingRepository
	StaffRepo   repository.StaffRepository
	Logger      *zap.Logger
}

// MappingInput is the writable part of a mapping.
type MappingInput struct {
	StaffID        string
	HostelBlock    *string
	Category       string
	PriorityLevel  int
	CapacityWeight float64
	ExpertiseLevel int
}

// NewMappingService constructs the service.
func NewMappingService(deps MappingDependencies) *MappingService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{mappings: deps.MappingRepo, staff: deps.StaffRepo, logger: logger}
}

// CreateMapping adds an active mapping.
func (s *MappingService) CreateMapping(ctx context.Context, actor domain.Actor, input MappingInput) (*domain.StaffMapping, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	mapping, err := s.buildMapping(ctx, input)
	if err != nil {
		return nil, err
	}
	mapping.Active = true
	if err := s.mappings.Create(ctx, mapping); err != nil {
		return nil, mappingWriteError(err, mapping)
	}
	s.logger.Info("staff mapping created",
		zap.String("mapping_id", mapping.ID),
		zap.String("staff_id", mapping.StaffID),
		zap.String("category", mapping.Category))
	return mapping, nil
}

// UpdateMapping replaces the routing fields of a mapping. The staff member of
// a mapping cannot change; create a new mapping instead.
func (s *MappingService) UpdateMapping(ctx context.Context, actor domain.Actor, id string, input MappingInput) (*domain.StaffMapping, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	existing, err := s.getMapping(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.StaffID == "" {
		input.StaffID = existing.StaffID
	}
	if input.StaffID != existing.StaffID {
		return nil, apperrors.NewValidationError("staff_id of a mapping cannot change", map[string]any{"mapping_id": id})
	}
	mapping, err := s.buildMapping(ctx, input)
	if err != nil {
		return nil, err
	}
	mapping.ID = existing.ID
	mapping.Active = existing.Active
	mapping.CreatedAt = existing.CreatedAt
	if err := s.mappings.Update(ctx, mapping); err != nil {
		return nil, mappingWriteError(err, mapping)
	}
	return mapping, nil
}

// DeactivateMapping soft-deletes a mapping.
func (s *MappingService) DeactivateMapping(ctx context.Context, actor domain.Actor, id string) (*domain.StaffMapping, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	mapping, err := s.mappings.Deactivate(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("mapping", map[string]any{"mapping_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("staff mapping deactivated", zap.String("mapping_id", id))
	return mapping, nil
}

// ListMappings lists mappings for administration.
func (s *MappingService) ListMappings(ctx context.Context, actor domain.Actor, filter repository.MappingFilter) ([]domain.StaffMapping, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	mappings, err := s.mappings.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return mappings, nil
}

func (s *MappingService) getMapping(ctx context.Context, id string) (*domain.StaffMapping, error) {
	mapping, err := s.mappings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("mapping", map[string]any{"mapping_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return mapping, nil
}

func (s *MappingService) buildMapping(ctx context.Context, input MappingInput) (*domain.StaffMapping, error) {
	category := NormalizeCategory(input.Category)
	details := map[string]any{}
	if category == "" {
		details["category"] = "required"
	}
	if input.PriorityLevel < 1 {
		details["priority_level"] = "must be at least 1"
	}
	if input.CapacityWeight <= 0 {
		details["capacity_weight"] = "must be positive"
	}
	if input.ExpertiseLevel < 1 || input.ExpertiseLevel > maxExpertiseLevel {
		details["expertise_level"] = "must be between 1 and 5"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid mapping", details)
	}

	user, err := s.staff.GetByID(ctx, input.StaffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": input.StaffID})
		}
		return nil, apperrors.MapError(err)
	}
	if user.Role != domain.RoleStaff {
		return nil, apperrors.NewValidationError("mappings can only target staff members", map[string]any{"staff_id": input.StaffID})
	}

	s.warnOutsideVertical(user, category)

	var block *string
	if input.HostelBlock != nil {
		if b := strings.TrimSpace(*input.HostelBlock); b != "" {
			block = &b
		}
	}
	return &domain.StaffMapping{
		StaffID:        user.ID,
		HostelBlock:    block,
		Category:       category,
		PriorityLevel:  input.PriorityLevel,
		CapacityWeight: input.CapacityWeight,
		ExpertiseLevel: input.ExpertiseLevel,
	}, nil
}

// warnOutsideVertical flags built-in categories the staff member's vertical
// does not normally cover. Such mappings are still allowed.
func (s *MappingService) warnOutsideVertical(user *domain.User, category string) {
	if user.StaffVertical == nil {
		return
	}
	cat := domain.TicketCategory(category)
	if !cat.Valid() || user.StaffVertical.Handles(cat) {
		return
	}
	s.logger.Warn("mapping category outside staff vertical",
		zap.String("staff_id", user.ID),
		zap.String("vertical", string(*user.StaffVertical)),
		zap.String("category", category),
		zap.Any("compatible", user.StaffVertical.CompatibleCategories()))
}

// NormalizeCategory maps built-in categories to their canonical spelling and
// keeps custom categories as trimmed free text.
func NormalizeCategory(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if upper := domain.TicketCategory(strings.ToUpper(trimmed)); upper.Valid() {
		return string(upper)
	}
	return trimmed
}

func mappingWriteError(err error, mapping *domain.StaffMapping) error {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return apperrors.NewConflict("an active mapping already covers this staff member and category", map[string]any{
			"staff_id": mapping.StaffID,
			"category": mapping.Category,
		})
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("mapping", map[string]any{"mapping_id": mapping.ID})
	default:
		return apperrors.MapError(err)
	}
}
