package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/hostel-dispatch/internal/domain"
	"github.com/spec-kit/hostel-dispatch/internal/repository"
	apperrors "github.com/spec-kit/hostel-dispatch/pkg/util/errorutil"
)

func newMappingFixture(t *testing.T) (*memStore, *MappingService) {
	t.Helper()
	store := newMemStore(testNow)
	store.addUser(staffUser("S1", domain.VerticalHVAC))
	store.addUser(domain.User{ID: "STU", Role: domain.RoleStudent, Active: true})
	return store, NewMappingService(MappingDependencies{
		MappingRepo: &fakeMappings{store},
		StaffRepo:   &fakeStaff{store},
	})
}

func validMappingInput() MappingInput {
	return MappingInput{StaffID: "S1", Category: " hvac ", PriorityLevel: 1, CapacityWeight: 1.5, ExpertiseLevel: 4}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "HVAC", NormalizeCategory(" hvac "))
	assert.Equal(t, "ELECTRICAL_ISSUES", NormalizeCategory("Electrical_Issues"))
	assert.Equal(t, "Water Cooler", NormalizeCategory("  Water Cooler "))
}

func TestCreateMapping(t *testing.T) {
	store, svc := newMappingFixture(t)

	mapping, err := svc.CreateMapping(context.Background(), adminActor, validMappingInput())
	require.NoError(t, err)
	assert.NotEmpty(t, mapping.ID)
	assert.Equal(t, "HVAC", mapping.Category)
	assert.True(t, mapping.Active)
	assert.Nil(t, mapping.HostelBlock)

	_, err = svc.CreateMapping(context.Background(), adminActor, validMappingInput())
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	blockA := validMappingInput()
	blockA.HostelBlock = strPtr(" A ")
	scoped, err := svc.CreateMapping(context.Background(), adminActor, blockA)
	require.NoError(t, err)
	assert.Equal(t, "A", *scoped.HostelBlock)

	listed, err := svc.ListMappings(context.Background(), adminActor, repository.MappingFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, listed, 2)
	assert.Len(t, store.mappings, 2)
}

func TestCreateMapping_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Actor
		mutate func(*MappingInput)
		code   string
	}{
		{name: "non admin", actor: domain.Actor{ID: "S1", Role: domain.RoleStaff}, code: apperrors.CodeForbidden},
		{name: "blank category", actor: adminActor, mutate: func(in *MappingInput) { in.Category = " " }, code: apperrors.CodeValidation},
		{name: "zero priority", actor: adminActor, mutate: func(in *MappingInput) { in.PriorityLevel = 0 }, code: apperrors.CodeValidation},
		{name: "non positive weight", actor: adminActor, mutate: func(in *MappingInput) { in.CapacityWeight = 0 }, code: apperrors.CodeValidation},
		{name: "expertise out of range", actor: adminActor, mutate: func(in *MappingInput) { in.ExpertiseLevel = 6 }, code: apperrors.CodeValidation},
		{name: "unknown staff", actor: adminActor, mutate: func(in *MappingInput) { in.StaffID = "ghost" }, code: apperrors.CodeNotFound},
		{name: "student target", actor: adminActor, mutate: func(in *MappingInput) { in.StaffID = "STU" }, code: apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, svc := newMappingFixture(t)
			input := validMappingInput()
			if tt.mutate != nil {
				tt.mutate(&input)
			}
			_, err := svc.CreateMapping(context.Background(), tt.actor, input)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			assert.Empty(t, store.mappings)
		})
	}
}

func TestUpdateAndDeactivateMapping(t *testing.T) {
	store, svc := newMappingFixture(t)
	created, err := svc.CreateMapping(context.Background(), adminActor, validMappingInput())
	require.NoError(t, err)

	update := validMappingInput()
	update.StaffID = ""
	update.PriorityLevel = 3
	update.Category = "PLUMBING_WATER"
	updated, err := svc.UpdateMapping(context.Background(), adminActor, created.ID, update)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.PriorityLevel)
	assert.Equal(t, "PLUMBING_WATER", store.mappings[created.ID].Category)

	moved := validMappingInput()
	moved.StaffID = "STU"
	_, err = svc.UpdateMapping(context.Background(), adminActor, created.ID, moved)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = svc.UpdateMapping(context.Background(), adminActor, "M-404", update)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	deactivated, err := svc.DeactivateMapping(context.Background(), adminActor, created.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)
	assert.Len(t, store.mappings, 1)

	_, err = svc.DeactivateMapping(context.Background(), adminActor, "M-404")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestCreateMapping_WarnsOutsideVertical(t *testing.T) {
	tests := []struct {
		name     string
		category string
		warned   bool
	}{
		{name: "vertical category", category: "HVAC", warned: false},
		{name: "other built-in category", category: "plumbing_water", warned: true},
		{name: "custom category", category: "Water Cooler", warned: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(testNow)
			store.addUser(staffUser("S1", domain.VerticalHVAC))
			core, logs := observer.New(zap.WarnLevel)
			svc := NewMappingService(MappingDependencies{
				MappingRepo: &fakeMappings{store},
				StaffRepo:   &fakeStaff{store},
				Logger:      zap.New(core),
			})

			input := validMappingInput()
			input.Category = tt.category
			_, err := svc.CreateMapping(context.Background(), adminActor, input)
			require.NoError(t, err)

			warnings := logs.FilterMessage("mapping category outside staff vertical").All()
			if !tt.warned {
				assert.Empty(t, warnings)
				return
			}
			require.Len(t, warnings, 1)
			fields := warnings[0].ContextMap()
			assert.Equal(t, "HVAC", fields["vertical"])
			assert.Equal(t, "PLUMBING_WATER", fields["category"])
		})
	}
}
