package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go-factory-ops/internal/ledger"
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/repository"
	"go-factory-ops/internal/ws"
	"go-factory-ops/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationItemRequest is one (machine, quantity) pair of a batch create.
type AllocationItemRequest struct {
	MachineID uuid.UUID `json:"machine_id" validate:"uuid_required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type CreateAllocationsRequest struct {
	Allocations []AllocationItemRequest `json:"allocations" validate:"required,min=1,dive"`
}

type CreateAllocationsResponse struct {
	Allocations    []model.Allocation `json:"allocations"`
	CurrentStock   int                `json:"current_stock"`
	TotalAllocated int                `json:"total_allocated"`
}

type UpdateAllocationRequest struct {
	// Pointer so that an explicit 0 (full return to inventory) is
	// distinguishable from a missing field.
	AllocatedStock *int   `json:"allocated_stock"`
	Comment        string `json:"comment"`
}

type UpdateAllocationResponse struct {
	Allocation               model.Allocation `json:"allocation"`
	CurrentStock             int              `json:"current_stock"`
	MaxAvailableStock        int              `json:"max_available_stock"`
	AvailableAfterAdjustment int              `json:"available_after_adjustment"`
}

// AllocationService is the operation layer callers go through. It owns the
// business-level validation that is independent of storage mechanics (batch
// shape, actor normalization, machine-active policy) and shapes results for
// presentation; all state lives in the ledger and its store.
type AllocationService interface {
	CreateAllocations(ctx context.Context, materialID uuid.UUID, req *CreateAllocationsRequest, actorID string) (*CreateAllocationsResponse, error)
	UpdateAllocation(ctx context.Context, allocationID uuid.UUID, req *UpdateAllocationRequest, actorID string) (*UpdateAllocationResponse, error)
	DeleteAllocation(ctx context.Context, allocationID uuid.UUID, actorID string) error
	ListAllocations(ctx context.Context, filter repository.AllocationFilter) ([]model.Allocation, error)
	GetHistory(ctx context.Context, allocationID uuid.UUID) ([]model.AllocationHistory, error)
	GetMaterialHistory(ctx context.Context, materialID uuid.UUID) ([]model.AllocationHistory, error)
}

type allocationService struct {
	ledger       *ledger.Ledger
	materialRepo repository.MaterialRepository
	machineRepo  repository.MachineRepository
	wsHub        *ws.Hub
}

func NewAllocationService(l *ledger.Ledger, materialRepo repository.MaterialRepository, machineRepo repository.MachineRepository, hub *ws.Hub) AllocationService {
	return &allocationService{
		ledger:       l,
		materialRepo: materialRepo,
		machineRepo:  machineRepo,
		wsHub:        hub,
	}
}

// resolveActor applies the documented fallback once, at the service boundary.
// A missing actor never blocks a mutation.
func resolveActor(actorID string) string {
	if actorID == "" {
		return model.UnknownActor
	}
	return actorID
}

func (s *allocationService) CreateAllocations(ctx context.Context, materialID uuid.UUID, req *CreateAllocationsRequest, actorID string) (*CreateAllocationsResponse, error) {
	if len(req.Allocations) == 0 {
		return nil, ledger.ErrEmptyBatch
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return nil, fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	// New allocations must target active machines. Updates and deletes are
	// allowed regardless of status.
	batch := make([]ledger.AllocationRequest, 0, len(req.Allocations))
	for _, item := range req.Allocations {
		machine, err := s.machineRepo.FindByID(item.MachineID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ledger.ErrMachineNotFound, item.MachineID)
			}
			return nil, err
		}
		if machine.Status != model.MachineActive {
			return nil, fmt.Errorf("%w: %s is %s", ledger.ErrMachineUnavailable, machine.Name, machine.Status)
		}
		batch = append(batch, ledger.AllocationRequest{MachineID: item.MachineID, Quantity: item.Quantity})
	}

	actor := resolveActor(actorID)
	result, err := s.ledger.CreateAllocations(ctx, materialID, batch, actor)
	if err != nil {
		return nil, err
	}

	totalAllocated := 0
	for _, allocation := range result.Allocations {
		totalAllocated += allocation.AllocatedStock
	}

	s.broadcast("allocations_created", actor, map[string]interface{}{
		"material_id":     materialID,
		"allocations":     len(result.Allocations),
		"total_allocated": totalAllocated,
		"current_stock":   result.CurrentStock,
	})

	return &CreateAllocationsResponse{
		Allocations:    result.Allocations,
		CurrentStock:   result.CurrentStock,
		TotalAllocated: totalAllocated,
	}, nil
}

func (s *allocationService) UpdateAllocation(ctx context.Context, allocationID uuid.UUID, req *UpdateAllocationRequest, actorID string) (*UpdateAllocationResponse, error) {
	if req.AllocatedStock == nil {
		return nil, errors.New("allocated_stock is required")
	}

	actor := resolveActor(actorID)
	result, err := s.ledger.UpdateAllocation(ctx, allocationID, *req.AllocatedStock, req.Comment, actor)
	if err != nil {
		return nil, err
	}

	totalAllocated, err := s.materialRepo.SumAllocated(result.Allocation.MaterialID)
	if err != nil {
		return nil, err
	}
	maxAvailable := result.CurrentStock + totalAllocated

	s.broadcast("allocation_updated", actor, map[string]interface{}{
		"allocation_id":   allocationID,
		"material_id":     result.Allocation.MaterialID,
		"allocated_stock": result.Allocation.AllocatedStock,
		"current_stock":   result.CurrentStock,
	})

	return &UpdateAllocationResponse{
		Allocation:               result.Allocation,
		CurrentStock:             result.CurrentStock,
		MaxAvailableStock:        maxAvailable,
		AvailableAfterAdjustment: maxAvailable - result.Allocation.AllocatedStock,
	}, nil
}

func (s *allocationService) DeleteAllocation(ctx context.Context, allocationID uuid.UUID, actorID string) error {
	actor := resolveActor(actorID)
	if err := s.ledger.DeleteAllocation(ctx, allocationID, actor); err != nil {
		return err
	}

	s.broadcast("allocation_deleted", actor, map[string]interface{}{
		"allocation_id": allocationID,
	})
	return nil
}

func (s *allocationService) ListAllocations(ctx context.Context, filter repository.AllocationFilter) ([]model.Allocation, error) {
	return s.ledger.ListAllocations(ctx, filter)
}

func (s *allocationService) GetHistory(ctx context.Context, allocationID uuid.UUID) ([]model.AllocationHistory, error) {
	return s.ledger.GetHistory(ctx, allocationID)
}

func (s *allocationService) GetMaterialHistory(ctx context.Context, materialID uuid.UUID) ([]model.AllocationHistory, error) {
	return s.ledger.GetMaterialHistory(ctx, materialID)
}

// broadcast pushes an event to connected ws clients. Fire-and-forget: the
// mutation has already committed, a slow client must not block the response.
func (s *allocationService) broadcast(action, actor string, data map[string]interface{}) {
	if s.wsHub == nil {
		return
	}
	go func() {
		payload := map[string]interface{}{
			"type":   "allocation_update",
			"action": action,
			"actor":  actor,
			"data":   data,
		}
		msg, _ := json.Marshal(payload)
		s.wsHub.Broadcast <- msg
	}()
}
