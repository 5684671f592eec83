package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-factory-ops/internal/model"
	"go-factory-ops/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxTxRetries bounds the retry loop on serialization conflicts before
// ErrConcurrentModification is surfaced.
const maxTxRetries = 3

// AllocationRequest is one (machine, quantity) pair of a batch create.
type AllocationRequest struct {
	MachineID uuid.UUID
	Quantity  int
}

// CreateResult carries the created allocations and the material's free stock
// after the batch was applied.
type CreateResult struct {
	Allocations  []model.Allocation
	CurrentStock int
}

// UpdateResult carries the updated allocation and the material's new free stock.
type UpdateResult struct {
	Allocation   model.Allocation
	CurrentStock int
}

// Ledger enforces the conservation invariant for material stock: for every
// material, free stock plus the sum of its machine allocations equals the
// fixed total physical stock. Every write runs as one database transaction
// holding a row lock on the material, so concurrent mutations against the
// same material are linearized while different materials proceed in parallel.
// Every committed quantity change appends exactly one history entry.
type Ledger struct {
	db          *gorm.DB
	materials   repository.MaterialRepository
	machines    repository.MachineRepository
	allocations repository.AllocationRepository
	history     repository.HistoryRepository
}

func NewLedger(
	db *gorm.DB,
	materials repository.MaterialRepository,
	machines repository.MachineRepository,
	allocations repository.AllocationRepository,
	history repository.HistoryRepository,
) *Ledger {
	return &Ledger{
		db:          db,
		materials:   materials,
		machines:    machines,
		allocations: allocations,
		history:     history,
	}
}

// CreateAllocations earmarks stock of one material for a batch of machines.
// The whole batch is validated before any write: duplicate machines in the
// batch, machines without an existing record, pairs that already have an
// allocation, and a batch total exceeding the free stock all reject the
// entire call with no state change.
func (l *Ledger) CreateAllocations(ctx context.Context, materialID uuid.UUID, batch []AllocationRequest, actorID string) (*CreateResult, error) {
	if len(batch) == 0 {
		return nil, ErrEmptyBatch
	}

	total := 0
	seen := make(map[uuid.UUID]bool, len(batch))
	for _, item := range batch {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrNegativeStock)
		}
		if seen[item.MachineID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateMachine, item.MachineID)
		}
		seen[item.MachineID] = true
		total += item.Quantity
	}

	var result CreateResult
	err := l.runTx(ctx, func(tx *gorm.DB) error {
		material, err := l.materials.FindForUpdate(tx, materialID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMaterialNotFound
			}
			return storageErr(err)
		}

		if total > material.CurrentStock {
			return fmt.Errorf("%w: requested %d, free %d", ErrInsufficientStock, total, material.CurrentStock)
		}

		for _, item := range batch {
			exists, err := l.machines.Exists(tx, item.MachineID)
			if err != nil {
				return storageErr(err)
			}
			if !exists {
				return fmt.Errorf("%w: %s", ErrMachineNotFound, item.MachineID)
			}

			_, err = l.allocations.FindByMaterialAndMachine(tx, materialID, item.MachineID)
			if err == nil {
				return fmt.Errorf("%w: machine %s", ErrAllocationExists, item.MachineID)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return storageErr(err)
			}
		}

		if err := l.materials.UpdateStock(tx, materialID, material.CurrentStock-total, actorID); err != nil {
			return storageErr(err)
		}

		result.Allocations = result.Allocations[:0]
		for _, item := range batch {
			allocation := model.Allocation{
				MaterialID:     materialID,
				MachineID:      item.MachineID,
				AllocatedStock: item.Quantity,
			}
			allocation.CreatedBy = actorID
			allocation.UpdatedBy = actorID
			if err := l.allocations.Create(tx, &allocation); err != nil {
				return storageErr(err)
			}

			entry := model.AllocationHistory{
				AllocationID:  allocation.ID,
				MaterialID:    materialID,
				PreviousStock: 0,
				NewStock:      item.Quantity,
				Comment:       "initial allocation",
				UserID:        actorID,
			}
			if err := l.history.Append(tx, &entry); err != nil {
				return storageErr(err)
			}
			result.Allocations = append(result.Allocations, allocation)
		}

		result.CurrentStock = material.CurrentStock - total
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateAllocation sets an allocation to a new absolute quantity. Increases
// must be covered by the material's free stock; decreases are unconditionally
// accepted, the difference returns to free stock.
func (l *Ledger) UpdateAllocation(ctx context.Context, allocationID uuid.UUID, newAllocatedStock int, comment, actorID string) (*UpdateResult, error) {
	if newAllocatedStock < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeStock, newAllocatedStock)
	}

	var result UpdateResult
	err := l.runTx(ctx, func(tx *gorm.DB) error {
		allocation, err := l.allocations.Get(tx, allocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAllocationNotFound
			}
			return storageErr(err)
		}

		material, err := l.materials.FindForUpdate(tx, allocation.MaterialID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMaterialNotFound
			}
			return storageErr(err)
		}

		delta := newAllocatedStock - allocation.AllocatedStock
		if delta > material.CurrentStock {
			return fmt.Errorf("%w: increase of %d, free %d", ErrInsufficientStock, delta, material.CurrentStock)
		}

		if err := l.materials.UpdateStock(tx, material.ID, material.CurrentStock-delta, actorID); err != nil {
			return storageErr(err)
		}
		if err := l.allocations.UpdateStock(tx, allocation.ID, newAllocatedStock, actorID); err != nil {
			return storageErr(err)
		}

		if comment == "" {
			comment = fmt.Sprintf("stock adjusted from %d to %d", allocation.AllocatedStock, newAllocatedStock)
		}
		entry := model.AllocationHistory{
			AllocationID:  allocation.ID,
			MaterialID:    material.ID,
			PreviousStock: allocation.AllocatedStock,
			NewStock:      newAllocatedStock,
			Comment:       comment,
			UserID:        actorID,
		}
		if err := l.history.Append(tx, &entry); err != nil {
			return storageErr(err)
		}

		// Reload so the returned record carries the refreshed updated_at.
		updated, err := l.allocations.Get(tx, allocation.ID)
		if err != nil {
			return storageErr(err)
		}
		result.Allocation = *updated
		result.CurrentStock = material.CurrentStock - delta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteAllocation returns the full allocated quantity to the material's free
// stock and removes the allocation. History rows are retained for audit.
func (l *Ledger) DeleteAllocation(ctx context.Context, allocationID uuid.UUID, actorID string) error {
	return l.runTx(ctx, func(tx *gorm.DB) error {
		allocation, err := l.allocations.Get(tx, allocationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAllocationNotFound
			}
			return storageErr(err)
		}

		material, err := l.materials.FindForUpdate(tx, allocation.MaterialID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMaterialNotFound
			}
			return storageErr(err)
		}

		if err := l.materials.UpdateStock(tx, material.ID, material.CurrentStock+allocation.AllocatedStock, actorID); err != nil {
			return storageErr(err)
		}
		if err := l.allocations.Delete(tx, allocation.ID); err != nil {
			return storageErr(err)
		}
		return nil
	})
}

// ListAllocations returns allocations matching the filter, joined with their
// material and machine records. Read-only.
func (l *Ledger) ListAllocations(ctx context.Context, filter repository.AllocationFilter) ([]model.Allocation, error) {
	allocations, err := l.allocations.List(filter)
	if err != nil {
		return nil, storageErr(err)
	}
	return allocations, nil
}

// GetHistory returns the audit trail of one allocation, ordered by date
// ascending.
func (l *Ledger) GetHistory(ctx context.Context, allocationID uuid.UUID) ([]model.AllocationHistory, error) {
	if _, err := l.allocations.FindByID(allocationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAllocationNotFound
		}
		return nil, storageErr(err)
	}
	entries, err := l.history.FindByAllocation(allocationID)
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

// GetMaterialHistory returns every history entry recorded for a material,
// including entries whose allocation has since been deleted.
func (l *Ledger) GetMaterialHistory(ctx context.Context, materialID uuid.UUID) ([]model.AllocationHistory, error) {
	if _, err := l.materials.FindByID(materialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, storageErr(err)
	}
	entries, err := l.history.FindByMaterial(materialID)
	if err != nil {
		return nil, storageErr(err)
	}
	return entries, nil
}

// runTx executes fn in a transaction, retrying a bounded number of times when
// the driver reports a serialization conflict. Once the transaction commits,
// cancellation of ctx no longer affects it.
func (l *Ledger) runTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err = l.db.WithContext(ctx).Transaction(fn)
		if err == nil || !isRetryableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrConcurrentModification, err)
}

func isRetryableTxError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "database is locked")
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
