package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go-factory-ops/internal/ledger"
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type env struct {
	db          *gorm.DB
	materials   repository.MaterialRepository
	machines    repository.MachineRepository
	allocations repository.AllocationRepository
	history     repository.HistoryRepository
	ledger      *ledger.Ledger
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&model.Material{}, &model.Machine{}, &model.Allocation{}, &model.AllocationHistory{}))

	e := &env{
		db:          db,
		materials:   repository.NewMaterialRepo(db),
		machines:    repository.NewMachineRepo(db),
		allocations: repository.NewAllocationRepo(db),
		history:     repository.NewHistoryRepo(db),
	}
	e.ledger = ledger.NewLedger(db, e.materials, e.machines, e.allocations, e.history)
	return e
}

func (e *env) createMaterial(t *testing.T, reference string, stock int) *model.Material {
	t.Helper()
	material := &model.Material{Reference: reference, CurrentStock: stock}
	require.NoError(t, e.materials.Create(material))
	return material
}

func (e *env) createMachine(t *testing.T, name string) *model.Machine {
	t.Helper()
	machine := &model.Machine{Name: name, Status: model.MachineActive}
	require.NoError(t, e.machines.Create(machine))
	return machine
}

func (e *env) currentStock(t *testing.T, materialID uuid.UUID) int {
	t.Helper()
	material, err := e.materials.FindByID(materialID)
	require.NoError(t, err)
	return material.CurrentStock
}

// assertConservation checks the central invariant: free stock plus everything
// allocated equals the total fixed at material creation.
func (e *env) assertConservation(t *testing.T, materialID uuid.UUID, total int) {
	t.Helper()
	allocated, err := e.materials.SumAllocated(materialID)
	require.NoError(t, err)
	assert.Equal(t, total, e.currentStock(t, materialID)+allocated)
}

func TestCreateAllocationsBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	result, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 30},
		{MachineID: k2.ID, Quantity: 20},
	}, "tech-1")
	require.NoError(t, err)

	assert.Equal(t, 50, result.CurrentStock)
	assert.Equal(t, 50, e.currentStock(t, m1.ID))
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, 30, result.Allocations[0].AllocatedStock)
	assert.Equal(t, 20, result.Allocations[1].AllocatedStock)

	for _, allocation := range result.Allocations {
		entries, err := e.ledger.GetHistory(ctx, allocation.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 0, entries[0].PreviousStock)
		assert.Equal(t, allocation.AllocatedStock, entries[0].NewStock)
		assert.Equal(t, "tech-1", entries[0].UserID)
	}

	e.assertConservation(t, m1.ID, 100)
}

func TestCreateAllocationsInsufficientStockRejectsWholeBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 40)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 30},
		{MachineID: k2.ID, Quantity: 20},
	}, "tech-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	// No partial application: neither allocation exists, stock untouched.
	assert.Equal(t, 40, e.currentStock(t, m1.ID))
	allocations, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MaterialID: m1.ID})
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestCreateAllocationsDuplicateMachineInBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k3 := e.createMachine(t, "K3")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k3.ID, Quantity: 10},
		{MachineID: k3.ID, Quantity: 5},
	}, "tech-1")
	require.ErrorIs(t, err, ledger.ErrDuplicateMachine)

	assert.Equal(t, 100, e.currentStock(t, m1.ID))
}

func TestCreateAllocationsExistingPairRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 30}}, "tech-1")
	require.NoError(t, err)

	_, err = e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 5}}, "tech-1")
	require.ErrorIs(t, err, ledger.ErrAllocationExists)

	assert.Equal(t, 70, e.currentStock(t, m1.ID))
	e.assertConservation(t, m1.ID, 100)
}

func TestCreateAllocationsValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, nil, "tech-1")
	assert.ErrorIs(t, err, ledger.ErrEmptyBatch)

	_, err = e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 0}}, "tech-1")
	assert.ErrorIs(t, err, ledger.ErrNegativeStock)

	_, err = e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: uuid.New(), Quantity: 5}}, "tech-1")
	assert.ErrorIs(t, err, ledger.ErrMachineNotFound)

	_, err = e.ledger.CreateAllocations(ctx, uuid.New(), []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 5}}, "tech-1")
	assert.ErrorIs(t, err, ledger.ErrMaterialNotFound)

	assert.Equal(t, 100, e.currentStock(t, m1.ID))
}

func TestUpdateAllocationIncrease(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 30},
		{MachineID: k2.ID, Quantity: 20},
	}, "tech-1")
	require.NoError(t, err)
	allocK1 := created.Allocations[0]

	result, err := e.ledger.UpdateAllocation(ctx, allocK1.ID, 45, "added batch", "tech-2")
	require.NoError(t, err)

	assert.Equal(t, 35, result.CurrentStock)
	assert.Equal(t, 45, result.Allocation.AllocatedStock)
	assert.Equal(t, 35, e.currentStock(t, m1.ID))

	entries, err := e.ledger.GetHistory(ctx, allocK1.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 30, entries[1].PreviousStock)
	assert.Equal(t, 45, entries[1].NewStock)
	assert.Equal(t, "added batch", entries[1].Comment)
	assert.Equal(t, "tech-2", entries[1].UserID)

	e.assertConservation(t, m1.ID, 100)
}

func TestUpdateAllocationInsufficientStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 30},
		{MachineID: k2.ID, Quantity: 20},
	}, "tech-1")
	require.NoError(t, err)
	allocK1 := created.Allocations[0]

	_, err = e.ledger.UpdateAllocation(ctx, allocK1.ID, 45, "", "tech-1")
	require.NoError(t, err)

	// delta = 955 > free 35
	_, err = e.ledger.UpdateAllocation(ctx, allocK1.ID, 1000, "", "tech-1")
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	assert.Equal(t, 35, e.currentStock(t, m1.ID))
	allocation, err := e.allocations.FindByID(allocK1.ID)
	require.NoError(t, err)
	assert.Equal(t, 45, allocation.AllocatedStock)

	// The rejected mutation must not write a history entry.
	entries, err := e.ledger.GetHistory(ctx, allocK1.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUpdateAllocationDecreaseAndZero(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 60}}, "tech-1")
	require.NoError(t, err)
	allocation := created.Allocations[0]

	// Decreases are unconditionally accepted, the difference is freed.
	result, err := e.ledger.UpdateAllocation(ctx, allocation.ID, 0, "returned to inventory", "tech-1")
	require.NoError(t, err)
	assert.Equal(t, 100, result.CurrentStock)
	assert.Equal(t, 0, result.Allocation.AllocatedStock)

	e.assertConservation(t, m1.ID, 100)
}

func TestUpdateAllocationNegativeStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.NoError(t, err)

	_, err = e.ledger.UpdateAllocation(ctx, created.Allocations[0].ID, -5, "", "tech-1")
	require.ErrorIs(t, err, ledger.ErrNegativeStock)

	assert.Equal(t, 90, e.currentStock(t, m1.ID))
}

func TestUpdateAllocationNotFound(t *testing.T) {
	e := newEnv(t)

	_, err := e.ledger.UpdateAllocation(context.Background(), uuid.New(), 5, "", "tech-1")
	require.ErrorIs(t, err, ledger.ErrAllocationNotFound)
}

func TestUpdateAllocationGeneratesCommentWhenBlank(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.NoError(t, err)

	_, err = e.ledger.UpdateAllocation(ctx, created.Allocations[0].ID, 25, "", "tech-1")
	require.NoError(t, err)

	entries, err := e.ledger.GetHistory(ctx, created.Allocations[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "stock adjusted from 10 to 25", entries[1].Comment)
}

func TestUpdateAllocationRefreshesUpdatedAt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.NoError(t, err)
	before := created.Allocations[0].UpdatedAt

	time.Sleep(10 * time.Millisecond)

	result, err := e.ledger.UpdateAllocation(ctx, created.Allocations[0].ID, 20, "", "tech-2")
	require.NoError(t, err)

	// The returned record reflects the persisted row, including the
	// refreshed timestamp and actor.
	assert.True(t, result.Allocation.UpdatedAt.After(before))
	assert.Equal(t, "tech-2", result.Allocation.UpdatedBy)
	assert.Equal(t, 20, result.Allocation.AllocatedStock)

	stored, err := e.allocations.FindByID(created.Allocations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, stored.UpdatedAt, result.Allocation.UpdatedAt)
}

func TestDeleteAllocationReturnsStock(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 30},
		{MachineID: k2.ID, Quantity: 20},
	}, "tech-1")
	require.NoError(t, err)
	allocK1 := created.Allocations[0]
	allocK2 := created.Allocations[1]

	_, err = e.ledger.UpdateAllocation(ctx, allocK1.ID, 45, "", "tech-1")
	require.NoError(t, err)

	require.NoError(t, e.ledger.DeleteAllocation(ctx, allocK2.ID, "tech-1"))

	assert.Equal(t, 55, e.currentStock(t, m1.ID))

	allocations, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MaterialID: m1.ID})
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, allocK1.ID, allocations[0].ID)

	// History of the deleted allocation is retained for audit.
	entries, err := e.ledger.GetMaterialHistory(ctx, m1.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	// But addressing the deleted allocation directly is a not-found.
	_, err = e.ledger.GetHistory(ctx, allocK2.ID)
	assert.ErrorIs(t, err, ledger.ErrAllocationNotFound)

	e.assertConservation(t, m1.ID, 100)
}

func TestDeleteAllocationNotFound(t *testing.T) {
	e := newEnv(t)

	err := e.ledger.DeleteAllocation(context.Background(), uuid.New(), "tech-1")
	require.ErrorIs(t, err, ledger.ErrAllocationNotFound)
}

func TestReallocateAfterDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 50)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 50}}, "tech-1")
	require.NoError(t, err)
	require.NoError(t, e.ledger.DeleteAllocation(ctx, created.Allocations[0].ID, "tech-1"))

	// The (material, machine) pair is free again after deletion.
	_, err = e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 20}}, "tech-1")
	require.NoError(t, err)

	assert.Equal(t, 30, e.currentStock(t, m1.ID))
	e.assertConservation(t, m1.ID, 50)
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 200)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")
	k3 := e.createMachine(t, "K3")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 50},
		{MachineID: k2.ID, Quantity: 80},
	}, "tech-1")
	require.NoError(t, err)
	e.assertConservation(t, m1.ID, 200)

	_, err = e.ledger.UpdateAllocation(ctx, created.Allocations[0].ID, 10, "", "tech-1")
	require.NoError(t, err)
	e.assertConservation(t, m1.ID, 200)

	_, err = e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k3.ID, Quantity: 100}}, "tech-1")
	require.NoError(t, err)
	e.assertConservation(t, m1.ID, 200)

	require.NoError(t, e.ledger.DeleteAllocation(ctx, created.Allocations[1].ID, "tech-1"))
	e.assertConservation(t, m1.ID, 200)

	// Free stock never goes negative along the way.
	assert.GreaterOrEqual(t, e.currentStock(t, m1.ID), 0)
}

func TestIndependentMaterials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	m2 := e.createMaterial(t, "M2", 30)
	k1 := e.createMachine(t, "K1")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 60}}, "tech-1")
	require.NoError(t, err)
	_, err = e.ledger.CreateAllocations(ctx, m2.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 30}}, "tech-1")
	require.NoError(t, err)

	assert.Equal(t, 40, e.currentStock(t, m1.ID))
	assert.Equal(t, 0, e.currentStock(t, m2.ID))
	e.assertConservation(t, m1.ID, 100)
	e.assertConservation(t, m2.ID, 30)
}

func TestHistoryReadIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.NoError(t, err)
	allocation := created.Allocations[0]

	_, err = e.ledger.UpdateAllocation(ctx, allocation.ID, 20, "first", "tech-1")
	require.NoError(t, err)
	_, err = e.ledger.UpdateAllocation(ctx, allocation.ID, 5, "second", "tech-1")
	require.NoError(t, err)

	first, err := e.ledger.GetHistory(ctx, allocation.ID)
	require.NoError(t, err)
	second, err := e.ledger.GetHistory(ctx, allocation.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)

	// Ordered by date ascending, and each entry chains onto the previous one.
	assert.Equal(t, 0, first[0].PreviousStock)
	assert.Equal(t, 10, first[0].NewStock)
	assert.Equal(t, 10, first[1].PreviousStock)
	assert.Equal(t, 20, first[1].NewStock)
	assert.Equal(t, 20, first[2].PreviousStock)
	assert.Equal(t, 5, first[2].NewStock)
}

func TestGetHistoryUnknownAllocation(t *testing.T) {
	e := newEnv(t)

	_, err := e.ledger.GetHistory(context.Background(), uuid.New())
	require.ErrorIs(t, err, ledger.ErrAllocationNotFound)
}

func TestListAllocationsFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	m2 := e.createMaterial(t, "M2", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	_, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{
		{MachineID: k1.ID, Quantity: 10},
		{MachineID: k2.ID, Quantity: 10},
	}, "tech-1")
	require.NoError(t, err)
	_, err = e.ledger.CreateAllocations(ctx, m2.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.NoError(t, err)

	all, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byMaterial, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MaterialID: m1.ID})
	require.NoError(t, err)
	assert.Len(t, byMaterial, 2)

	byMachine, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MachineID: k1.ID})
	require.NoError(t, err)
	assert.Len(t, byMachine, 2)

	byBoth, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MaterialID: m2.ID, MachineID: k1.ID})
	require.NoError(t, err)
	require.Len(t, byBoth, 1)
	assert.Equal(t, "M2", byBoth[0].Material.Reference)
	assert.Equal(t, "K1", byBoth[0].Machine.Name)
}

// lockedMaterials simulates a driver that reports a serialization conflict on
// every attempt, so the bounded retry always exhausts.
type lockedMaterials struct {
	repository.MaterialRepository
	calls int
}

func (m *lockedMaterials) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Material, error) {
	m.calls++
	return nil, errors.New("database is locked")
}

func TestRetryExhaustionSurfacesConcurrentModification(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")

	locked := &lockedMaterials{MaterialRepository: e.materials}
	contended := ledger.NewLedger(e.db, locked, e.machines, e.allocations, e.history)

	_, err := contended.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 10}}, "tech-1")
	require.ErrorIs(t, err, ledger.ErrConcurrentModification)
	assert.Equal(t, 3, locked.calls)

	_, err = contended.UpdateAllocation(ctx, uuid.New(), 5, "", "tech-1")
	require.ErrorIs(t, err, ledger.ErrAllocationNotFound)

	// Nothing committed along the way.
	assert.Equal(t, 100, e.currentStock(t, m1.ID))
}

// failingHistory simulates a storage failure on the history write, after the
// material stock adjustment already ran inside the transaction.
type failingHistory struct {
	repository.HistoryRepository
}

func (f *failingHistory) Append(tx *gorm.DB, entry *model.AllocationHistory) error {
	return errors.New("simulated write failure")
}

func TestAtomicityUnderHistoryWriteFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	m1 := e.createMaterial(t, "M1", 100)
	k1 := e.createMachine(t, "K1")
	k2 := e.createMachine(t, "K2")

	created, err := e.ledger.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k1.ID, Quantity: 30}}, "tech-1")
	require.NoError(t, err)

	broken := ledger.NewLedger(e.db, e.materials, e.machines, e.allocations, &failingHistory{e.history})

	// Create path: stock decrement and allocation insert must both revert.
	_, err = broken.CreateAllocations(ctx, m1.ID, []ledger.AllocationRequest{{MachineID: k2.ID, Quantity: 20}}, "tech-1")
	require.ErrorIs(t, err, ledger.ErrStorageUnavailable)

	assert.Equal(t, 70, e.currentStock(t, m1.ID))
	allocations, err := e.ledger.ListAllocations(ctx, repository.AllocationFilter{MaterialID: m1.ID})
	require.NoError(t, err)
	assert.Len(t, allocations, 1)

	// Update path: neither the material nor the allocation may move.
	_, err = broken.UpdateAllocation(ctx, created.Allocations[0].ID, 50, "", "tech-1")
	require.ErrorIs(t, err, ledger.ErrStorageUnavailable)

	assert.Equal(t, 70, e.currentStock(t, m1.ID))
	allocation, err := e.allocations.FindByID(created.Allocations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 30, allocation.AllocatedStock)

	entries, err := e.ledger.GetHistory(ctx, created.Allocations[0].ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	e.assertConservation(t, m1.ID, 100)
}
