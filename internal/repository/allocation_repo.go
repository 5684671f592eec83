package repository

import (
	"go-factory-ops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllocationFilter narrows List results; zero-value fields are ignored.
type AllocationFilter struct {
	MaterialID uuid.UUID
	MachineID  uuid.UUID
}

type AllocationRepository interface {
	Create(tx *gorm.DB, allocation *model.Allocation) error
	// Get is the tx-scoped read used inside the ledger's atomic region.
	Get(tx *gorm.DB, id uuid.UUID) (*model.Allocation, error)
	FindByID(id uuid.UUID) (*model.Allocation, error)
	FindByMaterialAndMachine(tx *gorm.DB, materialID, machineID uuid.UUID) (*model.Allocation, error)
	List(filter AllocationFilter) ([]model.Allocation, error)
	UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error
	Delete(tx *gorm.DB, id uuid.UUID) error
	Count() (int64, error)
	TotalAllocated() (int64, error)
}

type allocationRepo struct {
	db *gorm.DB
}

func NewAllocationRepo(db *gorm.DB) AllocationRepository {
	return &allocationRepo{db}
}

func (r *allocationRepo) Create(tx *gorm.DB, allocation *model.Allocation) error {
	// Associations are references resolved through their own repositories,
	// never written through the allocation.
	return tx.Omit(clause.Associations).Create(allocation).Error
}

func (r *allocationRepo) Get(tx *gorm.DB, id uuid.UUID) (*model.Allocation, error) {
	var allocation model.Allocation
	err := tx.First(&allocation, "id = ?", id).Error
	return &allocation, err
}

func (r *allocationRepo) FindByID(id uuid.UUID) (*model.Allocation, error) {
	var allocation model.Allocation
	err := r.db.Preload("Material").Preload("Machine").First(&allocation, "id = ?", id).Error
	return &allocation, err
}

// FindByMaterialAndMachine runs on tx so duplicate checks observe rows written
// earlier in the same transaction.
func (r *allocationRepo) FindByMaterialAndMachine(tx *gorm.DB, materialID, machineID uuid.UUID) (*model.Allocation, error) {
	var allocation model.Allocation
	err := tx.First(&allocation, "material_id = ? AND machine_id = ?", materialID, machineID).Error
	return &allocation, err
}

func (r *allocationRepo) List(filter AllocationFilter) ([]model.Allocation, error) {
	var allocations []model.Allocation
	q := r.db.Preload("Material").Preload("Machine").Order("updated_at DESC")
	if filter.MaterialID != uuid.Nil {
		q = q.Where("material_id = ?", filter.MaterialID)
	}
	if filter.MachineID != uuid.Nil {
		q = q.Where("machine_id = ?", filter.MachineID)
	}
	err := q.Find(&allocations).Error
	return allocations, err
}

func (r *allocationRepo) UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error {
	return tx.Model(&model.Allocation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"allocated_stock": newStock,
			"updated_by":      updatedBy,
		}).Error
}

func (r *allocationRepo) Delete(tx *gorm.DB, id uuid.UUID) error {
	return tx.Delete(&model.Allocation{}, "id = ?", id).Error
}

func (r *allocationRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Allocation{}).Count(&count).Error
	return count, err
}

func (r *allocationRepo) TotalAllocated() (int64, error) {
	var total int64
	err := r.db.Model(&model.Allocation{}).
		Select("COALESCE(SUM(allocated_stock), 0)").
		Scan(&total).Error
	return total, err
}
