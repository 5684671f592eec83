package repository

import (
	"go-factory-ops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MaterialRepository interface {
	Create(material *model.Material) error
	FindAll() ([]model.Material, error)
	FindByID(id uuid.UUID) (*model.Material, error)
	FindByReference(reference string) (*model.Material, error)
	// FindForUpdate loads the material inside tx with a row lock so concurrent
	// mutations against the same material are serialized.
	FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Material, error)
	// UpdateStock runs inside tx so the stock write commits or rolls back
	// together with the allocation and history writes.
	UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error
	SumAllocated(id uuid.UUID) (int, error)
	Count() (int64, error)
	CountLowStock(threshold int) (int64, error)
}

type materialRepo struct {
	db *gorm.DB
}

func NewMaterialRepo(db *gorm.DB) MaterialRepository {
	return &materialRepo{db}
}

func (r *materialRepo) Create(material *model.Material) error {
	return r.db.Create(material).Error
}

func (r *materialRepo) FindAll() ([]model.Material, error) {
	var materials []model.Material
	err := r.db.Order("reference ASC").Find(&materials).Error
	return materials, err
}

func (r *materialRepo) FindByID(id uuid.UUID) (*model.Material, error) {
	var material model.Material
	err := r.db.Preload("Allocations").Preload("Allocations.Machine").First(&material, "id = ?", id).Error
	return &material, err
}

func (r *materialRepo) FindByReference(reference string) (*model.Material, error) {
	var material model.Material
	err := r.db.First(&material, "reference = ?", reference).Error
	return &material, err
}

func (r *materialRepo) FindForUpdate(tx *gorm.DB, id uuid.UUID) (*model.Material, error) {
	var material model.Material
	q := tx
	// SQLite serializes writers on its own and rejects FOR UPDATE syntax.
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.First(&material, "id = ?", id).Error
	return &material, err
}

func (r *materialRepo) UpdateStock(tx *gorm.DB, id uuid.UUID, newStock int, updatedBy string) error {
	return tx.Model(&model.Material{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stock": newStock,
			"updated_by":    updatedBy,
		}).Error
}

func (r *materialRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Material{}).Count(&count).Error
	return count, err
}

func (r *materialRepo) CountLowStock(threshold int) (int64, error) {
	var count int64
	err := r.db.Model(&model.Material{}).Where("current_stock < ?", threshold).Count(&count).Error
	return count, err
}

func (r *materialRepo) SumAllocated(id uuid.UUID) (int, error) {
	var total int
	err := r.db.Model(&model.Allocation{}).
		Where("material_id = ?", id).
		Select("COALESCE(SUM(allocated_stock), 0)").
		Scan(&total).Error
	return total, err
}
