package repository

import (
	"go-factory-ops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MachineRepository interface {
	Create(machine *model.Machine) error
	FindAll() ([]model.Machine, error)
	FindByID(id uuid.UUID) (*model.Machine, error)
	// Exists runs on tx so existence checks inside the ledger's atomic
	// region observe a consistent snapshot and never leave the transaction's
	// connection.
	Exists(tx *gorm.DB, id uuid.UUID) (bool, error)
	Count() (int64, error)
}

type machineRepo struct {
	db *gorm.DB
}

func NewMachineRepo(db *gorm.DB) MachineRepository {
	return &machineRepo{db}
}

func (r *machineRepo) Create(machine *model.Machine) error {
	return r.db.Create(machine).Error
}

func (r *machineRepo) FindAll() ([]model.Machine, error) {
	var machines []model.Machine
	err := r.db.Order("name ASC").Find(&machines).Error
	return machines, err
}

func (r *machineRepo) FindByID(id uuid.UUID) (*model.Machine, error) {
	var machine model.Machine
	err := r.db.First(&machine, "id = ?", id).Error
	return &machine, err
}

func (r *machineRepo) Exists(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	err := tx.Model(&model.Machine{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *machineRepo) Count() (int64, error) {
	var count int64
	err := r.db.Model(&model.Machine{}).Count(&count).Error
	return count, err
}
