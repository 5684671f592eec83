package model

import "github.com/google/uuid"

// Allocation records how much of one material's stock is earmarked for one
// machine. At most one row exists per (material, machine) pair; creating a
// second one is a validation error, never a silent merge.
type Allocation struct {
	BaseModel
	MaterialID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_material_machine" json:"material_id" validate:"uuid_required"`
	Material   Material  `json:"material" validate:"-"`
	MachineID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_alloc_material_machine" json:"machine_id" validate:"uuid_required"`
	Machine    Machine   `json:"machine" validate:"-"`

	AllocatedStock int `gorm:"not null;default:0" json:"allocated_stock" validate:"gte=0"`
}
