package model

type MachineStatus string

const (
	MachineActive      MachineStatus = "active"
	MachineInactive    MachineStatus = "inactive"
	MachineMaintenance MachineStatus = "maintenance"
)

// Machine is a piece of equipment that material stock can be earmarked for.
// Read-only from the ledger's perspective.
type Machine struct {
	BaseModel
	Name   string        `gorm:"type:varchar(255);not null" json:"name" validate:"required"`
	Status MachineStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status" validate:"omitempty,oneof=active inactive maintenance"`
}
