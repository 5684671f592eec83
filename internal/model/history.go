package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationHistory is one immutable audit record of a change to an
// allocation's quantity. Rows are append-only: once written they are never
// updated or deleted, and they survive deletion of the owning allocation
// (AllocationID is a soft reference, no FK cascade). MaterialID is denormalized
// so material-level audit queries keep working after the allocation is gone.
type AllocationHistory struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	AllocationID uuid.UUID `gorm:"type:uuid;not null;index" json:"allocation_id"`
	MaterialID   uuid.UUID `gorm:"type:uuid;not null;index" json:"material_id"`

	Date          time.Time `gorm:"not null;index" json:"date"`
	PreviousStock int       `gorm:"not null" json:"previous_stock"`
	NewStock      int       `gorm:"not null" json:"new_stock"`
	Comment       string    `json:"comment"`
	UserID        string    `gorm:"type:varchar(255)" json:"user_id"`
}

func (h *AllocationHistory) BeforeCreate(tx *gorm.DB) (err error) {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.Date.IsZero() {
		h.Date = time.Now()
	}
	if h.UserID == "" {
		h.UserID = UnknownActor
	}
	return
}
