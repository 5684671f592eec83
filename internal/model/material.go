package model

// Material is a stocked inventory item. CurrentStock is the free stock, i.e.
// the quantity not yet allocated to any machine. At creation it equals the
// total physical stock; afterwards only the allocation ledger may change it,
// so CurrentStock + sum(allocated) stays equal to that initial total.
type Material struct {
	BaseModel
	Reference    string `gorm:"type:varchar(100);uniqueIndex;not null" json:"reference" validate:"required"`
	Description  string `gorm:"type:varchar(255)" json:"description"`
	Manufacturer string `gorm:"type:varchar(255)" json:"manufacturer"`
	Category     string `gorm:"type:varchar(100)" json:"category"`
	CurrentStock int    `gorm:"not null;default:0" json:"current_stock" validate:"gte=0"`

	// Relations
	Allocations []Allocation `json:"allocations,omitempty"`
}

// MaterialSummary is the read-only projection joined onto allocation listings.
type MaterialSummary struct {
	Reference    string `json:"reference"`
	Description  string `json:"description"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
}

func (m *Material) Summary() MaterialSummary {
	return MaterialSummary{
		Reference:    m.Reference,
		Description:  m.Description,
		Manufacturer: m.Manufacturer,
		Category:     m.Category,
	}
}
