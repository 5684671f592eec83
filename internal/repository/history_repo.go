package repository

import (
	"time"

	"go-factory-ops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllocationMovementData aggregates history rows per day for chart display.
type AllocationMovementData struct {
	Date      string `json:"date"`
	Allocated int    `json:"allocated"`
	Returned  int    `json:"returned"`
}

// HistoryRepository is append-only: no update or delete methods exist, and
// none may be added. Corrections are new history rows, never edits.
type HistoryRepository interface {
	Append(tx *gorm.DB, entry *model.AllocationHistory) error
	FindByAllocation(allocationID uuid.UUID) ([]model.AllocationHistory, error)
	FindByMaterial(materialID uuid.UUID) ([]model.AllocationHistory, error)
	GetMovement(startDate, endDate time.Time) ([]AllocationMovementData, error)
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db}
}

func (r *historyRepo) Append(tx *gorm.DB, entry *model.AllocationHistory) error {
	return tx.Create(entry).Error
}

func (r *historyRepo) FindByAllocation(allocationID uuid.UUID) ([]model.AllocationHistory, error) {
	var entries []model.AllocationHistory
	err := r.db.Where("allocation_id = ?", allocationID).Order("date ASC").Find(&entries).Error
	return entries, err
}

// FindByMaterial also returns entries whose allocation has since been deleted;
// history outlives the allocation for audit purposes.
func (r *historyRepo) FindByMaterial(materialID uuid.UUID) ([]model.AllocationHistory, error) {
	var entries []model.AllocationHistory
	err := r.db.Where("material_id = ?", materialID).Order("date ASC").Find(&entries).Error
	return entries, err
}

func (r *historyRepo) GetMovement(startDate, endDate time.Time) ([]AllocationMovementData, error) {
	var results []AllocationMovementData

	rows, err := r.db.Model(&model.AllocationHistory{}).
		Select(`
			DATE(date) as day,
			COALESCE(SUM(CASE WHEN new_stock > previous_stock THEN new_stock - previous_stock ELSE 0 END), 0) as allocated,
			COALESCE(SUM(CASE WHEN new_stock < previous_stock THEN previous_stock - new_stock ELSE 0 END), 0) as returned
		`).
		Where("date BETWEEN ? AND ?", startDate, endDate).
		Group("DATE(date)").
		Order("day ASC").
		Rows()

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var data AllocationMovementData
		if err := rows.Scan(&data.Date, &data.Allocated, &data.Returned); err != nil {
			return nil, err
		}
		results = append(results, data)
	}

	return results, nil
}
