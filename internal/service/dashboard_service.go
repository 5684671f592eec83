package service

import (
	"time"

	"go-factory-ops/internal/repository"
)

// DashboardStats is the factory-floor overview.
type DashboardStats struct {
	TotalMaterials   int64 `json:"total_materials"`
	TotalMachines    int64 `json:"total_machines"`
	TotalAllocations int64 `json:"total_allocations"`
	UnitsAllocated   int64 `json:"units_allocated"`
	LowStockCount    int64 `json:"low_stock_count"`
}

// Materials with free stock below this show up in the low-stock counter.
const lowStockThreshold = 10

type DashboardService interface {
	GetDashboardStats() (*DashboardStats, error)
	GetAllocationMovement(days int) ([]repository.AllocationMovementData, error)
}

type dashboardService struct {
	materialRepo   repository.MaterialRepository
	machineRepo    repository.MachineRepository
	allocationRepo repository.AllocationRepository
	historyRepo    repository.HistoryRepository
}

func NewDashboardService(
	materialRepo repository.MaterialRepository,
	machineRepo repository.MachineRepository,
	allocationRepo repository.AllocationRepository,
	historyRepo repository.HistoryRepository,
) DashboardService {
	return &dashboardService{
		materialRepo:   materialRepo,
		machineRepo:    machineRepo,
		allocationRepo: allocationRepo,
		historyRepo:    historyRepo,
	}
}

func (s *dashboardService) GetDashboardStats() (*DashboardStats, error) {
	var stats DashboardStats
	var err error

	if stats.TotalMaterials, err = s.materialRepo.Count(); err != nil {
		return nil, err
	}
	if stats.TotalMachines, err = s.machineRepo.Count(); err != nil {
		return nil, err
	}
	if stats.TotalAllocations, err = s.allocationRepo.Count(); err != nil {
		return nil, err
	}
	if stats.UnitsAllocated, err = s.allocationRepo.TotalAllocated(); err != nil {
		return nil, err
	}
	if stats.LowStockCount, err = s.materialRepo.CountLowStock(lowStockThreshold); err != nil {
		return nil, err
	}

	return &stats, nil
}

func (s *dashboardService) GetAllocationMovement(days int) ([]repository.AllocationMovementData, error) {
	endDate := time.Now()
	startDate := endDate.AddDate(0, 0, -days)

	return s.historyRepo.GetMovement(startDate, endDate)
}
