package service

import (
	"errors"
	"fmt"

	"go-factory-ops/internal/ledger"
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/repository"
	"go-factory-ops/pkg/validator"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MachineService interface {
	CreateMachine(req *model.Machine, actorID string) error
	GetAllMachines() ([]model.Machine, error)
	GetMachine(id uuid.UUID) (*model.Machine, error)
}

type machineService struct {
	machineRepo repository.MachineRepository
}

func NewMachineService(machineRepo repository.MachineRepository) MachineService {
	return &machineService{machineRepo: machineRepo}
}

func (s *machineService) CreateMachine(req *model.Machine, actorID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	if req.Status == "" {
		req.Status = model.MachineActive
	}

	actor := resolveActor(actorID)
	req.CreatedBy = actor
	req.UpdatedBy = actor
	return s.machineRepo.Create(req)
}

func (s *machineService) GetAllMachines() ([]model.Machine, error) {
	return s.machineRepo.FindAll()
}

func (s *machineService) GetMachine(id uuid.UUID) (*model.Machine, error) {
	machine, err := s.machineRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrMachineNotFound
		}
		return nil, err
	}
	return machine, nil
}
