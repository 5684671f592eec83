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

// MaterialDetail joins a material with its allocation totals. MaxAvailableStock
// is the conserved total: free stock plus everything allocated to machines.
type MaterialDetail struct {
	Material          model.Material `json:"material"`
	TotalAllocated    int            `json:"total_allocated"`
	MaxAvailableStock int            `json:"max_available_stock"`
}

// MaterialService owns the material-management flows around the ledger.
// Stock is set once at creation; afterwards only the ledger moves it.
type MaterialService interface {
	CreateMaterial(req *model.Material, actorID string) error
	GetAllMaterials() ([]model.Material, error)
	GetMaterial(id uuid.UUID) (*MaterialDetail, error)
}

type materialService struct {
	materialRepo repository.MaterialRepository
}

func NewMaterialService(materialRepo repository.MaterialRepository) MaterialService {
	return &materialService{materialRepo: materialRepo}
}

func (s *materialService) CreateMaterial(req *model.Material, actorID string) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		firstErr := errs[0]
		return fmt.Errorf("validation failed: field '%s' failed on tag '%s'", firstErr.FailedField, firstErr.Tag)
	}

	existing, err := s.materialRepo.FindByReference(req.Reference)
	if err == nil && existing.ID != uuid.Nil {
		return errors.New("reference already exists")
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	actor := resolveActor(actorID)
	req.CreatedBy = actor
	req.UpdatedBy = actor
	return s.materialRepo.Create(req)
}

func (s *materialService) GetAllMaterials() ([]model.Material, error) {
	return s.materialRepo.FindAll()
}

func (s *materialService) GetMaterial(id uuid.UUID) (*MaterialDetail, error) {
	material, err := s.materialRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrMaterialNotFound
		}
		return nil, err
	}

	totalAllocated, err := s.materialRepo.SumAllocated(id)
	if err != nil {
		return nil, err
	}

	return &MaterialDetail{
		Material:          *material,
		TotalAllocated:    totalAllocated,
		MaxAvailableStock: material.CurrentStock + totalAllocated,
	}, nil
}
