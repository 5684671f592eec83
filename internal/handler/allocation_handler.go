package handler

import (
	"errors"

	"go-factory-ops/internal/ledger"
	"go-factory-ops/internal/repository"
	"go-factory-ops/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AllocationHandler struct {
	service service.AllocationService
}

func NewAllocationHandler(s service.AllocationService) *AllocationHandler {
	return &AllocationHandler{service: s}
}

// Helper to read the actor id set by the ActorContext middleware. Empty when
// the request carried no valid token; the service resolves the sentinel.
func getActorID(c *fiber.Ctx) string {
	actorID := c.Locals("actor_id")
	if actorID == nil {
		return ""
	}
	return actorID.(string)
}

func parseUUID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

// errorStatus maps ledger error kinds to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return fiber.StatusNotFound
	case ledger.IsConflict(err):
		return fiber.StatusConflict
	case errors.Is(err, ledger.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadRequest
	}
}

// CreateAllocations allocates stock of one material to a batch of machines.
// The whole batch succeeds or the whole batch fails.
func (h *AllocationHandler) CreateAllocations(c *fiber.Ctx) error {
	materialID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid material ID"})
	}

	var req service.CreateAllocationsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.service.CreateAllocations(c.Context(), materialID, &req, getActorID(c))
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Allocations created", "data": result})
}

func (h *AllocationHandler) UpdateAllocation(c *fiber.Ctx) error {
	allocationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid allocation ID"})
	}

	var req service.UpdateAllocationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	result, err := h.service.UpdateAllocation(c.Context(), allocationID, &req, getActorID(c))
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Allocation updated", "data": result})
}

func (h *AllocationHandler) DeleteAllocation(c *fiber.Ctx) error {
	allocationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid allocation ID"})
	}

	if err := h.service.DeleteAllocation(c.Context(), allocationID, getActorID(c)); err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "Allocation deleted"})
}

func (h *AllocationHandler) GetAllocations(c *fiber.Ctx) error {
	var filter repository.AllocationFilter

	if raw := c.Query("material_id"); raw != "" {
		id, err := parseUUID(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid material_id filter"})
		}
		filter.MaterialID = id
	}
	if raw := c.Query("machine_id"); raw != "" {
		id, err := parseUUID(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid machine_id filter"})
		}
		filter.MachineID = id
	}

	allocations, err := h.service.ListAllocations(c.Context(), filter)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(allocations)
}

func (h *AllocationHandler) GetHistory(c *fiber.Ctx) error {
	allocationID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid allocation ID"})
	}

	entries, err := h.service.GetHistory(c.Context(), allocationID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}

// GetMaterialHistory returns the full audit trail of one material, including
// entries of allocations that were deleted since.
func (h *AllocationHandler) GetMaterialHistory(c *fiber.Ctx) error {
	materialID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid material ID"})
	}

	entries, err := h.service.GetMaterialHistory(c.Context(), materialID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entries)
}
