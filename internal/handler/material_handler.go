package handler

import (
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type MaterialHandler struct {
	service service.MaterialService
}

func NewMaterialHandler(s service.MaterialService) *MaterialHandler {
	return &MaterialHandler{service: s}
}

func (h *MaterialHandler) CreateMaterial(c *fiber.Ctx) error {
	var material model.Material
	if err := c.BodyParser(&material); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateMaterial(&material, getActorID(c)); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Material created", "data": material})
}

func (h *MaterialHandler) GetMaterials(c *fiber.Ctx) error {
	materials, err := h.service.GetAllMaterials()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(materials)
}

func (h *MaterialHandler) GetMaterial(c *fiber.Ctx) error {
	materialID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid material ID"})
	}

	detail, err := h.service.GetMaterial(materialID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(detail)
}
