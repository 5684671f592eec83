package handler

import (
	"go-factory-ops/internal/model"
	"go-factory-ops/internal/service"

	"github.com/gofiber/fiber/v2"
)

type MachineHandler struct {
	service service.MachineService
}

func NewMachineHandler(s service.MachineService) *MachineHandler {
	return &MachineHandler{service: s}
}

func (h *MachineHandler) CreateMachine(c *fiber.Ctx) error {
	var machine model.Machine
	if err := c.BodyParser(&machine); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if err := h.service.CreateMachine(&machine, getActorID(c)); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(201).JSON(fiber.Map{"message": "Machine created", "data": machine})
}

func (h *MachineHandler) GetMachines(c *fiber.Ctx) error {
	machines, err := h.service.GetAllMachines()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Internal Server Error"})
	}
	return c.JSON(machines)
}

func (h *MachineHandler) GetMachine(c *fiber.Ctx) error {
	machineID, err := parseUUID(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid machine ID"})
	}

	machine, err := h.service.GetMachine(machineID)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(machine)
}
