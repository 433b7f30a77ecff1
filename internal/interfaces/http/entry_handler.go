package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/dto"
	"github.com/abasto/abasto-api/internal/application/workflow"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// EntryHandler existencias por ubicación: split, reubicación y consulta.
type EntryHandler struct {
	orch      *workflow.Orchestrator
	locations repository.LocationRepository
}

// NewEntryHandler construye el handler.
func NewEntryHandler(orch *workflow.Orchestrator, locations repository.LocationRepository) *EntryHandler {
	return &EntryHandler{orch: orch, locations: locations}
}

// List lista existencias (?location= filtra por ubicación).
func (h *EntryHandler) List(c *fiber.Ctx) error {
	var (
		entries []*entity.LocationEntry
		err     error
	)
	if loc := c.Query("location"); loc != "" {
		entries, err = h.locations.ListEntriesByLocation(c.Context(), loc)
	} else {
		entries, err = h.locations.ListEntries(c.Context())
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(entries), "entries": entries})
}

// GetByID devuelve una existencia.
func (h *EntryHandler) GetByID(c *fiber.Ctx) error {
	e, err := h.locations.GetEntry(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(e)
}

// Split divide una existencia en fracciones. Las cantidades deben cuadrar con
// la existencia original dentro de la tolerancia.
func (h *EntryHandler) Split(c *fiber.Ctx) error {
	var in dto.SplitRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if len(in.Allocations) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "allocations no puede estar vacío"})
	}
	allocs := make([]allocator.Allocation, 0, len(in.Allocations))
	for _, a := range in.Allocations {
		allocs = append(allocs, allocator.Allocation{Location: a.Location, Quantity: a.Quantity})
	}
	children, err := h.orch.SplitEntry(c.Context(), c.Params("id"), allocs, GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"entries": children})
}

// Move reubica una existencia respetando la capacidad declarada del destino.
func (h *EntryHandler) Move(c *fiber.Ctx) error {
	var in dto.MoveRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.NewLocation == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "new_location es obligatorio"})
	}
	e, err := h.orch.MoveEntry(c.Context(), c.Params("id"), in.NewLocation, GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(e)
}

// PutLocation declara una ubicación con capacidad opcional.
func (h *EntryHandler) PutLocation(c *fiber.Ctx) error {
	var loc entity.Location
	if err := c.BodyParser(&loc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if loc.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "name es obligatorio"})
	}
	if err := h.locations.PutLocation(c.Context(), &loc); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(loc)
}
