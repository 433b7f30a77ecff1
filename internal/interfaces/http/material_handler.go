package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/dto"
	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// MaterialHandler materiales y consultas de ledger/disponibilidad.
type MaterialHandler struct {
	materials repository.MaterialRepository
	ledger    *ledger.Ledger
	alloc     *allocator.Allocator
}

// NewMaterialHandler construye el handler.
func NewMaterialHandler(materials repository.MaterialRepository, l *ledger.Ledger, alloc *allocator.Allocator) *MaterialHandler {
	return &MaterialHandler{materials: materials, ledger: l, alloc: alloc}
}

// Create da de alta un material con balance cero.
func (h *MaterialHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateMaterialRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Code == "" || in.Name == "" || in.Unit == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "code, name y unit son obligatorios"})
	}
	m := &entity.Material{
		Code:         in.Code,
		Name:         in.Name,
		Unit:         in.Unit,
		ReorderLevel: in.ReorderLevel,
		MaxLevel:     in.MaxLevel,
		Grade:        in.Grade,
		Status:       entity.MaterialActive,
		Balance:      decimal.Zero,
	}
	if _, err := h.materials.Create(c.Context(), m); err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

// List lista los materiales.
func (h *MaterialHandler) List(c *fiber.Ctx) error {
	list, err := h.materials.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "materials": list})
}

// GetByID devuelve un material.
func (h *MaterialHandler) GetByID(c *fiber.Ctx) error {
	m, err := h.materials.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

// GetBalance balance cacheado del material.
func (h *MaterialHandler) GetBalance(c *fiber.Ctx) error {
	id := c.Params("id")
	balance, err := h.ledger.GetBalance(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BalanceResponse{MaterialID: id, Balance: balance})
}

// CheckAvailability chequeo puro de disponibilidad (?quantity=).
func (h *MaterialHandler) CheckAvailability(c *fiber.Ctx) error {
	qty, err := decimal.NewFromString(c.Query("quantity"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "quantity inválida"})
	}
	av, err := h.alloc.CheckAvailability(c.Context(), c.Params("id"), qty)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AvailabilityResponse{Available: av.Available, CurrentBalance: av.CurrentBalance, Shortfall: av.Shortfall})
}

// Rebuild recalcula el balance desde el historial completo.
func (h *MaterialHandler) Rebuild(c *fiber.Ctx) error {
	id := c.Params("id")
	balance, err := h.ledger.Rebuild(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.BalanceResponse{MaterialID: id, Balance: balance})
}
