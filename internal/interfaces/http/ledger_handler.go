package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/abasto/abasto-api/internal/application/dto"
	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// LedgerHandler asientos manuales y lectura del historial.
type LedgerHandler struct {
	ledger *ledger.Ledger
}

// NewLedgerHandler construye el handler.
func NewLedgerHandler(l *ledger.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// PostMovement asienta un movimiento manual (entrada de compra, ajuste).
func (h *LedgerHandler) PostMovement(c *fiber.Ctx) error {
	var in dto.PostMovementRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	res, err := h.ledger.PostMovement(c.Context(), ledger.PostInput{
		MaterialID:     in.MaterialID,
		Direction:      in.Direction,
		Quantity:       in.Quantity,
		Location:       in.Location,
		Reason:         in.Reason,
		BatchNumber:    in.BatchNumber,
		IdempotencyKey: in.IdempotencyKey,
		Actor:          GetActor(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// ListMovements pagina el historial de un material, más reciente primero.
// Query: direction, offset, limit. count es el tamaño de la página devuelta,
// no del historial completo.
func (h *LedgerHandler) ListMovements(c *fiber.Ctx) error {
	materialID := c.Params("materialId")
	filter := repository.MovementFilter{Direction: c.Query("direction")}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	movements, err := h.ledger.ListMovements(c.Context(), materialID, filter, offset, limit)
	if err != nil {
		return respondError(c, err)
	}
	if movements == nil {
		movements = []*entity.StockMovement{}
	}
	return c.JSON(fiber.Map{
		"count":     len(movements),
		"offset":    offset,
		"limit":     limit,
		"movements": movements,
	})
}
