package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/dto"
	"github.com/abasto/abasto-api/internal/application/workflow"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// RequestHandler ciclo de vida de solicitudes vía orquestador.
type RequestHandler struct {
	orch     *workflow.Orchestrator
	requests repository.RequestRepository
}

// NewRequestHandler construye el handler.
func NewRequestHandler(orch *workflow.Orchestrator, requests repository.RequestRepository) *RequestHandler {
	return &RequestHandler{orch: orch, requests: requests}
}

// Submit crea una solicitud.
func (h *RequestHandler) Submit(c *fiber.Ctx) error {
	var in dto.SubmitRequestRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	items := make([]entity.RequestItem, 0, len(in.Items))
	for _, it := range in.Items {
		urgency := it.Urgency
		if urgency == "" {
			urgency = entity.UrgencyNormal
		}
		items = append(items, entity.RequestItem{
			MaterialID:        it.MaterialID,
			RequestedQuantity: it.RequestedQuantity,
			Unit:              it.Unit,
			Urgency:           urgency,
			Reason:            it.Reason,
		})
	}
	req, err := h.orch.Submit(c.Context(), workflow.SubmitInput{
		Family:   in.Family,
		Items:    items,
		Priority: in.Priority,
		Notes:    in.Notes,
		BatchRef: in.BatchRef,
	}, GetActor(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

// List lista solicitudes (?family= filtra).
func (h *RequestHandler) List(c *fiber.Ctx) error {
	list, err := h.requests.List(c.Context(), c.Query("family"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "requests": list})
}

// GetByID devuelve una solicitud con su trail completo.
func (h *RequestHandler) GetByID(c *fiber.Ctx) error {
	req, err := h.requests.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

type transitionOp func(ctx context.Context, requestID string, actor entity.Actor, comment string) (*entity.Request, error)

// Forward HO remite al MD.
func (h *RequestHandler) Forward(c *fiber.Ctx) error {
	return h.transition(c, h.orch.Forward)
}

// Approve aprueba (MD en estándar, HO en ventas).
func (h *RequestHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, h.orch.Approve)
}

// Reject rechaza.
func (h *RequestHandler) Reject(c *fiber.Ctx) error {
	return h.transition(c, h.orch.Reject)
}

func (h *RequestHandler) transition(c *fiber.Ctx, op transitionOp) error {
	var in dto.TransitionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	req, err := op(c.Context(), c.Params("id"), GetActor(c), in.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}

// Dispatch despacha una solicitud (producción completa; ventas admite parcial).
func (h *RequestHandler) Dispatch(c *fiber.Ctx) error {
	var in dto.DispatchRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	var partial []allocator.DispatchLine
	for _, line := range in.Lines {
		partial = append(partial, allocator.DispatchLine{MaterialID: line.MaterialID, Quantity: line.Quantity})
	}
	req, d, shortage, err := h.orch.Dispatch(c.Context(), c.Params("id"), partial, in.FromLocation, in.ToLocation, GetActor(c), in.Comment)
	if err != nil {
		return respondError(c, err)
	}
	if shortage != nil {
		// Faltante: resultado válido, no error. 200 con el reporte.
		return c.JSON(fiber.Map{"request": req, "shortage": shortage})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"request": req, "dispatch": d})
}

// Acknowledge acusa recibo de un despacho y cierra la solicitud.
func (h *RequestHandler) Acknowledge(c *fiber.Ctx) error {
	var in dto.AcknowledgeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.DispatchID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "dispatch_id es obligatorio"})
	}
	req, err := h.orch.Acknowledge(c.Context(), c.Params("id"), in.DispatchID, GetActor(c), in.Comment)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(req)
}
