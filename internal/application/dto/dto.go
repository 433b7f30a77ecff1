// Package dto contratos de entrada/salida de la capa HTTP.
package dto

import (
	"github.com/shopspring/decimal"
)

// ErrorResponse respuesta uniforme de error.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateMaterialRequest alta de material.
type CreateMaterialRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	MaxLevel     decimal.Decimal `json:"max_level"`
	Grade        string          `json:"grade"`
}

// PostMovementRequest asiento manual en el ledger (ajustes, entradas de compra).
type PostMovementRequest struct {
	MaterialID     string          `json:"material_id"`
	Direction      string          `json:"direction"` // in | out
	Quantity       decimal.Decimal `json:"quantity"`
	Location       string          `json:"location"`
	Reason         string          `json:"reason"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

// RequestItemDTO línea de solicitud.
type RequestItemDTO struct {
	MaterialID        string          `json:"material_id"`
	RequestedQuantity decimal.Decimal `json:"requested_quantity"`
	Unit              string          `json:"unit"`
	Urgency           string          `json:"urgency,omitempty"`
	Reason            string          `json:"reason,omitempty"`
}

// SubmitRequestRequest creación de solicitud en cualquiera de las familias.
type SubmitRequestRequest struct {
	Family   string           `json:"family"` // standard | production | sales
	Items    []RequestItemDTO `json:"items"`
	Priority string           `json:"priority,omitempty"`
	Notes    string           `json:"notes,omitempty"`
	BatchRef string           `json:"batch_ref,omitempty"`
}

// TransitionRequest cuerpo común de forward/approve/reject/acknowledge.
type TransitionRequest struct {
	Comment string `json:"comment,omitempty"`
}

// DispatchLineDTO línea parcial de un despacho de ventas.
type DispatchLineDTO struct {
	MaterialID string          `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// DispatchRequest despacho de una solicitud. Lines vacío = despacho completo
// (o todo lo restante, en ventas).
type DispatchRequest struct {
	FromLocation string            `json:"from_location"`
	ToLocation   string            `json:"to_location"`
	Lines        []DispatchLineDTO `json:"lines,omitempty"`
	Comment      string            `json:"comment,omitempty"`
}

// AcknowledgeRequest acuse de recibo de un despacho.
type AcknowledgeRequest struct {
	DispatchID string `json:"dispatch_id"`
	Comment    string `json:"comment,omitempty"`
}

// SplitAllocationDTO fracción destino de un split.
type SplitAllocationDTO struct {
	Location string          `json:"location"`
	Quantity decimal.Decimal `json:"quantity"`
}

// SplitRequest división de una existencia.
type SplitRequest struct {
	Allocations []SplitAllocationDTO `json:"allocations"`
}

// MoveRequest reubicación de una existencia.
type MoveRequest struct {
	NewLocation string `json:"new_location"`
}

// BalanceResponse balance cacheado de un material.
type BalanceResponse struct {
	MaterialID string          `json:"material_id"`
	Balance    decimal.Decimal `json:"balance"`
}

// AvailabilityResponse resultado del chequeo de disponibilidad.
type AvailabilityResponse struct {
	Available      bool            `json:"available"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Shortfall      decimal.Decimal `json:"shortfall"`
}
