package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de despacho. Un despacho nace pending antes de asentar las salidas:
// si el proceso muere entre los asientos y el registro final, el reintento
// encuentra el registro en vuelo y reutiliza su id (y sus claves de idempotencia).
const (
	DispatchPending    = "pending"
	DispatchDispatched = "dispatched"
	DispatchReceived   = "received"
)

// DispatchItem línea despachada. stockBefore/stockAfter se capturan en el momento
// del posting de salida, dentro de la misma sección atómica.
type DispatchItem struct {
	MaterialID         string          `json:"materialId"`
	RequestedQuantity  decimal.Decimal `json:"requestedQuantity"`
	DispatchedQuantity decimal.Decimal `json:"dispatchedQuantity"`
	Unit               string          `json:"unit"`
	StockBefore        decimal.Decimal `json:"stockBefore"`
	StockAfter         decimal.Decimal `json:"stockAfter"`
}

// Dispatch transferencia comprometida de stock en cumplimiento de una solicitud
// aprobada. Inmutable una vez recibido.
type Dispatch struct {
	ID           string         `json:"id"`
	RequestID    string         `json:"requestId"`
	Items        []DispatchItem `json:"items"`
	FromLocation string         `json:"fromLocation"`
	ToLocation   string         `json:"toLocation"`
	Status       string         `json:"status"`
	DispatchedBy Actor          `json:"dispatchedBy"`
	DispatchedAt time.Time      `json:"dispatchedAt"`
	ReceivedBy   *Actor         `json:"receivedBy,omitempty"`
	ReceivedAt   *time.Time     `json:"receivedAt,omitempty"`
}
