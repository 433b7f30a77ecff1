package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direcciones de movimiento de stock.
const (
	DirectionIn  = "in"  // entrada
	DirectionOut = "out" // salida
)

// StockMovement registro inmutable del ledger. Nunca se edita ni se borra:
// las correcciones son asientos compensatorios. Quantity siempre es positiva;
// la dirección la da Direction.
type StockMovement struct {
	ID             string          `json:"id"`
	MaterialID     string          `json:"materialId"`
	Direction      string          `json:"direction"`
	Quantity       decimal.Decimal `json:"quantity"`
	Location       string          `json:"location"`
	Reason         string          `json:"reason"`
	RequestID      string          `json:"requestId,omitempty"`
	DispatchID     string          `json:"dispatchId,omitempty"`
	BatchNumber    string          `json:"batchNumber,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"` // ej. dispatchId:itemIdx
	// BalanceBefore/BalanceAfter capturan la proyección en el momento del
	// asiento; permiten reconstruir el resultado al reaplicar por clave.
	BalanceBefore decimal.Decimal `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal `json:"balanceAfter"`
	Actor         Actor           `json:"actor"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Signed devuelve la cantidad con signo según la dirección.
func (m *StockMovement) Signed() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
