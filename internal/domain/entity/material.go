package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de un material.
const (
	MaterialActive   = "active"
	MaterialInactive = "inactive"
)

// Material materia prima o insumo controlado por el ledger.
// Balance es una proyección cacheada: siempre debe igualar la suma de movimientos
// del material (el ledger la recalcula de forma incremental en cada posting).
type Material struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"` // kg, m, unidad...
	ReorderLevel decimal.Decimal `json:"reorderLevel"`
	MaxLevel     decimal.Decimal `json:"maxLevel"`
	Grade        string          `json:"grade"` // calidad: A, B, C
	Status       string          `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// BelowReorder indica si el balance cacheado está bajo el punto de reorden.
func (m *Material) BelowReorder() bool {
	return m.Balance.LessThan(m.ReorderLevel)
}
