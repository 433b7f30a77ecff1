package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SplitEpsilon tolerancia absoluta al verificar conservación de cantidad en un split.
var SplitEpsilon = decimal.NewFromFloat(0.01)

// Location ubicación física de producto terminado. Capacity cero = sin límite declarado.
type Location struct {
	Name     string          `json:"name"`
	Capacity decimal.Decimal `json:"capacity"`
}

// LocationEntry existencia de producto terminado en una ubicación.
// Un move reemplaza Location en sitio; un split borra la entrada padre y crea
// N hijas cuyas cantidades suman la del padre (SplitFrom apunta al padre).
type LocationEntry struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId"`
	BatchNumber string          `json:"batchNumber"`
	Location    string          `json:"location"`
	Quantity    decimal.Decimal `json:"quantity"`
	SplitFrom   string          `json:"splitFrom,omitempty"`
	SplitIndex  int             `json:"splitIndex,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}
