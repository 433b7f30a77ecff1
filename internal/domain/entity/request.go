package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Familias de solicitud. Comparten forma pero cada una tiene su propio grafo
// de transiciones (ver internal/domain/workflow).
const (
	FamilyStandard   = "standard"   // solicitud de material con aprobación HO -> MD
	FamilyProduction = "production" // solicitud directa de producción a bodega
	FamilySales      = "sales"      // pedido de distribuidor/ventas (admite despacho parcial)
)

// Estados de solicitud estándar.
const (
	StatusPendingHO     = "pending_ho"
	StatusForwardedToMD = "forwarded_to_md"
	StatusHORejected    = "ho_rejected"
	StatusMDApproved    = "md_approved"
	StatusMDRejected    = "md_rejected"
)

// Estados de solicitud de producción.
const (
	StatusPendingWarehouse = "pending_warehouse"
	StatusDispatched       = "dispatched"
	StatusReceived         = "received"
	StatusStockShortage    = "stock_shortage"
)

// Estados de pedido de ventas/distribuidor. El estado "dispatched" se comparte
// con producción; en ventas es terminal (se alcanza solo cuando lo despachado
// acumulado iguala exactamente lo aprobado en cada línea).
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Acciones sobre una solicitud. Cada acción aplicada agrega exactamente un
// registro al trail de workflow.
const (
	ActionSubmit      = "submit"
	ActionForward     = "forward"
	ActionApprove     = "approve"
	ActionReject      = "reject"
	ActionDispatch    = "dispatch"
	ActionAcknowledge = "acknowledge"
)

// Urgencias de línea.
const (
	UrgencyNormal = "normal"
	UrgencyHigh   = "high"
)

// RequestItem línea de una solicitud.
type RequestItem struct {
	MaterialID        string          `json:"materialId"`
	RequestedQuantity decimal.Decimal `json:"requestedQuantity"`
	Unit              string          `json:"unit"`
	Urgency           string          `json:"urgency"`
	Reason            string          `json:"reason"`
}

// WorkflowRecord registro de auditoría de una transición. El trail es append-only:
// la secuencia de estados resultante siempre es un camino válido del grafo de la familia.
type WorkflowRecord struct {
	Actor     Actor     `json:"actor"`
	Action    string    `json:"action"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Comment   string    `json:"comment,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Request solicitud de material en cualquiera de las tres familias.
// Nunca se borra: rechazadas y completadas se conservan para auditoría.
// Version crece en cada transición aplicada (observabilidad de la serialización).
type Request struct {
	ID        string           `json:"id"`
	Family    string           `json:"family"`
	Items     []RequestItem    `json:"items"`
	Requester Actor            `json:"requester"`
	Status    string           `json:"status"`
	Workflow  []WorkflowRecord `json:"workflow"`
	Priority  string           `json:"priority,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	BatchRef  string           `json:"batchRef,omitempty"`
	Version   int64            `json:"version"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// StatusPath devuelve la secuencia de estados registrada en el trail,
// empezando por el estado inicial de la familia.
func (r *Request) StatusPath() []string {
	path := make([]string, 0, len(r.Workflow)+1)
	for i, rec := range r.Workflow {
		if i == 0 {
			path = append(path, rec.From)
		}
		if rec.To != rec.From {
			path = append(path, rec.To)
		}
	}
	return path
}
