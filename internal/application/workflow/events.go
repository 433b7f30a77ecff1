// Package workflow (aplicación) orquesta máquina de estados, ledger y
// allocator por acción de usuario, y emite eventos post-commit para los
// consumidores externos (notificaciones, preparación de compras).
package workflow

import (
	"time"

	"github.com/abasto/abasto-api/internal/domain/entity"
)

// Tipos de evento emitidos tras confirmar una transición.
const (
	EventRequestSubmitted    = "request_submitted"
	EventRequestForwarded    = "request_forwarded"
	EventRequestApproved     = "request_approved"
	EventRequestRejected     = "request_rejected"
	EventStockShortage       = "stock_shortage"
	EventDispatchCreated     = "dispatch_created"
	EventReceiptAcknowledged = "receipt_acknowledged"
	// ProcurementRequired se emite al aprobar definitivamente una solicitud
	// estándar; un consumidor externo lo convierte en preparación de compra.
	EventProcurementRequired = "procurement_required"
)

// Event evento de workflow ya confirmado. Se publica después de guardar la
// transición: un fallo del consumidor nunca revierte la transición.
type Event struct {
	Type       string               `json:"type"`
	RequestID  string               `json:"requestId"`
	Family     string               `json:"family"`
	Status     string               `json:"status"`
	DispatchID string               `json:"dispatchId,omitempty"`
	Items      []entity.RequestItem `json:"items,omitempty"`
	Actor      entity.Actor         `json:"actor"`
	Timestamp  time.Time            `json:"timestamp"`
}

// emit publica en el canal sin bloquear (best-effort: si nadie drena, se
// descarta con warn) y dispara las notificaciones del evento.
func (o *Orchestrator) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
		o.log.Warn().Str("type", ev.Type).Str("request_id", ev.RequestID).Msg("canal de eventos lleno, evento descartado")
	}
}

// Events canal de solo lectura con los eventos confirmados.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// CloseEvents cierra el canal de eventos. Llamar solo durante el apagado,
// cuando ya no entran acciones de usuario.
func (o *Orchestrator) CloseEvents() {
	close(o.events)
}
