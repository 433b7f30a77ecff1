// Package allocator convierte solicitudes aprobadas en despachos con
// conservación de cantidad, y gestiona reubicación y división de existencias
// de producto terminado.
package allocator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/internal/pkg/kmutex"
	"github.com/abasto/abasto-api/pkg/logger"
)

// Allocator caso de uso de despacho y split. Nunca muta solicitudes: eso es
// del orquestador; aquí solo se tocan ledger, despachos y existencias.
type Allocator struct {
	ledger     *ledger.Ledger
	dispatches repository.DispatchRepository
	locations  repository.LocationRepository
	entryLocks *kmutex.KMutex
	log        *logger.Logger
}

// NewAllocator construye el caso de uso.
func NewAllocator(l *ledger.Ledger, dispatches repository.DispatchRepository, locations repository.LocationRepository, log *logger.Logger) *Allocator {
	return &Allocator{
		ledger:     l,
		dispatches: dispatches,
		locations:  locations,
		entryLocks: kmutex.New(),
		log:        log,
	}
}

// Availability resultado del chequeo de disponibilidad. Lectura pura.
type Availability struct {
	Available      bool            `json:"available"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	Shortfall      decimal.Decimal `json:"shortfall"`
}

// CheckAvailability compara la cantidad pedida contra el balance cacheado.
// No muta estado.
func (a *Allocator) CheckAvailability(ctx context.Context, materialID string, quantity decimal.Decimal) (*Availability, error) {
	if !quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("cantidad %s: %w", quantity, domain.ErrInvalidQuantity)
	}
	balance, err := a.ledger.GetBalance(ctx, materialID)
	if err != nil {
		return nil, err
	}
	av := &Availability{CurrentBalance: balance, Shortfall: decimal.Zero}
	if balance.GreaterThanOrEqual(quantity) {
		av.Available = true
	} else {
		av.Shortfall = quantity.Sub(balance)
	}
	return av, nil
}

// DispatchLine línea a despachar. RequestedQuantity es lo pedido originalmente
// en la solicitud; Quantity lo que este despacho saca (puede ser parcial en ventas).
type DispatchLine struct {
	MaterialID        string
	Quantity          decimal.Decimal
	RequestedQuantity decimal.Decimal
	Unit              string
}

// ShortageReport faltante de un intento de despacho. No es un error: es un
// resultado válido del workflow (la solicitud cae a stock_shortage).
type ShortageReport struct {
	RequestID string                `json:"requestId"`
	Lines     []ledger.ShortageLine `json:"lines"`
}

// ApproveAndDispatch verifica disponibilidad de todas las líneas y, solo si
// todas alcanzan, asienta una salida por línea y sella el despacho. Si
// cualquier línea falta, no se asienta ningún movimiento y se devuelve el
// reporte de faltante (todo o nada).
//
// El despacho se persiste en pending ANTES de asentar, así un reintento tras
// un fallo a mitad de camino reutiliza el mismo id: las claves de idempotencia
// recuperan las salidas ya asentadas en lugar de volver a descontarlas.
func (a *Allocator) ApproveAndDispatch(ctx context.Context, req *entity.Request, lines []DispatchLine, from, to string, actor entity.Actor) (*entity.Dispatch, *ShortageReport, error) {
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("despacho sin líneas: %w", domain.ErrInvalidQuantity)
	}

	d, err := a.pendingDispatch(ctx, req, lines, from, to, actor)
	if err != nil {
		return nil, nil, err
	}

	inputs := make([]ledger.PostInput, 0, len(lines))
	for i, line := range lines {
		inputs = append(inputs, ledger.PostInput{
			MaterialID:     line.MaterialID,
			Direction:      entity.DirectionOut,
			Quantity:       line.Quantity,
			Location:       from,
			Reason:         "despacho de solicitud",
			RequestID:      req.ID,
			DispatchID:     d.ID,
			BatchNumber:    req.BatchRef,
			IdempotencyKey: fmt.Sprintf("%s:out:%d", d.ID, i),
			Actor:          actor,
		})
	}

	results, shortages, err := a.ledger.PostBatch(ctx, inputs, true)
	if err != nil {
		return nil, nil, err
	}
	if len(shortages) > 0 {
		// Nada asentado: el registro en vuelo sobra.
		if err := a.dispatches.Delete(ctx, d.ID); err != nil {
			a.log.Warn().Err(err).Str("dispatch_id", d.ID).Msg("no se pudo retirar el despacho en vuelo")
		}
		return nil, &ShortageReport{RequestID: req.ID, Lines: shortages}, nil
	}

	for i := range d.Items {
		d.Items[i].StockBefore = results[i].Before
		d.Items[i].StockAfter = results[i].Balance
	}
	d.Status = entity.DispatchDispatched
	if err := a.dispatches.Save(ctx, d); err != nil {
		return nil, nil, fmt.Errorf("guardar despacho: %w", err)
	}
	return d, nil, nil
}

// pendingDispatch reutiliza el registro en vuelo de un intento interrumpido con
// el mismo plan de líneas, o crea uno nuevo. El caller (orquestador) ya
// serializó por solicitud.
func (a *Allocator) pendingDispatch(ctx context.Context, req *entity.Request, lines []DispatchLine, from, to string, actor entity.Actor) (*entity.Dispatch, error) {
	existing, err := a.dispatches.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if d.Status == entity.DispatchPending && samePlan(d, lines, from, to) {
			return d, nil
		}
	}

	d := &entity.Dispatch{
		ID:           uuid.New().String(),
		RequestID:    req.ID,
		FromLocation: from,
		ToLocation:   to,
		Status:       entity.DispatchPending,
		DispatchedBy: actor,
		DispatchedAt: time.Now(),
	}
	for _, line := range lines {
		d.Items = append(d.Items, entity.DispatchItem{
			MaterialID:         line.MaterialID,
			RequestedQuantity:  line.RequestedQuantity,
			DispatchedQuantity: line.Quantity,
			Unit:               line.Unit,
		})
	}
	if err := a.dispatches.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("registrar despacho en vuelo: %w", err)
	}
	return d, nil
}

// samePlan compara el registro en vuelo contra las líneas pedidas: mismas
// ubicaciones y mismas cantidades por línea, en orden.
func samePlan(d *entity.Dispatch, lines []DispatchLine, from, to string) bool {
	if d.FromLocation != from || d.ToLocation != to || len(d.Items) != len(lines) {
		return false
	}
	for i, line := range lines {
		if d.Items[i].MaterialID != line.MaterialID || !d.Items[i].DispatchedQuantity.Equal(line.Quantity) {
			return false
		}
	}
	return true
}

// AcknowledgeReceipt asienta la entrada en la ubicación destino y marca el
// despacho como recibido. Un despacho ya recibido rechaza el segundo acuse sin
// asentar nada; si un acuse anterior murió entre los asientos y el registro,
// el reintento recupera las entradas por clave y completa la mitad pendiente.
func (a *Allocator) AcknowledgeReceipt(ctx context.Context, dispatchID string, actor entity.Actor) (*entity.Dispatch, error) {
	d, err := a.dispatches.GetByID(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	if d.Status == entity.DispatchReceived {
		return nil, fmt.Errorf("despacho %s ya recibido: %w", dispatchID, domain.ErrDuplicate)
	}
	if d.Status == entity.DispatchPending {
		return nil, fmt.Errorf("despacho %s aún en vuelo: %w", dispatchID, domain.ErrIllegalTransition)
	}

	inputs := make([]ledger.PostInput, 0, len(d.Items))
	for i, item := range d.Items {
		inputs = append(inputs, ledger.PostInput{
			MaterialID:     item.MaterialID,
			Direction:      entity.DirectionIn,
			Quantity:       item.DispatchedQuantity,
			Location:       d.ToLocation,
			Reason:         "recepción de despacho",
			RequestID:      d.RequestID,
			DispatchID:     d.ID,
			IdempotencyKey: fmt.Sprintf("%s:in:%d", d.ID, i),
			Actor:          actor,
		})
	}
	if _, _, err := a.ledger.PostBatch(ctx, inputs, false); err != nil {
		return nil, err
	}

	now := time.Now()
	d.Status = entity.DispatchReceived
	d.ReceivedBy = &actor
	d.ReceivedAt = &now
	if err := a.dispatches.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("guardar despacho recibido: %w", err)
	}
	return d, nil
}
