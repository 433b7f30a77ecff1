package workflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	graph "github.com/abasto/abasto-api/internal/domain/workflow"
)

// Dispatch intenta despachar una solicitud. En producción el despacho es
// siempre completo: cualquier línea en faltante deja la solicitud entera en
// stock_shortage sin asentar nada. En ventas el despacho puede ser parcial
// (partial no nil); la solicitud llega a dispatched solo cuando lo acumulado
// iguala exactamente lo aprobado en cada línea.
func (o *Orchestrator) Dispatch(ctx context.Context, requestID string, partial []allocator.DispatchLine, from, to string, actor entity.Actor, comment string) (*entity.Request, *entity.Dispatch, *allocator.ShortageReport, error) {
	o.locks.Lock(requestID)
	defer o.locks.Unlock(requestID)

	req, err := o.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, nil, err
	}
	next, err := o.gate(req, entity.ActionDispatch, actor)
	if err != nil {
		return nil, nil, nil, err
	}

	var lines []allocator.DispatchLine
	complete := true
	switch req.Family {
	case entity.FamilySales:
		lines, complete, err = o.salesLines(ctx, req, partial)
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		if partial != nil {
			return nil, nil, nil, fmt.Errorf("la familia %s no admite despacho parcial: %w", req.Family, domain.ErrQuantityMismatch)
		}
		for _, item := range req.Items {
			lines = append(lines, allocator.DispatchLine{
				MaterialID:        item.MaterialID,
				Quantity:          item.RequestedQuantity,
				RequestedQuantity: item.RequestedQuantity,
				Unit:              item.Unit,
			})
		}
	}

	dispatch, shortage, err := o.alloc.ApproveAndDispatch(ctx, req, lines, from, to, actor)
	if err != nil {
		return nil, nil, nil, err
	}
	if shortage != nil {
		if target, ok := graph.ShortageTarget(req.Family); ok {
			o.record(req, entity.ActionDispatch, target, actor, comment)
			if err := o.requests.Save(ctx, req); err != nil {
				return nil, nil, nil, err
			}
		}
		o.emit(Event{Type: EventStockShortage, RequestID: req.ID, Family: req.Family, Status: req.Status, Actor: actor})
		o.notify(ctx, req.Requester.UserID, "faltante de stock en despacho", req)
		return req, nil, shortage, nil
	}

	target := next.To
	if !complete {
		// Despacho parcial en ventas: el estado se mantiene, el trail registra el intento.
		target = req.Status
	}
	o.record(req, entity.ActionDispatch, target, actor, comment)
	if err := o.requests.Save(ctx, req); err != nil {
		return nil, nil, nil, err
	}

	o.emit(Event{Type: EventDispatchCreated, RequestID: req.ID, Family: req.Family, Status: req.Status, DispatchID: dispatch.ID, Actor: actor})
	o.notify(ctx, req.Requester.UserID, "despacho creado", req)
	return req, dispatch, nil, nil
}

// salesLines resuelve las líneas de un despacho de ventas: lo restante si no se
// pidió parcial, y valida que nada exceda lo aprobado acumulado (coincidencia
// exacta, nunca sobre-despacho). complete indica si tras este despacho todas
// las líneas quedan saldadas.
func (o *Orchestrator) salesLines(ctx context.Context, req *entity.Request, partial []allocator.DispatchLine) (lines []allocator.DispatchLine, complete bool, err error) {
	remaining := make(map[string]decimal.Decimal, len(req.Items))
	units := make(map[string]string, len(req.Items))
	approved := make(map[string]decimal.Decimal, len(req.Items))
	for _, item := range req.Items {
		remaining[item.MaterialID] = item.RequestedQuantity
		approved[item.MaterialID] = item.RequestedQuantity
		units[item.MaterialID] = item.Unit
	}
	dispatches, err := o.dispatches.ListByRequest(ctx, req.ID)
	if err != nil {
		return nil, false, err
	}
	for _, d := range dispatches {
		// Un registro en vuelo (intento interrumpido) aún no descontó stock.
		if d.Status == entity.DispatchPending {
			continue
		}
		for _, item := range d.Items {
			remaining[item.MaterialID] = remaining[item.MaterialID].Sub(item.DispatchedQuantity)
		}
	}

	if partial == nil {
		for _, item := range req.Items {
			if rest := remaining[item.MaterialID]; rest.GreaterThan(decimal.Zero) {
				lines = append(lines, allocator.DispatchLine{
					MaterialID:        item.MaterialID,
					Quantity:          rest,
					RequestedQuantity: item.RequestedQuantity,
					Unit:              item.Unit,
				})
			}
		}
		if len(lines) == 0 {
			return nil, false, fmt.Errorf("solicitud %s ya despachada por completo: %w", req.ID, domain.ErrQuantityMismatch)
		}
		return lines, true, nil
	}

	for _, line := range partial {
		rest, ok := remaining[line.MaterialID]
		if !ok {
			return nil, false, fmt.Errorf("material %s no pertenece a la solicitud: %w", line.MaterialID, domain.ErrNotFound)
		}
		if line.Quantity.GreaterThan(rest) {
			return nil, false, fmt.Errorf("material %s: %s excede lo restante %s: %w",
				line.MaterialID, line.Quantity, rest, domain.ErrQuantityMismatch)
		}
		remaining[line.MaterialID] = rest.Sub(line.Quantity)
		lines = append(lines, allocator.DispatchLine{
			MaterialID:        line.MaterialID,
			Quantity:          line.Quantity,
			RequestedQuantity: approved[line.MaterialID],
			Unit:              units[line.MaterialID],
		})
	}
	complete = true
	for _, rest := range remaining {
		if rest.GreaterThan(decimal.Zero) {
			complete = false
			break
		}
	}
	return lines, complete, nil
}

// Acknowledge acusa recibo de un despacho de producción: asienta las entradas
// en destino y cierra la solicitud. El segundo acuse del mismo despacho falla
// sin asentar nada.
func (o *Orchestrator) Acknowledge(ctx context.Context, requestID, dispatchID string, actor entity.Actor, comment string) (*entity.Request, error) {
	o.locks.Lock(requestID)
	defer o.locks.Unlock(requestID)

	req, err := o.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	next, err := o.gate(req, entity.ActionAcknowledge, actor)
	if err != nil {
		return nil, err
	}

	d, err := o.dispatches.GetByID(ctx, dispatchID)
	if err != nil {
		return nil, err
	}
	if d.RequestID != requestID {
		return nil, fmt.Errorf("despacho %s no pertenece a la solicitud %s: %w", dispatchID, requestID, domain.ErrNotFound)
	}

	if _, err := o.alloc.AcknowledgeReceipt(ctx, dispatchID, actor); err != nil {
		return nil, err
	}

	o.record(req, entity.ActionAcknowledge, next.To, actor, comment)
	if err := o.requests.Save(ctx, req); err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventReceiptAcknowledged, RequestID: req.ID, Family: req.Family, Status: req.Status, DispatchID: dispatchID, Actor: actor})
	o.notify(ctx, entity.RoleWarehouse, "recepción confirmada", req)
	return req, nil
}

// SplitEntry y MoveEntry delegan en el allocator; se exponen aquí para que
// toda acción de usuario entre por el orquestador.
func (o *Orchestrator) SplitEntry(ctx context.Context, entryID string, allocations []allocator.Allocation, actor entity.Actor) ([]*entity.LocationEntry, error) {
	return o.alloc.Split(ctx, entryID, allocations, actor)
}

func (o *Orchestrator) MoveEntry(ctx context.Context, entryID, newLocation string, actor entity.Actor) (*entity.LocationEntry, error) {
	return o.alloc.Move(ctx, entryID, newLocation, actor)
}
