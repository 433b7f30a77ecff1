package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
	graph "github.com/abasto/abasto-api/internal/domain/workflow"
	"github.com/abasto/abasto-api/internal/pkg/kmutex"
	"github.com/abasto/abasto-api/pkg/logger"
)

// Orchestrator único componente autorizado a tocar máquina de estados y
// ledger/allocator en una misma acción lógica. Serializa por requestId: de dos
// transiciones concurrentes idénticas una gana y la otra ve el estado nuevo y
// falla con ErrIllegalTransition.
type Orchestrator struct {
	requests   repository.RequestRepository
	dispatches repository.DispatchRepository
	ledger     *ledger.Ledger
	alloc      *allocator.Allocator
	notifier   repository.Notifier
	locks      *kmutex.KMutex
	events     chan Event
	log        *logger.Logger
}

// NewOrchestrator construye el orquestador.
func NewOrchestrator(
	requests repository.RequestRepository,
	dispatches repository.DispatchRepository,
	l *ledger.Ledger,
	alloc *allocator.Allocator,
	notifier repository.Notifier,
	log *logger.Logger,
) *Orchestrator {
	return &Orchestrator{
		requests:   requests,
		dispatches: dispatches,
		ledger:     l,
		alloc:      alloc,
		notifier:   notifier,
		locks:      kmutex.New(),
		events:     make(chan Event, 256),
		log:        log,
	}
}

// SubmitInput entrada para crear una solicitud.
type SubmitInput struct {
	Family   string
	Items    []entity.RequestItem
	Priority string
	Notes    string
	BatchRef string
}

// Submit crea una solicitud en el estado inicial de su familia. Solo el rol
// creador de la familia puede enviar.
func (o *Orchestrator) Submit(ctx context.Context, in SubmitInput, actor entity.Actor) (*entity.Request, error) {
	init, err := graph.Initial(in.Family)
	if err != nil {
		return nil, err
	}
	if actor.Role != init.Role {
		return nil, fmt.Errorf("rol %s no puede crear solicitudes %s: %w", actor.Role, in.Family, domain.ErrIllegalTransition)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("solicitud sin líneas: %w", domain.ErrInvalidQuantity)
	}
	for _, item := range in.Items {
		if !item.RequestedQuantity.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("línea %s cantidad %s: %w", item.MaterialID, item.RequestedQuantity, domain.ErrInvalidQuantity)
		}
	}

	req := &entity.Request{
		Family:    in.Family,
		Items:     in.Items,
		Requester: actor,
		Status:    init.To,
		Priority:  in.Priority,
		Notes:     in.Notes,
		BatchRef:  in.BatchRef,
		Version:   1,
		Workflow: []entity.WorkflowRecord{{
			Actor:     actor,
			Action:    entity.ActionSubmit,
			From:      init.To,
			To:        init.To,
			Timestamp: time.Now(),
		}},
	}
	if _, err := o.requests.Create(ctx, req); err != nil {
		return nil, err
	}

	o.emit(Event{Type: EventRequestSubmitted, RequestID: req.ID, Family: req.Family, Status: req.Status, Items: req.Items, Actor: actor})
	o.notify(ctx, approverFor(in.Family), "nueva solicitud", req)
	return req, nil
}

// Forward HO remite una solicitud estándar al MD.
func (o *Orchestrator) Forward(ctx context.Context, requestID string, actor entity.Actor, comment string) (*entity.Request, error) {
	req, err := o.applyTransition(ctx, requestID, entity.ActionForward, actor, comment)
	if err != nil {
		return nil, err
	}
	o.emit(Event{Type: EventRequestForwarded, RequestID: req.ID, Family: req.Family, Status: req.Status, Actor: actor})
	o.notify(ctx, entity.RoleMainDirector, "solicitud remitida para aprobación", req)
	return req, nil
}

// Approve aprueba una solicitud (MD en estándar, HO en ventas). La aprobación
// final de una solicitud estándar dispara el evento de preparación de compra.
func (o *Orchestrator) Approve(ctx context.Context, requestID string, actor entity.Actor, comment string) (*entity.Request, error) {
	req, err := o.applyTransition(ctx, requestID, entity.ActionApprove, actor, comment)
	if err != nil {
		return nil, err
	}
	o.emit(Event{Type: EventRequestApproved, RequestID: req.ID, Family: req.Family, Status: req.Status, Actor: actor})
	o.notify(ctx, req.Requester.UserID, "solicitud aprobada", req)
	if req.Family == entity.FamilyStandard && req.Status == entity.StatusMDApproved {
		o.emit(Event{Type: EventProcurementRequired, RequestID: req.ID, Family: req.Family, Status: req.Status, Items: req.Items, Actor: actor})
	}
	return req, nil
}

// Reject rechaza una solicitud. Nunca toca el ledger.
func (o *Orchestrator) Reject(ctx context.Context, requestID string, actor entity.Actor, comment string) (*entity.Request, error) {
	req, err := o.applyTransition(ctx, requestID, entity.ActionReject, actor, comment)
	if err != nil {
		return nil, err
	}
	o.emit(Event{Type: EventRequestRejected, RequestID: req.ID, Family: req.Family, Status: req.Status, Actor: actor})
	o.notify(ctx, req.Requester.UserID, "solicitud rechazada", req)
	return req, nil
}

// applyTransition carga, valida rol y estado, aplica la transición y guarda,
// todo bajo el lock de la solicitud.
func (o *Orchestrator) applyTransition(ctx context.Context, requestID, action string, actor entity.Actor, comment string) (*entity.Request, error) {
	o.locks.Lock(requestID)
	defer o.locks.Unlock(requestID)

	req, err := o.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	next, err := o.gate(req, action, actor)
	if err != nil {
		return nil, err
	}
	o.record(req, action, next.To, actor, comment)
	if err := o.requests.Save(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// gate chequeo único de legalidad: primero el par (estado, acción), luego el rol.
func (o *Orchestrator) gate(req *entity.Request, action string, actor entity.Actor) (graph.Transition, error) {
	next, err := graph.Next(req.Family, req.Status, action)
	if err != nil {
		return graph.Transition{}, err
	}
	if !graph.CanTransition(actor.Role, req.Family, req.Status, action) {
		return graph.Transition{}, fmt.Errorf("rol %s no puede %s desde %s: %w", actor.Role, action, req.Status, domain.ErrIllegalTransition)
	}
	return next, nil
}

// record agrega exactamente un registro al trail y avanza el estado.
func (o *Orchestrator) record(req *entity.Request, action, to string, actor entity.Actor, comment string) {
	req.Workflow = append(req.Workflow, entity.WorkflowRecord{
		Actor:     actor,
		Action:    action,
		From:      req.Status,
		To:        to,
		Comment:   comment,
		Timestamp: time.Now(),
	})
	req.Status = to
	req.Version++
}

// notify entrega best-effort; jamás revierte la transición que lo disparó.
func (o *Orchestrator) notify(ctx context.Context, target, message string, req *entity.Request) {
	if o.notifier == nil {
		return
	}
	o.notifier.Notify(ctx, target, message, map[string]any{
		"requestId": req.ID,
		"family":    req.Family,
		"status":    req.Status,
	})
}

func approverFor(family string) string {
	switch family {
	case entity.FamilyProduction:
		return entity.RoleWarehouse
	default:
		return entity.RoleHeadOfOperations
	}
}
