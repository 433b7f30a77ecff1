// Package ledger implementa el libro de movimientos de stock: un log
// append-only por material del que se deriva el balance. El balance cacheado
// en el material es una proyección; la fuente de verdad es el historial.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/internal/pkg/kmutex"
	"github.com/abasto/abasto-api/pkg/logger"
)

// Ledger caso de uso del libro de stock. La disciplina de concurrencia es un
// escritor por material: Lock(materialID) cubre la detección de duplicados,
// el asiento y la actualización del balance; materiales distintos no se bloquean
// entre sí.
type Ledger struct {
	materials repository.MaterialRepository
	movements repository.MovementRepository
	locks     *kmutex.KMutex
	log       *logger.Logger
}

// NewLedger construye el caso de uso.
func NewLedger(materials repository.MaterialRepository, movements repository.MovementRepository, log *logger.Logger) *Ledger {
	return &Ledger{
		materials: materials,
		movements: movements,
		locks:     kmutex.New(),
		log:       log,
	}
}

// PostInput entrada para asentar un movimiento.
type PostInput struct {
	MaterialID     string
	Direction      string // entity.DirectionIn | entity.DirectionOut
	Quantity       decimal.Decimal
	Location       string
	Reason         string
	RequestID      string
	DispatchID     string
	BatchNumber    string
	IdempotencyKey string // ej. dispatchId:itemIdx; vacío = sin detección de duplicados
	Actor          entity.Actor
}

// PostResult resultado de un asiento. Clamped expone la anomalía de sobregiro:
// el balance se recorta a cero (comportamiento histórico) pero el recorte queda
// observable en lugar de silencioso.
type PostResult struct {
	MovementID string
	Balance    decimal.Decimal
	Before     decimal.Decimal
	Clamped    bool
	Overdraw   decimal.Decimal // magnitud por debajo de cero antes del recorte
	Reapplied  bool            // la clave ya estaba asentada; nada nuevo entró al historial
}

// PostMovement valida, asienta el movimiento y recalcula el balance cacheado
// como max(0, balance ± cantidad), todo dentro de la sección de un solo
// escritor del material. Cantidad <= 0 se rechaza sin asentar nada.
func (l *Ledger) PostMovement(ctx context.Context, in PostInput) (*PostResult, error) {
	if in.Direction != entity.DirectionIn && in.Direction != entity.DirectionOut {
		return nil, fmt.Errorf("dirección %q: %w", in.Direction, domain.ErrInvalidQuantity)
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, fmt.Errorf("cantidad %s: %w", in.Quantity, domain.ErrInvalidQuantity)
	}

	l.locks.Lock(in.MaterialID)
	defer l.locks.Unlock(in.MaterialID)

	material, err := l.materials.GetByID(ctx, in.MaterialID)
	if err != nil {
		return nil, fmt.Errorf("material %s: %w", in.MaterialID, err)
	}

	if in.IdempotencyKey != "" {
		prev, err := l.movements.FindByIdempotencyKey(ctx, in.MaterialID, in.IdempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("verificar idempotencia: %w", err)
		}
		if prev != nil {
			return nil, fmt.Errorf("movimiento %s ya asentado con clave %s: %w", prev.ID, in.IdempotencyKey, domain.ErrDuplicate)
		}
	}

	mov := &entity.StockMovement{
		MaterialID:     in.MaterialID,
		Direction:      in.Direction,
		Quantity:       in.Quantity,
		Location:       in.Location,
		Reason:         in.Reason,
		RequestID:      in.RequestID,
		DispatchID:     in.DispatchID,
		BatchNumber:    in.BatchNumber,
		IdempotencyKey: in.IdempotencyKey,
		Actor:          in.Actor,
		Timestamp:      time.Now(),
	}

	before := material.Balance
	raw := before.Add(mov.Signed())
	balance := raw
	clamped := false
	if raw.IsNegative() {
		balance = decimal.Zero
		clamped = true
	}
	mov.BalanceBefore = before
	mov.BalanceAfter = balance

	movementID, err := l.movements.Append(ctx, mov)
	if err != nil {
		return nil, fmt.Errorf("asentar movimiento: %w", err)
	}
	if err := l.materials.UpdateBalance(ctx, in.MaterialID, balance); err != nil {
		// El movimiento quedó asentado pero la proyección no: Rebuild la repara.
		return nil, fmt.Errorf("actualizar balance de %s: %w", in.MaterialID, err)
	}

	if clamped {
		l.log.Warn().
			Str("material_id", in.MaterialID).
			Str("movement_id", movementID).
			Str("overdraw", raw.Neg().String()).
			Msg("balance negativo recortado a cero")
	}

	res := &PostResult{
		MovementID: movementID,
		Balance:    balance,
		Before:     before,
		Clamped:    clamped,
	}
	if clamped {
		res.Overdraw = raw.Neg()
	}
	return res, nil
}

// GetBalance devuelve la proyección cacheada. Puede estar ligeramente desfasada
// frente a un posting en curso, pero nunca es un valor a medias: el balance se
// escribe completo dentro de la sección del escritor único.
func (l *Ledger) GetBalance(ctx context.Context, materialID string) (decimal.Decimal, error) {
	material, err := l.materials.GetByID(ctx, materialID)
	if err != nil {
		return decimal.Zero, err
	}
	return material.Balance, nil
}

// ListMovements devuelve una página del historial, más reciente primero.
func (l *Ledger) ListMovements(ctx context.Context, materialID string, f repository.MovementFilter, offset, limit int) ([]*entity.StockMovement, error) {
	if _, err := l.materials.GetByID(ctx, materialID); err != nil {
		return nil, fmt.Errorf("material %s: %w", materialID, err)
	}
	return l.movements.ListPage(ctx, materialID, f, offset, limit)
}

// Rebuild recalcula el balance replicando el historial completo paso a paso,
// con el mismo recorte a cero por asiento que aplica PostMovement. Un rescan
// siempre reproduce el valor incremental (propiedad verificada en tests).
func (l *Ledger) Rebuild(ctx context.Context, materialID string) (decimal.Decimal, error) {
	l.locks.Lock(materialID)
	defer l.locks.Unlock(materialID)

	if _, err := l.materials.GetByID(ctx, materialID); err != nil {
		return decimal.Zero, err
	}
	history, err := l.movements.ListAll(ctx, materialID)
	if err != nil {
		return decimal.Zero, err
	}
	balance := replay(history)
	if err := l.materials.UpdateBalance(ctx, materialID, balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// replay reproduce la proyección desde el historial en orden cronológico.
func replay(history []*entity.StockMovement) decimal.Decimal {
	balance := decimal.Zero
	for _, m := range history {
		balance = balance.Add(m.Signed())
		if balance.IsNegative() {
			balance = decimal.Zero
		}
	}
	return balance
}
