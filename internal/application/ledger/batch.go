package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
)

// ShortageLine faltante de una línea frente al balance actual.
type ShortageLine struct {
	MaterialID string          `json:"materialId"`
	Requested  decimal.Decimal `json:"requested"`
	Available  decimal.Decimal `json:"available"`
	Shortfall  decimal.Decimal `json:"shortfall"`
}

// PostBatch asienta varios movimientos con semántica todo-o-nada: si
// requireStock es true y cualquier salida excede el balance, no se asienta
// ningún movimiento y se devuelven las líneas en faltante. Toma los locks de
// todos los materiales involucrados en orden estable (sin deadlocks) para que
// la verificación y los asientos sean una sola sección atómica.
//
// Reaplicar el lote es inocuo: las líneas cuya clave de idempotencia ya está
// asentada se recuperan del historial (Reapplied) y solo se asientan las
// faltantes. Así un reintento tras fallo parcial completa el lote en lugar de
// duplicarlo o rechazarlo.
func (l *Ledger) PostBatch(ctx context.Context, inputs []PostInput, requireStock bool) ([]*PostResult, []ShortageLine, error) {
	if len(inputs) == 0 {
		return nil, nil, nil
	}
	for _, in := range inputs {
		if in.Direction != entity.DirectionIn && in.Direction != entity.DirectionOut {
			return nil, nil, fmt.Errorf("dirección %q: %w", in.Direction, domain.ErrInvalidQuantity)
		}
		if !in.Quantity.GreaterThan(decimal.Zero) {
			return nil, nil, fmt.Errorf("cantidad %s: %w", in.Quantity, domain.ErrInvalidQuantity)
		}
	}

	ids := uniqueSorted(inputs)
	for _, id := range ids {
		l.locks.Lock(id)
	}
	defer func() {
		for i := len(ids) - 1; i >= 0; i-- {
			l.locks.Unlock(ids[i])
		}
	}()

	// Cargar balances actuales bajo lock.
	balances := make(map[string]decimal.Decimal, len(ids))
	for _, id := range ids {
		material, err := l.materials.GetByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("material %s: %w", id, err)
		}
		balances[id] = material.Balance
	}

	// Recuperar primero lo ya asentado: un reintento no vuelve a asentar esas
	// líneas ni las cuenta contra el balance (el balance actual ya las incluye).
	applied := make(map[int]*PostResult)
	for i, in := range inputs {
		if in.IdempotencyKey == "" {
			continue
		}
		prev, err := l.movements.FindByIdempotencyKey(ctx, in.MaterialID, in.IdempotencyKey)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("verificar idempotencia: %w", err)
		}
		if prev != nil {
			applied[i] = recoveredResult(prev)
		}
	}

	// Verificación de disponibilidad sobre el lote completo (varias líneas
	// pueden consumir el mismo material).
	if requireStock {
		var shortages []ShortageLine
		needed := make(map[string]decimal.Decimal)
		for i, in := range inputs {
			if applied[i] != nil {
				continue
			}
			if in.Direction == entity.DirectionOut {
				needed[in.MaterialID] = needed[in.MaterialID].Add(in.Quantity)
			}
		}
		for _, id := range ids {
			req, ok := needed[id]
			if !ok {
				continue
			}
			if balances[id].LessThan(req) {
				shortages = append(shortages, ShortageLine{
					MaterialID: id,
					Requested:  req,
					Available:  balances[id],
					Shortfall:  req.Sub(balances[id]),
				})
			}
		}
		if len(shortages) > 0 {
			sort.Slice(shortages, func(i, j int) bool { return shortages[i].MaterialID < shortages[j].MaterialID })
			return nil, shortages, nil
		}
	}

	// Asentar línea por línea encadenando el balance corrido por material.
	now := time.Now()
	results := make([]*PostResult, 0, len(inputs))
	for i, in := range inputs {
		if res, ok := applied[i]; ok {
			results = append(results, res)
			continue
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
			Timestamp:      now,
		}
		before := balances[in.MaterialID]
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
			return nil, nil, fmt.Errorf("asentar movimiento: %w", err)
		}
		if err := l.materials.UpdateBalance(ctx, in.MaterialID, balance); err != nil {
			return nil, nil, fmt.Errorf("actualizar balance de %s: %w", in.MaterialID, err)
		}
		balances[in.MaterialID] = balance

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
		results = append(results, res)
	}
	return results, nil, nil
}

// recoveredResult reconstruye el resultado de un asiento previo a partir de
// los balances capturados en el movimiento.
func recoveredResult(prev *entity.StockMovement) *PostResult {
	res := &PostResult{
		MovementID: prev.ID,
		Balance:    prev.BalanceAfter,
		Before:     prev.BalanceBefore,
		Reapplied:  true,
	}
	if raw := prev.BalanceBefore.Add(prev.Signed()); raw.IsNegative() {
		res.Clamped = true
		res.Overdraw = raw.Neg()
	}
	return res
}

func uniqueSorted(inputs []PostInput) []string {
	seen := make(map[string]bool, len(inputs))
	var ids []string
	for _, in := range inputs {
		if !seen[in.MaterialID] {
			seen[in.MaterialID] = true
			ids = append(ids, in.MaterialID)
		}
	}
	sort.Strings(ids)
	return ids
}
