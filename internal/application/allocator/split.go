package allocator

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
)

// Allocation destino de una fracción de un split.
type Allocation struct {
	Location string
	Quantity decimal.Decimal
}

// Split divide una existencia en N hijas que conservan la cantidad total
// (tolerancia entity.SplitEpsilon). Si las cantidades no cuadran, falla sin
// mutar nada y la entrada padre queda intacta.
func (a *Allocator) Split(ctx context.Context, entryID string, allocations []Allocation, actor entity.Actor) ([]*entity.LocationEntry, error) {
	if len(allocations) == 0 {
		return nil, fmt.Errorf("split sin destinos: %w", domain.ErrQuantityMismatch)
	}

	a.entryLocks.Lock(entryID)
	defer a.entryLocks.Unlock(entryID)

	parent, err := a.locations.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, al := range allocations {
		if !al.Quantity.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("fracción %s: %w", al.Quantity, domain.ErrInvalidQuantity)
		}
		total = total.Add(al.Quantity)
	}
	if total.Sub(parent.Quantity).Abs().GreaterThan(entity.SplitEpsilon) {
		return nil, fmt.Errorf("suma %s contra padre %s: %w", total, parent.Quantity, domain.ErrQuantityMismatch)
	}

	children := make([]*entity.LocationEntry, 0, len(allocations))
	for i, al := range allocations {
		child := &entity.LocationEntry{
			ProductID:   parent.ProductID,
			BatchNumber: parent.BatchNumber,
			Location:    al.Location,
			Quantity:    al.Quantity,
			SplitFrom:   parent.ID,
			SplitIndex:  i + 1,
		}
		if _, err := a.locations.CreateEntry(ctx, child); err != nil {
			return nil, fmt.Errorf("crear fracción %d: %w", i+1, err)
		}
		children = append(children, child)
	}
	if err := a.locations.DeleteEntry(ctx, parent.ID); err != nil {
		return nil, fmt.Errorf("eliminar entrada padre: %w", err)
	}

	a.log.Info().
		Str("entry_id", parent.ID).
		Int("fractions", len(children)).
		Str("actor", actor.UserID).
		Msg("existencia dividida")
	return children, nil
}

// Move reubica una existencia en sitio. Si la ubicación destino declara
// capacidad y lo ya almacenado más esta entrada la excede, se rechaza.
func (a *Allocator) Move(ctx context.Context, entryID, newLocation string, actor entity.Actor) (*entity.LocationEntry, error) {
	a.entryLocks.Lock(entryID)
	defer a.entryLocks.Unlock(entryID)

	e, err := a.locations.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.Location == newLocation {
		return e, nil
	}

	loc, err := a.locations.GetLocation(ctx, newLocation)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if loc != nil && loc.Capacity.GreaterThan(decimal.Zero) {
		occupied := decimal.Zero
		existing, err := a.locations.ListEntriesByLocation(ctx, newLocation)
		if err != nil {
			return nil, err
		}
		for _, other := range existing {
			occupied = occupied.Add(other.Quantity)
		}
		if occupied.Add(e.Quantity).GreaterThan(loc.Capacity) {
			return nil, fmt.Errorf("ubicación %s (%s ocupado de %s): %w",
				newLocation, occupied, loc.Capacity, domain.ErrLocationFull)
		}
	}

	e.Location = newLocation
	if err := a.locations.SaveEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("reubicar existencia: %w", err)
	}
	return e, nil
}
