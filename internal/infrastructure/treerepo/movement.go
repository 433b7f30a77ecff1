package treerepo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// MovementRepository log append-only bajo movements/<materialId>/<id>.
// El índice movement_keys/<materialId>/<clave> respalda la detección de duplicados.
type MovementRepository struct {
	store repository.TreeStore
}

var _ repository.MovementRepository = (*MovementRepository)(nil)

// NewMovementRepository construye el repositorio.
func NewMovementRepository(store repository.TreeStore) *MovementRepository {
	return &MovementRepository{store: store}
}

// Append asienta un movimiento. El caller (ledger) ya serializó por material.
func (r *MovementRepository) Append(ctx context.Context, mov *entity.StockMovement) (string, error) {
	prefix := pathMovements + "/" + mov.MaterialID
	id, err := r.store.Append(ctx, prefix, mov)
	if err != nil {
		return "", fmt.Errorf("asentar movimiento: %w", err)
	}
	mov.ID = id
	if err := r.store.Update(ctx, prefix+"/"+id, map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("asentar movimiento: %w", err)
	}
	if mov.IdempotencyKey != "" {
		keyPath := pathMovementKeys + "/" + mov.MaterialID + "/" + mov.IdempotencyKey
		if err := r.store.Write(ctx, keyPath, id); err != nil {
			return "", fmt.Errorf("indexar clave de idempotencia: %w", err)
		}
	}
	return id, nil
}

func (r *MovementRepository) history(ctx context.Context, materialID string) ([]*entity.StockMovement, error) {
	var tree map[string]*entity.StockMovement
	if err := r.store.Read(ctx, pathMovements+"/"+materialID, &tree); err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*entity.StockMovement, 0, len(tree))
	for id, m := range tree {
		m.ID = id
		out = append(out, m)
	}
	return out, nil
}

// ListPage página ordenada por timestamp descendente (desempate por id, estable).
func (r *MovementRepository) ListPage(ctx context.Context, materialID string, f repository.MovementFilter, offset, limit int) ([]*entity.StockMovement, error) {
	all, err := r.history(ctx, materialID)
	if err != nil {
		return nil, err
	}
	filtered := all[:0]
	for _, m := range all {
		if f.Direction != "" && m.Direction != f.Direction {
			continue
		}
		if !f.Since.IsZero() && m.Timestamp.Before(f.Since) {
			continue
		}
		if !f.Until.IsZero() && m.Timestamp.After(f.Until) {
			continue
		}
		filtered = append(filtered, m)
	}
	sort.Slice(filtered, func(i, j int) bool {
		if !filtered[i].Timestamp.Equal(filtered[j].Timestamp) {
			return filtered[i].Timestamp.After(filtered[j].Timestamp)
		}
		return filtered[i].ID > filtered[j].ID
	})
	if offset >= len(filtered) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end], nil
}

// ListAll historial completo del material, orden cronológico ascendente (para rebuild).
func (r *MovementRepository) ListAll(ctx context.Context, materialID string) ([]*entity.StockMovement, error) {
	all, err := r.history(ctx, materialID)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].Timestamp.Equal(all[j].Timestamp) {
			return all[i].Timestamp.Before(all[j].Timestamp)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// FindByIdempotencyKey devuelve el movimiento ya asentado con esa clave, o ErrNotFound.
func (r *MovementRepository) FindByIdempotencyKey(ctx context.Context, materialID, key string) (*entity.StockMovement, error) {
	var movementID string
	if err := r.store.Read(ctx, pathMovementKeys+"/"+materialID+"/"+key, &movementID); err != nil {
		return nil, err
	}
	var mov entity.StockMovement
	if err := r.store.Read(ctx, pathMovements+"/"+materialID+"/"+movementID, &mov); err != nil {
		return nil, err
	}
	mov.ID = movementID
	return &mov, nil
}

func errorsIsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
