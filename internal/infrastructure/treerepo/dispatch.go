package treerepo

import (
	"context"
	"fmt"
	"sort"

	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// DispatchRepository despachos bajo dispatches/<id>.
type DispatchRepository struct {
	store repository.TreeStore
}

var _ repository.DispatchRepository = (*DispatchRepository)(nil)

// NewDispatchRepository construye el repositorio.
func NewDispatchRepository(store repository.TreeStore) *DispatchRepository {
	return &DispatchRepository{store: store}
}

// Create agrega el despacho y devuelve su id generado.
func (r *DispatchRepository) Create(ctx context.Context, d *entity.Dispatch) (string, error) {
	id, err := r.store.Append(ctx, pathDispatches, d)
	if err != nil {
		return "", fmt.Errorf("crear despacho: %w", err)
	}
	d.ID = id
	if err := r.store.Update(ctx, pathDispatches+"/"+id, map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("crear despacho: %w", err)
	}
	return id, nil
}

// GetByID lee un despacho.
func (r *DispatchRepository) GetByID(ctx context.Context, id string) (*entity.Dispatch, error) {
	var d entity.Dispatch
	if err := r.store.Read(ctx, pathDispatches+"/"+id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByRequest despachos de una solicitud, en orden de creación.
func (r *DispatchRepository) ListByRequest(ctx context.Context, requestID string) ([]*entity.Dispatch, error) {
	var tree map[string]*entity.Dispatch
	if err := r.store.Read(ctx, pathDispatches, &tree); err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*entity.Dispatch, 0, len(tree))
	for id, d := range tree {
		if d.RequestID != requestID {
			continue
		}
		d.ID = id
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DispatchedAt.Before(out[j].DispatchedAt) })
	return out, nil
}

// Save reescribe el despacho.
func (r *DispatchRepository) Save(ctx context.Context, d *entity.Dispatch) error {
	return r.store.Write(ctx, pathDispatches+"/"+d.ID, d)
}

// Delete retira un despacho. Borrar uno inexistente no es error.
func (r *DispatchRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, pathDispatches+"/"+id)
}
