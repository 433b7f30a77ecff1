package treerepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// RequestRepository solicitudes bajo requests/<id>.
type RequestRepository struct {
	store repository.TreeStore
}

var _ repository.RequestRepository = (*RequestRepository)(nil)

// NewRequestRepository construye el repositorio.
func NewRequestRepository(store repository.TreeStore) *RequestRepository {
	return &RequestRepository{store: store}
}

// Create agrega la solicitud y devuelve su id generado.
func (r *RequestRepository) Create(ctx context.Context, req *entity.Request) (string, error) {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	id, err := r.store.Append(ctx, pathRequests, req)
	if err != nil {
		return "", fmt.Errorf("crear solicitud: %w", err)
	}
	req.ID = id
	if err := r.store.Update(ctx, pathRequests+"/"+id, map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("crear solicitud: %w", err)
	}
	return id, nil
}

// GetByID lee una solicitud.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	var req entity.Request
	if err := r.store.Read(ctx, pathRequests+"/"+id, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// List devuelve solicitudes, opcionalmente filtradas por familia, más recientes primero.
func (r *RequestRepository) List(ctx context.Context, family string) ([]*entity.Request, error) {
	var tree map[string]*entity.Request
	if err := r.store.Read(ctx, pathRequests, &tree); err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*entity.Request, 0, len(tree))
	for id, req := range tree {
		if family != "" && req.Family != family {
			continue
		}
		req.ID = id
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Save reescribe la solicitud completa (trail incluido).
func (r *RequestRepository) Save(ctx context.Context, req *entity.Request) error {
	req.UpdatedAt = time.Now()
	return r.store.Write(ctx, pathRequests+"/"+req.ID, req)
}
