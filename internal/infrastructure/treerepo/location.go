package treerepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// LocationRepository ubicaciones declaradas y existencias de producto terminado.
type LocationRepository struct {
	store repository.TreeStore
}

var _ repository.LocationRepository = (*LocationRepository)(nil)

// NewLocationRepository construye el repositorio.
func NewLocationRepository(store repository.TreeStore) *LocationRepository {
	return &LocationRepository{store: store}
}

// GetLocation lee una ubicación declarada. ErrNotFound si no está declarada
// (una ubicación sin declarar no tiene capacidad límite).
func (r *LocationRepository) GetLocation(ctx context.Context, name string) (*entity.Location, error) {
	var loc entity.Location
	if err := r.store.Read(ctx, pathLocations+"/"+name, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// PutLocation declara o actualiza una ubicación.
func (r *LocationRepository) PutLocation(ctx context.Context, loc *entity.Location) error {
	return r.store.Write(ctx, pathLocations+"/"+loc.Name, loc)
}

// CreateEntry agrega una existencia y devuelve su id.
func (r *LocationRepository) CreateEntry(ctx context.Context, e *entity.LocationEntry) (string, error) {
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	id, err := r.store.Append(ctx, pathEntries, e)
	if err != nil {
		return "", fmt.Errorf("crear existencia: %w", err)
	}
	e.ID = id
	if err := r.store.Update(ctx, pathEntries+"/"+id, map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("crear existencia: %w", err)
	}
	return id, nil
}

// GetEntry lee una existencia.
func (r *LocationRepository) GetEntry(ctx context.Context, id string) (*entity.LocationEntry, error) {
	var e entity.LocationEntry
	if err := r.store.Read(ctx, pathEntries+"/"+id, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *LocationRepository) entries(ctx context.Context) ([]*entity.LocationEntry, error) {
	var tree map[string]*entity.LocationEntry
	if err := r.store.Read(ctx, pathEntries, &tree); err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*entity.LocationEntry, 0, len(tree))
	for id, e := range tree {
		e.ID = id
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListEntries todas las existencias.
func (r *LocationRepository) ListEntries(ctx context.Context) ([]*entity.LocationEntry, error) {
	return r.entries(ctx)
}

// ListEntriesByLocation existencias de una ubicación.
func (r *LocationRepository) ListEntriesByLocation(ctx context.Context, location string) ([]*entity.LocationEntry, error) {
	all, err := r.entries(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if e.Location == location {
			out = append(out, e)
		}
	}
	return out, nil
}

// SaveEntry reescribe una existencia.
func (r *LocationRepository) SaveEntry(ctx context.Context, e *entity.LocationEntry) error {
	e.UpdatedAt = time.Now()
	return r.store.Write(ctx, pathEntries+"/"+e.ID, e)
}

// DeleteEntry elimina una existencia (solo el split la usa, tras conservación verificada).
func (r *LocationRepository) DeleteEntry(ctx context.Context, id string) error {
	return r.store.Delete(ctx, pathEntries+"/"+id)
}
