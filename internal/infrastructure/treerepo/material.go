package treerepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// MaterialRepository materiales bajo materials/<id>.
type MaterialRepository struct {
	store repository.TreeStore
}

var _ repository.MaterialRepository = (*MaterialRepository)(nil)

// NewMaterialRepository construye el repositorio.
func NewMaterialRepository(store repository.TreeStore) *MaterialRepository {
	return &MaterialRepository{store: store}
}

// Create agrega el material y devuelve su id generado.
func (r *MaterialRepository) Create(ctx context.Context, m *entity.Material) (string, error) {
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	id, err := r.store.Append(ctx, pathMaterials, m)
	if err != nil {
		return "", fmt.Errorf("crear material: %w", err)
	}
	m.ID = id
	// El id vive dentro del valor además de ser la clave del subárbol.
	if err := r.store.Update(ctx, pathMaterials+"/"+id, map[string]any{"id": id}); err != nil {
		return "", fmt.Errorf("crear material: %w", err)
	}
	return id, nil
}

// GetByID lee un material.
func (r *MaterialRepository) GetByID(ctx context.Context, id string) (*entity.Material, error) {
	var m entity.Material
	if err := r.store.Read(ctx, pathMaterials+"/"+id, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List devuelve todos los materiales ordenados por código.
func (r *MaterialRepository) List(ctx context.Context) ([]*entity.Material, error) {
	var tree map[string]*entity.Material
	if err := r.store.Read(ctx, pathMaterials, &tree); err != nil {
		if errorsIsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]*entity.Material, 0, len(tree))
	for id, m := range tree {
		m.ID = id
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// UpdateBalance escribe la proyección cacheada del balance. Solo el ledger llama aquí.
func (r *MaterialRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	return r.store.Update(ctx, pathMaterials+"/"+id, map[string]any{
		"balance":   balance,
		"updatedAt": time.Now(),
	})
}
