package repository

import (
	"context"
	"time"

	"github.com/abasto/abasto-api/internal/domain/entity"
)

// MovementFilter filtros de consulta del ledger.
type MovementFilter struct {
	Direction string // "" = ambas
	Since     time.Time
	Until     time.Time
}

// MovementRepository puerto del log append-only de movimientos.
// No hay Update ni Delete: las correcciones son asientos compensatorios.
type MovementRepository interface {
	Append(ctx context.Context, mov *entity.StockMovement) (string, error)
	// ListPage devuelve una página ordenada por timestamp descendente.
	// offset/limit permiten un iterador perezoso y reiniciable por encima.
	ListPage(ctx context.Context, materialID string, f MovementFilter, offset, limit int) ([]*entity.StockMovement, error)
	// ListAll devuelve el historial completo del material (para rescan/rebuild).
	ListAll(ctx context.Context, materialID string) ([]*entity.StockMovement, error)
	// FindByIdempotencyKey detecta reaplicaciones de un movimiento ya asentado.
	FindByIdempotencyKey(ctx context.Context, materialID, key string) (*entity.StockMovement, error)
}
