package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/abasto/abasto-api/internal/domain/entity"
)

// MaterialRepository puerto de materiales. El balance cacheado solo lo escribe
// el ledger (UpdateBalance), nunca los callers directamente.
type MaterialRepository interface {
	Create(ctx context.Context, m *entity.Material) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Material, error)
	List(ctx context.Context) ([]*entity.Material, error)
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
}
