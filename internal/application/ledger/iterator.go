package ledger

import (
	"context"

	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// defaultPageSize tamaño de página del iterador de movimientos.
const defaultPageSize = 100

// Iterator recorrido perezoso, finito y reiniciable del historial de un
// material, ordenado por timestamp descendente. Cada página se pide al
// repositorio bajo demanda; Reset vuelve al principio.
type Iterator struct {
	movements  repository.MovementRepository
	materialID string
	filter     repository.MovementFilter
	pageSize   int

	offset int
	buf    []*entity.StockMovement
	pos    int
	done   bool
}

// Movements crea un iterador sobre el historial del material.
func (l *Ledger) Movements(materialID string, f repository.MovementFilter) *Iterator {
	return &Iterator{
		movements:  l.movements,
		materialID: materialID,
		filter:     f,
		pageSize:   defaultPageSize,
	}
}

// Next devuelve el siguiente movimiento. ok=false al agotar la secuencia.
func (it *Iterator) Next(ctx context.Context) (mov *entity.StockMovement, ok bool, err error) {
	if it.pos >= len(it.buf) {
		if it.done {
			return nil, false, nil
		}
		page, err := it.movements.ListPage(ctx, it.materialID, it.filter, it.offset, it.pageSize)
		if err != nil {
			return nil, false, err
		}
		if len(page) == 0 {
			it.done = true
			return nil, false, nil
		}
		it.offset += len(page)
		if len(page) < it.pageSize {
			it.done = true
		}
		it.buf = page
		it.pos = 0
	}
	mov = it.buf[it.pos]
	it.pos++
	return mov, true, nil
}

// Reset reinicia el recorrido desde el movimiento más reciente.
func (it *Iterator) Reset() {
	it.offset = 0
	it.buf = nil
	it.pos = 0
	it.done = false
}
