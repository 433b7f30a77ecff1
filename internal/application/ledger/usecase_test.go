package ledger_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/internal/infrastructure/memstore"
	"github.com/abasto/abasto-api/internal/infrastructure/treerepo"
	"github.com/abasto/abasto-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

var bodeguero = entity.Actor{UserID: "u-1", DisplayName: "Bodeguero", Role: entity.RoleWarehouse}

type ledgerFixture struct {
	ledger    *ledger.Ledger
	materials repository.MaterialRepository
	movements repository.MovementRepository
}

func newFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memstore.New()
	materials := treerepo.NewMaterialRepository(store)
	movements := treerepo.NewMovementRepository(store)
	return &ledgerFixture{
		ledger:    ledger.NewLedger(materials, movements, logger.Nop()),
		materials: materials,
		movements: movements,
	}
}

// newMaterial da de alta un material con balance cero y devuelve su id.
func (f *ledgerFixture) newMaterial(t *testing.T, code string) string {
	t.Helper()
	id, err := f.materials.Create(context.Background(), &entity.Material{
		Code: code, Name: "Material " + code, Unit: "kg", Status: entity.MaterialActive,
	})
	require.NoError(t, err)
	return id
}

func (f *ledgerFixture) post(t *testing.T, materialID, direction string, qty int64) *ledger.PostResult {
	t.Helper()
	res, err := f.ledger.PostMovement(context.Background(), ledger.PostInput{
		MaterialID: materialID,
		Direction:  direction,
		Quantity:   decimal.NewFromInt(qty),
		Reason:     "test",
		Actor:      bodeguero,
	})
	require.NoError(t, err)
	return res
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// ──────────────────────────────────────────────────────────────────────────────
// Validación de entradas
// ──────────────────────────────────────────────────────────────────────────────

func TestPostMovement_CantidadInvalida(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()

	for _, qty := range []decimal.Decimal{decimal.Zero, dec(-5)} {
		_, err := f.ledger.PostMovement(ctx, ledger.PostInput{
			MaterialID: id, Direction: entity.DirectionIn, Quantity: qty, Actor: bodeguero,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "cantidad %s debe rechazarse", qty)
	}

	// Nada quedó asentado
	history, err := f.movements.ListAll(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPostMovement_DireccionInvalida(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")

	_, err := f.ledger.PostMovement(context.Background(), ledger.PostInput{
		MaterialID: id, Direction: "sideways", Quantity: dec(1), Actor: bodeguero,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestPostMovement_MaterialInexistente(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.PostMovement(context.Background(), ledger.PostInput{
		MaterialID: "no-such", Direction: entity.DirectionIn, Quantity: dec(1), Actor: bodeguero,
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Postings y proyección del balance
// ──────────────────────────────────────────────────────────────────────────────

func TestPostMovement_EntradaYSalida(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")

	res := f.post(t, id, entity.DirectionIn, 100)
	assert.NotEmpty(t, res.MovementID)
	assert.True(t, res.Before.IsZero())
	assert.True(t, res.Balance.Equal(dec(100)))
	assert.False(t, res.Clamped)

	res = f.post(t, id, entity.DirectionOut, 30)
	assert.True(t, res.Before.Equal(dec(100)))
	assert.True(t, res.Balance.Equal(dec(70)))

	balance, err := f.ledger.GetBalance(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(70)))
}

func TestPostMovement_SobregiroRecortadoYObservable(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	f.post(t, id, entity.DirectionIn, 10)

	// Salida mayor al balance: el asiento entra igual (comportamiento histórico)
	// pero la anomalía queda visible en el resultado.
	res := f.post(t, id, entity.DirectionOut, 25)
	assert.True(t, res.Balance.IsZero(), "el balance se recorta a cero, nunca negativo")
	assert.True(t, res.Clamped)
	assert.True(t, res.Overdraw.Equal(dec(15)), "magnitud del sobregiro: 25-10")

	// El movimiento sí quedó en el historial
	history, err := f.movements.ListAll(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

// ──────────────────────────────────────────────────────────────────────────────
// Idempotencia
// ──────────────────────────────────────────────────────────────────────────────

func TestPostMovement_ClaveDuplicada(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()

	in := ledger.PostInput{
		MaterialID:     id,
		Direction:      entity.DirectionIn,
		Quantity:       dec(50),
		IdempotencyKey: "d-1:in:0",
		Actor:          bodeguero,
	}
	_, err := f.ledger.PostMovement(ctx, in)
	require.NoError(t, err)

	// Reaplicar con la misma clave no asienta nada
	_, err = f.ledger.PostMovement(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	balance, err := f.ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(50)), "el balance refleja un solo asiento")

	history, err := f.movements.ListAll(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

// ──────────────────────────────────────────────────────────────────────────────
// Rebuild: el rescan reproduce el valor incremental
// ──────────────────────────────────────────────────────────────────────────────

func TestRebuild_ReproduceElBalanceIncremental(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()

	// Secuencia con sobregiro intermedio: in 10, out 25 (recorta a 0), in 5.
	// Los asientos se separan en el tiempo para fijar el orden cronológico.
	steps := []struct {
		dir string
		qty int64
	}{
		{entity.DirectionIn, 10},
		{entity.DirectionOut, 25},
		{entity.DirectionIn, 5},
		{entity.DirectionOut, 2},
	}
	var incremental decimal.Decimal
	for _, s := range steps {
		res := f.post(t, id, s.dir, s.qty)
		incremental = res.Balance
		time.Sleep(2 * time.Millisecond)
	}
	assert.True(t, incremental.Equal(dec(3)), "0 -> 10 -> 0(recorte) -> 5 -> 3")

	rebuilt, err := f.ledger.Rebuild(ctx, id)
	require.NoError(t, err)
	assert.True(t, rebuilt.Equal(incremental), "rebuild %s vs incremental %s", rebuilt, incremental)

	balance, err := f.ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(incremental))
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia: un escritor por material
// ──────────────────────────────────────────────────────────────────────────────

func TestPostMovement_ConcurrenciaMismoMaterial(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()
	f.post(t, id, entity.DirectionIn, 100)

	// 100 salidas de 1 en paralelo: todas serializadas, ninguna pisa a otra.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.PostMovement(ctx, ledger.PostInput{
				MaterialID: id, Direction: entity.DirectionOut, Quantity: dec(1), Actor: bodeguero,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	balance, err := f.ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "100 - 100*1 = 0, sin updates perdidos (balance: %s)", balance)

	history, err := f.movements.ListAll(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 101)
}

// ──────────────────────────────────────────────────────────────────────────────
// PostBatch: todo o nada
// ──────────────────────────────────────────────────────────────────────────────

func TestPostBatch_FaltanteAgregadoPorMaterial(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()
	f.post(t, id, entity.DirectionIn, 50)

	// Dos líneas del mismo material que en conjunto exceden el balance.
	inputs := []ledger.PostInput{
		{MaterialID: id, Direction: entity.DirectionOut, Quantity: dec(30), Actor: bodeguero},
		{MaterialID: id, Direction: entity.DirectionOut, Quantity: dec(30), Actor: bodeguero},
	}
	results, shortages, err := f.ledger.PostBatch(ctx, inputs, true)
	require.NoError(t, err)
	assert.Nil(t, results)
	require.Len(t, shortages, 1)
	assert.True(t, shortages[0].Requested.Equal(dec(60)), "la verificación suma las líneas")
	assert.True(t, shortages[0].Shortfall.Equal(dec(10)))

	// Nada asentado, balance intacto
	balance, err := f.ledger.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(50)))

	history, err := f.movements.ListAll(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1, "solo la entrada inicial")
}

func TestPostBatch_ExitoEncadenaBalances(t *testing.T) {
	f := newFixture(t)
	a := f.newMaterial(t, "MAT-A")
	b := f.newMaterial(t, "MAT-B")
	ctx := context.Background()
	f.post(t, a, entity.DirectionIn, 100)
	f.post(t, b, entity.DirectionIn, 40)

	inputs := []ledger.PostInput{
		{MaterialID: a, Direction: entity.DirectionOut, Quantity: dec(30), Actor: bodeguero},
		{MaterialID: b, Direction: entity.DirectionOut, Quantity: dec(40), Actor: bodeguero},
		{MaterialID: a, Direction: entity.DirectionOut, Quantity: dec(20), Actor: bodeguero},
	}
	results, shortages, err := f.ledger.PostBatch(ctx, inputs, true)
	require.NoError(t, err)
	require.Nil(t, shortages)
	require.Len(t, results, 3)

	assert.True(t, results[0].Balance.Equal(dec(70)))
	assert.True(t, results[1].Balance.Equal(dec(0)))
	assert.True(t, results[2].Before.Equal(dec(70)), "la segunda línea del mismo material ve el balance corrido")
	assert.True(t, results[2].Balance.Equal(dec(50)))
}

func TestPostBatch_ReaplicarNoAsientaNada(t *testing.T) {
	f := newFixture(t)
	a := f.newMaterial(t, "MAT-A")
	b := f.newMaterial(t, "MAT-B")
	ctx := context.Background()
	f.post(t, a, entity.DirectionIn, 100)
	f.post(t, b, entity.DirectionIn, 100)

	inputs := []ledger.PostInput{
		{MaterialID: a, Direction: entity.DirectionOut, Quantity: dec(10), IdempotencyKey: "d-9:out:0", Actor: bodeguero},
		{MaterialID: b, Direction: entity.DirectionOut, Quantity: dec(10), IdempotencyKey: "d-9:out:1", Actor: bodeguero},
	}
	first, _, err := f.ledger.PostBatch(ctx, inputs, true)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Reaplicar el lote completo recupera los asientos previos en vez de
	// duplicarlos: mismos movimientos, mismos balances, nada nuevo.
	again, shortages, err := f.ledger.PostBatch(ctx, inputs, true)
	require.NoError(t, err)
	require.Nil(t, shortages)
	require.Len(t, again, 2)
	for i := range again {
		assert.True(t, again[i].Reapplied)
		assert.Equal(t, first[i].MovementID, again[i].MovementID)
		assert.True(t, again[i].Balance.Equal(first[i].Balance))
		assert.True(t, again[i].Before.Equal(first[i].Before))
	}

	balanceA, err := f.ledger.GetBalance(ctx, a)
	require.NoError(t, err)
	assert.True(t, balanceA.Equal(dec(90)), "un solo asiento por línea")
	balanceB, err := f.ledger.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.True(t, balanceB.Equal(dec(90)))

	historyA, err := f.movements.ListAll(ctx, a)
	require.NoError(t, err)
	assert.Len(t, historyA, 2, "inicial + salida, sin repeticiones")
}

func TestPostBatch_ReaplicarCompletaLasLineasFaltantes(t *testing.T) {
	f := newFixture(t)
	a := f.newMaterial(t, "MAT-A")
	b := f.newMaterial(t, "MAT-B")
	ctx := context.Background()
	f.post(t, a, entity.DirectionIn, 100)
	f.post(t, b, entity.DirectionIn, 100)

	// Primera línea asentada por un intento anterior que murió a mitad del lote.
	_, _, err := f.ledger.PostBatch(ctx, []ledger.PostInput{
		{MaterialID: a, Direction: entity.DirectionOut, Quantity: dec(10), IdempotencyKey: "d-7:out:0", Actor: bodeguero},
	}, true)
	require.NoError(t, err)

	results, shortages, err := f.ledger.PostBatch(ctx, []ledger.PostInput{
		{MaterialID: a, Direction: entity.DirectionOut, Quantity: dec(10), IdempotencyKey: "d-7:out:0", Actor: bodeguero},
		{MaterialID: b, Direction: entity.DirectionOut, Quantity: dec(10), IdempotencyKey: "d-7:out:1", Actor: bodeguero},
	}, true)
	require.NoError(t, err)
	require.Nil(t, shortages)
	require.Len(t, results, 2)
	assert.True(t, results[0].Reapplied, "la línea ya asentada se recupera")
	assert.False(t, results[1].Reapplied, "la línea faltante sí entra")

	balanceA, err := f.ledger.GetBalance(ctx, a)
	require.NoError(t, err)
	assert.True(t, balanceA.Equal(dec(90)), "la línea recuperada no descuenta dos veces")
	balanceB, err := f.ledger.GetBalance(ctx, b)
	require.NoError(t, err)
	assert.True(t, balanceB.Equal(dec(90)))
}

// ──────────────────────────────────────────────────────────────────────────────
// Iterador del historial
// ──────────────────────────────────────────────────────────────────────────────

func TestIterator_RecorreYReinicia(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.post(t, id, entity.DirectionIn, 10)
		time.Sleep(2 * time.Millisecond)
	}
	f.post(t, id, entity.DirectionOut, 5)

	it := f.ledger.Movements(id, repository.MovementFilter{})
	var count int
	var first *entity.StockMovement
	for {
		mov, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		if first == nil {
			first = mov
		}
		count++
	}
	assert.Equal(t, 6, count)
	require.NotNil(t, first)
	assert.Equal(t, entity.DirectionOut, first.Direction, "más reciente primero")

	// La secuencia es finita: Next sigue devolviendo ok=false
	_, ok, err := it.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Reset vuelve al principio
	it.Reset()
	count = 0
	for {
		_, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 6, count, "tras Reset el recorrido es idéntico")
}

func TestIterator_FiltroPorDireccion(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()
	f.post(t, id, entity.DirectionIn, 10)
	f.post(t, id, entity.DirectionIn, 10)
	f.post(t, id, entity.DirectionOut, 5)

	it := f.ledger.Movements(id, repository.MovementFilter{Direction: entity.DirectionOut})
	var count int
	for {
		mov, ok, err := it.Next(ctx)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, entity.DirectionOut, mov.Direction)
		count++
	}
	assert.Equal(t, 1, count)
}

func TestListMovements_Pagina(t *testing.T) {
	f := newFixture(t)
	id := f.newMaterial(t, "MAT-1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.post(t, id, entity.DirectionIn, 10)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := f.ledger.ListMovements(ctx, id, repository.MovementFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 2, "offset y limit recortan sobre el historial filtrado")

	// Offset más allá del historial: página vacía, no error
	page, err = f.ledger.ListMovements(ctx, id, repository.MovementFilter{}, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = f.ledger.ListMovements(ctx, "no-such", repository.MovementFilter{}, 0, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
