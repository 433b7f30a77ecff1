package workflow_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/workflow"
)

// ──────────────────────────────────────────────────────────────────────────────
// Estados iniciales y roles creadores
// ──────────────────────────────────────────────────────────────────────────────

func TestInitial_PorFamilia(t *testing.T) {
	cases := []struct {
		family string
		status string
		role   string
	}{
		{entity.FamilyStandard, entity.StatusPendingHO, entity.RoleWarehouse},
		{entity.FamilyProduction, entity.StatusPendingWarehouse, entity.RoleProduction},
		{entity.FamilySales, entity.StatusPending, entity.RoleSales},
	}
	for _, tc := range cases {
		init, err := workflow.Initial(tc.family)
		require.NoError(t, err, "familia %s debe tener estado inicial", tc.family)
		assert.Equal(t, tc.status, init.To)
		assert.Equal(t, tc.role, init.Role)
	}
}

func TestInitial_FamiliaDesconocida(t *testing.T) {
	_, err := workflow.Initial("returns")
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

// ──────────────────────────────────────────────────────────────────────────────
// Transiciones legales e ilegales
// ──────────────────────────────────────────────────────────────────────────────

func TestNext_TransicionesLegales(t *testing.T) {
	cases := []struct {
		family, from, action, to string
	}{
		{entity.FamilyStandard, entity.StatusPendingHO, entity.ActionForward, entity.StatusForwardedToMD},
		{entity.FamilyStandard, entity.StatusPendingHO, entity.ActionReject, entity.StatusHORejected},
		{entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionApprove, entity.StatusMDApproved},
		{entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionReject, entity.StatusMDRejected},
		{entity.FamilyProduction, entity.StatusPendingWarehouse, entity.ActionDispatch, entity.StatusDispatched},
		{entity.FamilyProduction, entity.StatusStockShortage, entity.ActionDispatch, entity.StatusDispatched},
		{entity.FamilyProduction, entity.StatusDispatched, entity.ActionAcknowledge, entity.StatusReceived},
		{entity.FamilySales, entity.StatusPending, entity.ActionApprove, entity.StatusApproved},
		{entity.FamilySales, entity.StatusPending, entity.ActionReject, entity.StatusRejected},
		{entity.FamilySales, entity.StatusApproved, entity.ActionDispatch, entity.StatusDispatched},
	}
	for _, tc := range cases {
		next, err := workflow.Next(tc.family, tc.from, tc.action)
		require.NoError(t, err, "%s: %s desde %s debe ser legal", tc.family, tc.action, tc.from)
		assert.Equal(t, tc.to, next.To)
	}
}

func TestNext_TransicionesIlegales(t *testing.T) {
	cases := []struct {
		family, from, action string
	}{
		// Aprobar sin remitir primero
		{entity.FamilyStandard, entity.StatusPendingHO, entity.ActionApprove},
		// Despachar una solicitud estándar (el despacho no pertenece a su grafo)
		{entity.FamilyStandard, entity.StatusMDApproved, entity.ActionDispatch},
		// Re-despachar desde terminal
		{entity.FamilyProduction, entity.StatusReceived, entity.ActionDispatch},
		{entity.FamilySales, entity.StatusDispatched, entity.ActionDispatch},
		// Acusar recibo de un estado no despachado
		{entity.FamilyProduction, entity.StatusPendingWarehouse, entity.ActionAcknowledge},
		// Acciones cruzadas entre familias
		{entity.FamilySales, entity.StatusApproved, entity.ActionForward},
	}
	for _, tc := range cases {
		_, err := workflow.Next(tc.family, tc.from, tc.action)
		assert.True(t, errors.Is(err, domain.ErrIllegalTransition),
			"%s: %s desde %s debe ser ilegal", tc.family, tc.action, tc.from)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Chequeo de rol por transición
// ──────────────────────────────────────────────────────────────────────────────

func TestCanTransition_RolCorrecto(t *testing.T) {
	assert.True(t, workflow.CanTransition(entity.RoleHeadOfOperations, entity.FamilyStandard, entity.StatusPendingHO, entity.ActionForward))
	assert.True(t, workflow.CanTransition(entity.RoleMainDirector, entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionApprove))
	assert.True(t, workflow.CanTransition(entity.RoleWarehouse, entity.FamilyProduction, entity.StatusPendingWarehouse, entity.ActionDispatch))
	assert.True(t, workflow.CanTransition(entity.RoleProduction, entity.FamilyProduction, entity.StatusDispatched, entity.ActionAcknowledge))
	assert.True(t, workflow.CanTransition(entity.RoleHeadOfOperations, entity.FamilySales, entity.StatusPending, entity.ActionApprove))
}

func TestCanTransition_RolIncorrecto(t *testing.T) {
	// MD no puede remitir (eso es de HO)
	assert.False(t, workflow.CanTransition(entity.RoleMainDirector, entity.FamilyStandard, entity.StatusPendingHO, entity.ActionForward))
	// HO no puede aprobar en nombre del MD
	assert.False(t, workflow.CanTransition(entity.RoleHeadOfOperations, entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionApprove))
	// Producción no despacha: eso es de bodega
	assert.False(t, workflow.CanTransition(entity.RoleProduction, entity.FamilyProduction, entity.StatusPendingWarehouse, entity.ActionDispatch))
	// Bodega no acusa recibo de producción
	assert.False(t, workflow.CanTransition(entity.RoleWarehouse, entity.FamilyProduction, entity.StatusDispatched, entity.ActionAcknowledge))
}

// ──────────────────────────────────────────────────────────────────────────────
// Estados terminales y faltante
// ──────────────────────────────────────────────────────────────────────────────

func TestIsTerminal(t *testing.T) {
	assert.True(t, workflow.IsTerminal(entity.FamilyStandard, entity.StatusMDApproved))
	assert.True(t, workflow.IsTerminal(entity.FamilyStandard, entity.StatusHORejected))
	assert.True(t, workflow.IsTerminal(entity.FamilyProduction, entity.StatusReceived))
	assert.True(t, workflow.IsTerminal(entity.FamilySales, entity.StatusDispatched))
	assert.True(t, workflow.IsTerminal(entity.FamilySales, entity.StatusRejected))

	// dispatched es terminal en ventas pero NO en producción (falta el acuse)
	assert.False(t, workflow.IsTerminal(entity.FamilyProduction, entity.StatusDispatched))
	assert.False(t, workflow.IsTerminal(entity.FamilyProduction, entity.StatusStockShortage))
	assert.False(t, workflow.IsTerminal(entity.FamilyStandard, entity.StatusForwardedToMD))
}

func TestShortageTarget_SoloProduccion(t *testing.T) {
	target, ok := workflow.ShortageTarget(entity.FamilyProduction)
	require.True(t, ok)
	assert.Equal(t, entity.StatusStockShortage, target)

	_, ok = workflow.ShortageTarget(entity.FamilyStandard)
	assert.False(t, ok, "estándar nunca toca stock, no tiene estado de faltante")
	_, ok = workflow.ShortageTarget(entity.FamilySales)
	assert.False(t, ok, "en ventas el faltante no mueve el estado")
}

// ──────────────────────────────────────────────────────────────────────────────
// Validación de trails
// ──────────────────────────────────────────────────────────────────────────────

func TestValidatePath_CaminosValidos(t *testing.T) {
	cases := []struct {
		family string
		path   []string
	}{
		{entity.FamilyStandard, []string{entity.StatusPendingHO, entity.StatusForwardedToMD, entity.StatusMDApproved}},
		{entity.FamilyStandard, []string{entity.StatusPendingHO, entity.StatusHORejected}},
		{entity.FamilyProduction, []string{entity.StatusPendingWarehouse, entity.StatusDispatched, entity.StatusReceived}},
		// Faltante y reintento tras reposición
		{entity.FamilyProduction, []string{entity.StatusPendingWarehouse, entity.StatusStockShortage, entity.StatusDispatched, entity.StatusReceived}},
		{entity.FamilySales, []string{entity.StatusPending, entity.StatusApproved, entity.StatusDispatched}},
		{entity.FamilySales, []string{entity.StatusPending}},
		{entity.FamilySales, nil},
	}
	for _, tc := range cases {
		assert.NoError(t, workflow.ValidatePath(tc.family, tc.path), "%s: %v", tc.family, tc.path)
	}
}

func TestValidatePath_CaminosInvalidos(t *testing.T) {
	// No empieza en el estado inicial de la familia
	err := workflow.ValidatePath(entity.FamilyStandard, []string{entity.StatusForwardedToMD, entity.StatusMDApproved})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	// Arista inexistente: aprobado directo sin remisión
	err = workflow.ValidatePath(entity.FamilyStandard, []string{entity.StatusPendingHO, entity.StatusMDApproved})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	// Retroceso desde terminal
	err = workflow.ValidatePath(entity.FamilyProduction, []string{entity.StatusPendingWarehouse, entity.StatusDispatched, entity.StatusReceived, entity.StatusDispatched})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}
