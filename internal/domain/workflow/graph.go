// Package workflow define los grafos de transición de las tres familias de
// solicitud como tablas declarativas. Toda validación de legalidad (estado y rol)
// pasa por aquí; ningún caller reimplementa el chequeo por su cuenta.
package workflow

import (
	"fmt"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/entity"
)

// Transition arista del grafo: estado destino y rol que puede ejecutarla.
type Transition struct {
	To   string
	Role string
}

type key struct {
	family string
	from   string
	action string
}

// Tabla exhaustiva de transiciones. Un par (estado, acción) sin entrada es ilegal.
var table = map[key]Transition{
	// Estándar: HO decide primero, MD decide al final.
	{entity.FamilyStandard, entity.StatusPendingHO, entity.ActionForward}:    {entity.StatusForwardedToMD, entity.RoleHeadOfOperations},
	{entity.FamilyStandard, entity.StatusPendingHO, entity.ActionReject}:     {entity.StatusHORejected, entity.RoleHeadOfOperations},
	{entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionApprove}: {entity.StatusMDApproved, entity.RoleMainDirector},
	{entity.FamilyStandard, entity.StatusForwardedToMD, entity.ActionReject}:  {entity.StatusMDRejected, entity.RoleMainDirector},

	// Producción: bodega despacha; tras faltante el reintento es explícito.
	{entity.FamilyProduction, entity.StatusPendingWarehouse, entity.ActionDispatch}: {entity.StatusDispatched, entity.RoleWarehouse},
	{entity.FamilyProduction, entity.StatusStockShortage, entity.ActionDispatch}:    {entity.StatusDispatched, entity.RoleWarehouse},
	{entity.FamilyProduction, entity.StatusDispatched, entity.ActionAcknowledge}:    {entity.StatusReceived, entity.RoleProduction},

	// Ventas/distribuidor: admite despachos parciales sucesivos desde approved.
	{entity.FamilySales, entity.StatusPending, entity.ActionApprove}:   {entity.StatusApproved, entity.RoleHeadOfOperations},
	{entity.FamilySales, entity.StatusPending, entity.ActionReject}:    {entity.StatusRejected, entity.RoleHeadOfOperations},
	{entity.FamilySales, entity.StatusApproved, entity.ActionDispatch}: {entity.StatusDispatched, entity.RoleWarehouse},
}

// Estados iniciales por familia (resultado de ActionSubmit) y rol que puede crear.
var initial = map[string]Transition{
	entity.FamilyStandard:   {entity.StatusPendingHO, entity.RoleWarehouse},
	entity.FamilyProduction: {entity.StatusPendingWarehouse, entity.RoleProduction},
	entity.FamilySales:      {entity.StatusPending, entity.RoleSales},
}

var terminal = map[string]map[string]bool{
	entity.FamilyStandard: {
		entity.StatusHORejected: true,
		entity.StatusMDApproved: true,
		entity.StatusMDRejected: true,
	},
	entity.FamilyProduction: {
		entity.StatusReceived: true,
	},
	entity.FamilySales: {
		entity.StatusRejected:   true,
		entity.StatusDispatched: true,
	},
}

// Initial devuelve el estado inicial de la familia y el rol autorizado a crear la solicitud.
func Initial(family string) (Transition, error) {
	t, ok := initial[family]
	if !ok {
		return Transition{}, fmt.Errorf("familia %q: %w", family, domain.ErrIllegalTransition)
	}
	return t, nil
}

// Next devuelve la transición declarada para (familia, estado, acción).
// Un par no mapeado se rechaza como ErrIllegalTransition y no se reintenta.
func Next(family, from, action string) (Transition, error) {
	t, ok := table[key{family, from, action}]
	if !ok {
		return Transition{}, fmt.Errorf("%s: %s desde %s: %w", family, action, from, domain.ErrIllegalTransition)
	}
	return t, nil
}

// CanTransition chequeo de capacidad: ¿puede este rol ejecutar la acción desde
// este estado? Consultado una sola vez por transición, dentro del orquestador.
func CanTransition(role, family, from, action string) bool {
	t, ok := table[key{family, from, action}]
	return ok && t.Role == role
}

// IsTerminal indica si el estado es terminal para la familia.
func IsTerminal(family, status string) bool {
	return terminal[family][status]
}

// ShortageTarget estado al que cae una solicitud cuando el despacho reporta
// faltante. Solo producción lo usa: es un estado no terminal, se reintenta
// con otra llamada a dispatch tras reposición.
func ShortageTarget(family string) (string, bool) {
	if family == entity.FamilyProduction {
		return entity.StatusStockShortage, true
	}
	return "", false
}

// edges incluye las aristas de la tabla más las derivadas del faltante,
// para validar trails de auditoría ya registrados.
func edges(family string) map[[2]string]bool {
	e := make(map[[2]string]bool)
	for k, t := range table {
		if k.family == family {
			e[[2]string{k.from, t.To}] = true
		}
	}
	if target, ok := ShortageTarget(family); ok {
		// El intento de despacho puede terminar en faltante desde cualquier
		// estado que permita despachar.
		for k := range table {
			if k.family == family && k.action == entity.ActionDispatch {
				e[[2]string{k.from, target}] = true
			}
		}
	}
	return e
}

// ValidatePath verifica que una secuencia de estados registrada en un trail sea
// un camino válido del grafo de la familia, empezando en su estado inicial.
func ValidatePath(family string, path []string) error {
	init, err := Initial(family)
	if err != nil {
		return err
	}
	if len(path) == 0 {
		return nil
	}
	if path[0] != init.To {
		return fmt.Errorf("%s: el trail empieza en %q, no en %q: %w", family, path[0], init.To, domain.ErrIllegalTransition)
	}
	valid := edges(family)
	for i := 1; i < len(path); i++ {
		if !valid[[2]string{path[i-1], path[i]}] {
			return fmt.Errorf("%s: arista %s -> %s: %w", family, path[i-1], path[i], domain.ErrIllegalTransition)
		}
	}
	return nil
}
