// Package treerepo implementa los puertos de repositorio sobre el TreeStore.
// Cada entidad es un subárbol keyed por id generado.
package treerepo

// Prefijos del árbol de persistencia.
const (
	pathMaterials    = "materials"
	pathMovements    = "movements"     // movements/<materialId>/<movementId>
	pathMovementKeys = "movement_keys" // movement_keys/<materialId>/<idempotencyKey> -> movementId
	pathRequests     = "requests"
	pathDispatches   = "dispatches"
	pathLocations    = "locations"
	pathEntries      = "entries" // existencias de producto terminado
)
