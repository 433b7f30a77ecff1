package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/abasto/abasto-api/internal/application/allocator"
	"github.com/abasto/abasto-api/internal/application/ledger"
	"github.com/abasto/abasto-api/internal/application/workflow"
	"github.com/abasto/abasto-api/internal/domain/entity"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Materials    repository.MaterialRepository
	Requests     repository.RequestRepository
	Locations    repository.LocationRepository
	Ledger       *ledger.Ledger
	Allocator    *allocator.Allocator
	Orchestrator *workflow.Orchestrator
	JWTSecret    string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Todas las rutas requieren Bearer Token
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Materials
	materials := protected.Group("/materials")
	materialHandler := NewMaterialHandler(deps.Materials, deps.Ledger, deps.Allocator)
	materials.Post("/", RequireRole(entity.RoleWarehouse, entity.RoleHeadOfOperations), materialHandler.Create)
	materials.Get("/", materialHandler.List)
	materials.Get("/:id", materialHandler.GetByID)
	materials.Get("/:id/balance", materialHandler.GetBalance)
	materials.Get("/:id/availability", materialHandler.CheckAvailability)
	materials.Post("/:id/rebuild", RequireRole(entity.RoleWarehouse), materialHandler.Rebuild)

	// Ledger
	ledgerGroup := protected.Group("/ledger")
	ledgerHandler := NewLedgerHandler(deps.Ledger)
	ledgerGroup.Post("/movements", RequireRole(entity.RoleWarehouse), ledgerHandler.PostMovement)
	ledgerGroup.Get("/movements/:materialId", ledgerHandler.ListMovements)

	// Requests (el orquestador valida el rol según familia y transición)
	requests := protected.Group("/requests")
	requestHandler := NewRequestHandler(deps.Orchestrator, deps.Requests)
	requests.Post("/", requestHandler.Submit)
	requests.Get("/", requestHandler.List)
	requests.Get("/:id", requestHandler.GetByID)
	requests.Post("/:id/forward", requestHandler.Forward)
	requests.Post("/:id/approve", requestHandler.Approve)
	requests.Post("/:id/reject", requestHandler.Reject)
	requests.Post("/:id/dispatch", requestHandler.Dispatch)
	requests.Post("/:id/acknowledge", requestHandler.Acknowledge)

	// Location entries
	entries := protected.Group("/entries")
	entryHandler := NewEntryHandler(deps.Orchestrator, deps.Locations)
	entries.Get("/", entryHandler.List)
	entries.Get("/:id", entryHandler.GetByID)
	entries.Post("/:id/split", RequireRole(entity.RoleWarehouse), entryHandler.Split)
	entries.Post("/:id/move", RequireRole(entity.RoleWarehouse), entryHandler.Move)

	// Locations
	locations := protected.Group("/locations")
	locations.Put("/", RequireRole(entity.RoleWarehouse, entity.RoleHeadOfOperations), entryHandler.PutLocation)
}
