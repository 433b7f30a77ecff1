package repository

import (
	"context"

	"github.com/abasto/abasto-api/internal/domain/entity"
)

// RequestRepository puerto de solicitudes. Las mutaciones llegan solo desde el
// orquestador, ya serializadas por requestId.
type RequestRepository interface {
	Create(ctx context.Context, r *entity.Request) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Request, error)
	List(ctx context.Context, family string) ([]*entity.Request, error)
	Save(ctx context.Context, r *entity.Request) error
}

// DispatchRepository puerto de despachos.
type DispatchRepository interface {
	Create(ctx context.Context, d *entity.Dispatch) (string, error)
	GetByID(ctx context.Context, id string) (*entity.Dispatch, error)
	ListByRequest(ctx context.Context, requestID string) ([]*entity.Dispatch, error)
	Save(ctx context.Context, d *entity.Dispatch) error
	// Delete retira un registro en vuelo que nunca asentó movimientos.
	Delete(ctx context.Context, id string) error
}

// LocationRepository puerto de ubicaciones y existencias de producto terminado.
type LocationRepository interface {
	GetLocation(ctx context.Context, name string) (*entity.Location, error)
	PutLocation(ctx context.Context, loc *entity.Location) error
	CreateEntry(ctx context.Context, e *entity.LocationEntry) (string, error)
	GetEntry(ctx context.Context, id string) (*entity.LocationEntry, error)
	ListEntries(ctx context.Context) ([]*entity.LocationEntry, error)
	ListEntriesByLocation(ctx context.Context, location string) ([]*entity.LocationEntry, error)
	SaveEntry(ctx context.Context, e *entity.LocationEntry) error
	DeleteEntry(ctx context.Context, id string) error
}
