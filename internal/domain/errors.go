package domain

import "errors"

// Errores de dominio (sin dependencias externas).
// Los handlers HTTP los traducen a códigos de estado; los casos de uso solo los envuelven con %w.
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidQuantity    = errors.New("cantidad inválida")
	ErrIllegalTransition  = errors.New("transición no permitida")
	ErrQuantityMismatch   = errors.New("las cantidades no cuadran")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrDuplicate          = errors.New("operación duplicada")
	ErrLocationFull       = errors.New("capacidad de ubicación excedida")
	ErrStorageUnavailable = errors.New("almacenamiento no disponible")
)
