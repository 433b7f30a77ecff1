package repository

import "context"

// Notifier sumidero de notificaciones fire-and-forget. Un fallo de entrega
// nunca revierte la transición que lo disparó.
type Notifier interface {
	Notify(ctx context.Context, target, message string, payload map[string]any)
}

// EventPublisher publicación asíncrona de eventos de workflow ya confirmados
// (consumidores externos: preparación de compras, reporting).
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}
