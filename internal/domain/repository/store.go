package repository

import "context"

// ChangeEvent cambio notificado por el árbol de persistencia.
type ChangeEvent struct {
	Path  string
	Value []byte // JSON del valor escrito; nil en borrados
}

// TreeStore puerta al almacenamiento jerárquico clave-valor. Cada entidad vive
// como un subárbol bajo un prefijo, keyed por id generado. El contrato no ofrece
// transacciones multi-clave: la serialización por clave la aporta la capa de
// aplicación (un escritor por materialId / requestId).
type TreeStore interface {
	// Read decodifica el valor o subárbol en out. ErrNotFound si el path no existe.
	Read(ctx context.Context, path string, out any) error
	// Write escribe (reemplaza) el valor completo del path.
	Write(ctx context.Context, path string, value any) error
	// Update aplica campos parciales sobre el valor existente del path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Append crea un hijo con id generado bajo el prefijo y devuelve el id.
	Append(ctx context.Context, prefix string, value any) (string, error)
	// Delete elimina el path y su subárbol.
	Delete(ctx context.Context, path string) error
	// Subscribe registra un callback para cambios bajo el prefijo.
	// Entrega al menos cero veces (best-effort, post-commit); devuelve cancelación.
	Subscribe(prefix string, fn func(ChangeEvent)) (cancel func())
}
