// Package memstore implementa el TreeStore en memoria: un árbol jerárquico
// clave-valor con suscripciones. Es el backend por defecto y el doble de tests
// de todo el motor.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/repository"
)

// Store árbol en memoria. Todas las operaciones toman el lock del store, así
// una escritura individual nunca se observa a medias (sin lecturas rotas).
type Store struct {
	mu      sync.RWMutex
	root    map[string]any
	subs    map[int]subscription
	nextSub int
}

type subscription struct {
	prefix string
	fn     func(repository.ChangeEvent)
}

var _ repository.TreeStore = (*Store)(nil)

// New crea un store vacío.
func New() *Store {
	return &Store{
		root: make(map[string]any),
		subs: make(map[int]subscription),
	}
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// Read decodifica el valor o subárbol del path en out.
func (s *Store) Read(ctx context.Context, path string, out any) error {
	s.mu.RLock()
	node, ok := s.getNode(splitPath(path))
	var raw []byte
	var err error
	if ok {
		raw, err = json.Marshal(node)
	}
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return json.Unmarshal(raw, out)
}

// Write reemplaza el valor completo del path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	node, err := toTree(value)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.mu.Lock()
	s.setNode(splitPath(path), node)
	subs, raw := s.snapshot(path, node)
	s.mu.Unlock()

	s.emit(subs, path, raw)
	return nil
}

// Update aplica campos parciales sobre el valor del path (lo crea si no existe).
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	patch, err := toTree(fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	patchMap, ok := patch.(map[string]any)
	if !ok {
		return fmt.Errorf("update %s: los campos deben ser un objeto", path)
	}

	s.mu.Lock()
	parts := splitPath(path)
	node, found := s.getNode(parts)
	target, _ := node.(map[string]any)
	if !found || target == nil {
		target = make(map[string]any)
	}
	for k, v := range patchMap {
		target[k] = v
	}
	s.setNode(parts, target)
	subs, raw := s.snapshot(path, target)
	s.mu.Unlock()

	s.emit(subs, path, raw)
	return nil
}

// Append crea un hijo con id uuid bajo el prefijo y devuelve el id.
func (s *Store) Append(ctx context.Context, prefix string, value any) (string, error) {
	id := uuid.New().String()
	if err := s.Write(ctx, prefix+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

// Delete elimina el path y su subárbol. Borrar algo inexistente no es error.
func (s *Store) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	s.deleteNode(splitPath(path))
	subs := s.matching(path)
	s.mu.Unlock()

	s.emit(subs, path, nil)
	return nil
}

// snapshot serializa el payload del evento todavía bajo el lock: el nodo
// instalado en el árbol puede mutar en cuanto se suelte (un Update concurrente
// escribe sobre el mismo mapa). Caller sostiene el lock.
func (s *Store) snapshot(path string, node any) ([]subscription, []byte) {
	subs := s.matching(path)
	if len(subs) == 0 {
		return nil, nil
	}
	raw, _ := json.Marshal(node)
	return subs, raw
}

// Subscribe registra un callback para cambios bajo el prefijo.
func (s *Store) Subscribe(prefix string, fn func(repository.ChangeEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{prefix: strings.Trim(prefix, "/"), fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// getNode navega el árbol. Caller sostiene el lock.
func (s *Store) getNode(parts []string) (any, bool) {
	var cur any = s.root
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setNode escribe el nodo creando intermedios. Caller sostiene el lock.
func (s *Store) setNode(parts []string, node any) {
	if len(parts) == 0 {
		if m, ok := node.(map[string]any); ok {
			s.root = m
		}
		return
	}
	cur := s.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = node
}

// deleteNode elimina el nodo. Caller sostiene el lock.
func (s *Store) deleteNode(parts []string) {
	if len(parts) == 0 {
		s.root = make(map[string]any)
		return
	}
	cur := s.root
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, parts[len(parts)-1])
}

// matching devuelve los suscriptores cuyo prefijo cubre el path. Caller sostiene el lock.
func (s *Store) matching(path string) []subscription {
	path = strings.Trim(path, "/")
	var out []subscription
	for _, sub := range s.subs {
		if sub.prefix == "" || path == sub.prefix || strings.HasPrefix(path, sub.prefix+"/") {
			out = append(out, sub)
		}
	}
	return out
}

// emit entrega los eventos fuera del lock: un suscriptor puede volver a leer
// el store sin deadlock. Entrega best-effort, post-commit.
func (s *Store) emit(subs []subscription, path string, raw []byte) {
	if len(subs) == 0 {
		return
	}
	ev := repository.ChangeEvent{Path: strings.Trim(path, "/"), Value: raw}
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// toTree normaliza cualquier valor Go a mapas/escalares vía JSON.
func toTree(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	return node, nil
}
