// Package postgres implementa el TreeStore sobre una tabla de nodos jsonb.
// Cada path guarda su valor completo; los subárboles se leen por prefijo.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abasto/abasto-api/internal/domain"
	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/pkg/logger"
)

// canal de pg_notify para cambios del árbol.
const changeChannel = "tree_changes"

// payloads de pg_notify están limitados a ~8KB; más allá se notifica solo el path.
const maxNotifyValue = 7000

// Store TreeStore respaldado por PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	log  *logger.Logger

	mu      sync.Mutex
	subs    map[int]subscription
	nextSub int
	cancel  context.CancelFunc
}

type subscription struct {
	prefix string
	fn     func(repository.ChangeEvent)
}

var _ repository.TreeStore = (*Store)(nil)

// NewStore construye el store y arranca el listener de cambios.
func NewStore(pool *pgxpool.Pool, log *logger.Logger) *Store {
	s := &Store{pool: pool, log: log, subs: make(map[int]subscription)}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(ctx)
	return s
}

// Close detiene el listener.
func (s *Store) Close() {
	s.cancel()
}

func trimPath(path string) string {
	return strings.Trim(path, "/")
}

// Read decodifica el valor del path, o arma el subárbol desde los hijos si el
// path no tiene valor propio.
func (s *Store) Read(ctx context.Context, path string, out any) error {
	path = trimPath(path)

	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM tree_nodes WHERE path = $1`, path).Scan(&raw)
	if err == nil {
		return json.Unmarshal(raw, out)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return storageErr("read", path, err)
	}

	// Subárbol: juntar los hijos bajo el prefijo.
	rows, err := s.pool.Query(ctx,
		`SELECT path, value FROM tree_nodes WHERE path LIKE $1 ORDER BY path`, path+"/%")
	if err != nil {
		return storageErr("read", path, err)
	}
	defer rows.Close()

	tree := make(map[string]any)
	found := false
	for rows.Next() {
		var childPath string
		var childRaw []byte
		if err := rows.Scan(&childPath, &childRaw); err != nil {
			return storageErr("read", path, err)
		}
		var value any
		if err := json.Unmarshal(childRaw, &value); err != nil {
			return fmt.Errorf("read %s: %w", childPath, err)
		}
		insert(tree, strings.Split(strings.TrimPrefix(childPath, path+"/"), "/"), value)
		found = true
	}
	if err := rows.Err(); err != nil {
		return storageErr("read", path, err)
	}
	if !found {
		return fmt.Errorf("read %s: %w", path, domain.ErrNotFound)
	}
	raw, err = json.Marshal(tree)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// insert cuelga value en el árbol siguiendo los segmentos restantes del path.
func insert(tree map[string]any, parts []string, value any) {
	for _, p := range parts[:len(parts)-1] {
		next, ok := tree[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			tree[p] = next
		}
		tree = next
	}
	tree[parts[len(parts)-1]] = value
}

// Write reemplaza el valor completo del path.
func (s *Store) Write(ctx context.Context, path string, value any) error {
	path = trimPath(path)
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tree_nodes (path, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		path, raw)
	if err != nil {
		return storageErr("write", path, err)
	}
	s.announce(ctx, path, raw)
	return nil
}

// Update aplica campos parciales con concatenación jsonb (crea el nodo si falta).
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	path = trimPath(path)
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO tree_nodes (path, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (path) DO UPDATE SET value = tree_nodes.value || EXCLUDED.value, updated_at = now()`,
		path, raw)
	if err != nil {
		return storageErr("update", path, err)
	}
	s.announce(ctx, path, raw)
	return nil
}

// Append crea un hijo con id uuid bajo el prefijo y devuelve el id.
func (s *Store) Append(ctx context.Context, prefix string, value any) (string, error) {
	id := uuid.New().String()
	if err := s.Write(ctx, trimPath(prefix)+"/"+id, value); err != nil {
		return "", err
	}
	return id, nil
}

// Delete elimina el path y su subárbol.
func (s *Store) Delete(ctx context.Context, path string) error {
	path = trimPath(path)
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tree_nodes WHERE path = $1 OR path LIKE $2`, path, path+"/%")
	if err != nil {
		return storageErr("delete", path, err)
	}
	s.announce(ctx, path, nil)
	return nil
}

// Subscribe registra un callback para cambios bajo el prefijo.
func (s *Store) Subscribe(prefix string, fn func(repository.ChangeEvent)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = subscription{prefix: trimPath(prefix), fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

type changePayload struct {
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value,omitempty"`
}

// announce publica el cambio vía pg_notify (también lo reciben otras instancias).
func (s *Store) announce(ctx context.Context, path string, raw []byte) {
	payload := changePayload{Path: path}
	if len(raw) > 0 && len(raw) <= maxNotifyValue {
		payload.Value = raw
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, changeChannel, string(msg)); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("no se pudo notificar el cambio")
	}
}

// listen consume pg_notify en una conexión dedicada y reparte a los suscriptores.
func (s *Store) listen(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := s.pool.Acquire(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("listener: adquirir conexión")
			return
		}
		_, err = conn.Exec(ctx, "LISTEN "+changeChannel)
		if err != nil {
			conn.Release()
			s.log.Warn().Err(err).Msg("listener: LISTEN")
			return
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				conn.Release()
				if ctx.Err() != nil {
					return
				}
				break // reconectar
			}
			var payload changePayload
			if err := json.Unmarshal([]byte(n.Payload), &payload); err != nil {
				continue
			}
			s.dispatch(payload)
		}
	}
}

func (s *Store) dispatch(payload changePayload) {
	s.mu.Lock()
	var targets []subscription
	for _, sub := range s.subs {
		if sub.prefix == "" || payload.Path == sub.prefix || strings.HasPrefix(payload.Path, sub.prefix+"/") {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	ev := repository.ChangeEvent{Path: payload.Path, Value: payload.Value}
	for _, sub := range targets {
		sub.fn(ev)
	}
}

func storageErr(op, path string, err error) error {
	return fmt.Errorf("%s %s: %v: %w", op, path, err, domain.ErrStorageUnavailable)
}
