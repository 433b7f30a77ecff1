// Package notify implementaciones del sumidero de notificaciones.
// Entrega best-effort: un fallo aquí jamás revierte la transición que lo disparó.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/abasto/abasto-api/internal/domain/repository"
	"github.com/abasto/abasto-api/pkg/logger"
)

// LogNotifier sumidero por defecto: deja la notificación en el log estructurado.
type LogNotifier struct {
	log *logger.Logger
}

var _ repository.Notifier = (*LogNotifier)(nil)

// NewLogNotifier construye el notificador de log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify registra la notificación.
func (n *LogNotifier) Notify(ctx context.Context, target, message string, payload map[string]any) {
	n.log.Info().
		Str("target", target).
		Interface("payload", payload).
		Msg("notificación: " + message)
}

// RedisNotifier publica notificaciones por Redis pub/sub para que las consuma
// la capa de presentación (fuera de este core).
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	log     *logger.Logger
}

var _ repository.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier crea el cliente y verifica conexión con un ping corto.
func NewRedisNotifier(addr, channel string, log *logger.Logger) (*RedisNotifier, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisNotifier{rdb: rdb, channel: channel, log: log}, nil
}

type redisMessage struct {
	Target  string         `json:"target"`
	Message string         `json:"message"`
	Payload map[string]any `json:"payload,omitempty"`
	SentAt  time.Time      `json:"sentAt"`
}

// Notify publica el mensaje. El error solo se loguea (fire-and-forget).
func (n *RedisNotifier) Notify(ctx context.Context, target, message string, payload map[string]any) {
	raw, err := json.Marshal(redisMessage{Target: target, Message: message, Payload: payload, SentAt: time.Now()})
	if err != nil {
		n.log.Error().Err(err).Msg("serializar notificación")
		return
	}
	if err := n.rdb.Publish(ctx, n.channel, raw).Err(); err != nil {
		n.log.Warn().Err(err).Str("target", target).Msg("notificación no entregada")
	}
}

// Close cierra el cliente Redis.
func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
