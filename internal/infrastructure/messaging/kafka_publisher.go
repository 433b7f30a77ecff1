// Package messaging publica los eventos de workflow confirmados hacia
// consumidores externos (preparación de compras, reporting).
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/abasto/abasto-api/internal/domain/repository"
)

// KafkaPublisher escribe eventos en un topic de Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
}

var _ repository.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher construye el writer.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Compression:  kafka.Snappy,
		},
	}
}

// Publish serializa el payload y lo escribe con la clave dada (los eventos de
// una misma solicitud conservan orden de partición).
func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serializar evento: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: raw}); err != nil {
		return fmt.Errorf("publicar evento en kafka: %w", err)
	}
	return nil
}

// Close cierra el writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
