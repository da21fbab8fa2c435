package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher hands liquidation requests to the pricing service through
// a Kafka topic, one message per SKU.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit writes the batch in a single call. Messages are keyed by SKU so a
// SKU's requests stay ordered on one partition.
func (p *KafkaPublisher) Submit(ctx context.Context, requests []domain.LiquidationRequest) error {
	if len(requests) == 0 {
		return nil
	}
	msgs, err := p.messages(requests)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return &domain.PortUnavailableError{Port: "liquidation", Err: err}
	}
	log.Debug().Str("topic", p.topic).Int("count", len(msgs)).Msg("liquidation requests published")
	return nil
}

func (p *KafkaPublisher) messages(requests []domain.LiquidationRequest) ([]kafka.Message, error) {
	now := p.now()
	msgs := make([]kafka.Message, 0, len(requests))
	for _, req := range requests {
		payload, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("encode liquidation request %s: %w", req.SKU, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic: p.topic,
			Key:   []byte(req.SKU),
			Value: payload,
			Time:  now,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(req.RunID)},
				{Key: "tier", Value: []byte(req.Tier)},
			},
		})
	}
	return msgs, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
