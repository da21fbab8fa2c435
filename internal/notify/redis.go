package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/autopo-py/replenishment/internal/domain"
	"github.com/andresuchdata/autopo-py/replenishment/internal/ports"
)

// Envelope is the message published on the alert channel.
type Envelope struct {
	Channel     string             `json:"channel"`
	Severity    domain.Severity    `json:"severity"`
	Message     string             `json:"message"`
	Attachments []ports.Attachment `json:"attachments,omitempty"`
	DedupKey    string             `json:"dedup_key,omitempty"`
	SentAt      time.Time          `json:"sent_at"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes alerts on a Redis pub/sub channel for downstream
// chat relays. An empty channel argument falls back to the default.
type RedisPublisher struct {
	client         publisher
	defaultChannel string
	now            func() time.Time
}

func NewRedisPublisher(client *redis.Client, defaultChannel string) *RedisPublisher {
	return &RedisPublisher{
		client:         client,
		defaultChannel: defaultChannel,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (p *RedisPublisher) Send(ctx context.Context, channel string, severity domain.Severity, message string, attachments []ports.Attachment) error {
	if channel == "" {
		channel = p.defaultChannel
	}
	env := Envelope{
		Channel:     channel,
		Severity:    severity,
		Message:     message,
		Attachments: attachments,
		SentAt:      p.now(),
	}
	if key, ok := ports.DedupKey(ctx); ok {
		env.DedupKey = key
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode alert envelope: %w", err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return &domain.PortUnavailableError{Port: "notify", Err: err}
	}
	return nil
}
