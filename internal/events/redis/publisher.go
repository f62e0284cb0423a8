package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/interfaces"
)

// Publisher publishes ledger events on Redis pub/sub, one channel per topic.
// The key is carried in the envelope since pub/sub has no message key.
type Publisher struct {
	rdb           redis.UniversalClient
	channelPrefix string
}

type envelope struct {
	Topic string          `json:"topic"`
	Key   string          `json:"key"`
	Event json.RawMessage `json:"event"`
}

func NewPublisher(rdb redis.UniversalClient, channelPrefix string) *Publisher {
	return &Publisher{rdb: rdb, channelPrefix: channelPrefix}
}

func (p *Publisher) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	payload, err := json.Marshal(envelope{Topic: topic, Key: key, Event: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", topic, err)
	}

	if err := p.rdb.Publish(ctx, p.channelPrefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close is a no-op: the client is shared with the directory and owned by main.
func (p *Publisher) Close() error {
	return nil
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
