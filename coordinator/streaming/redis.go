package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher fans events out over Redis pub/sub so external
// observers can follow elections without connecting to the wire
// protocol.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher connects to Redis and verifies the connection.
func NewRedisPublisher(addr, password string, db int) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("streaming: connecting to redis at %s: %w", addr, err)
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	event := Event{
		Topic:     topic,
		Payload:   data,
		Timestamp: time.Now(),
		Source:    "coordinator",
	}
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, topic, eventBytes).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
